package domain

import "github.com/shopspring/decimal"

// ZoOpenOrders 某个市场上的挂单账户汇总
type ZoOpenOrders struct {
	Symbol     string          `json:"symbol"`
	CoinOnAsks decimal.Decimal `json:"coinOnAsks"`
	CoinOnBids decimal.Decimal `json:"coinOnBids"`
}

// Empty 是否没有挂单
func (o *ZoOpenOrders) Empty() bool {
	return o == nil || (o.CoinOnAsks.IsZero() && o.CoinOnBids.IsZero())
}

// ZoPosition 持仓。Coins 为绝对数量，方向由 IsLong 表示。
type ZoPosition struct {
	MarketKey string          `json:"marketKey"`
	Coins     decimal.Decimal `json:"coins"`
	IsLong    bool            `json:"isLong"`
}

// ZoMarginState 保证金状态
type ZoMarginState struct {
	Markets   []string     `json:"markets"`
	Positions []ZoPosition `json:"positions"`

	// OpenOrders 只包含已创建挂单账户的市场
	OpenOrders map[string]ZoOpenOrders `json:"openOrders"`
}

// OpenOrdersFor 返回市场的挂单账户，未创建时返回 nil
func (s *ZoMarginState) OpenOrdersFor(symbol string) *ZoOpenOrders {
	if s == nil || s.OpenOrders == nil {
		return nil
	}
	oo, ok := s.OpenOrders[symbol]
	if !ok {
		return nil
	}
	return &oo
}

// ZoOrderRequest 下单请求
type ZoOrderRequest struct {
	Symbol    string
	OrderType OrderType
	IsLong    bool
	Price     decimal.Decimal
	Size      decimal.Decimal
	ClientID  string
}
