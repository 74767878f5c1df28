package domain

import "github.com/shopspring/decimal"

// PerpMarketConfig 集成配置里登记的永续市场
type PerpMarketConfig struct {
	Index         int    `json:"marketIndex"`
	BaseSymbol    string `json:"baseSymbol"`
	BaseDecimals  int    `json:"baseDecimals"`
	QuoteDecimals int    `json:"quoteDecimals"`
}

// PerpMarket 加载后的永续市场元数据
type PerpMarket struct {
	PerpMarketConfig
	Address        string          `json:"address"`
	LiquidationFee decimal.Decimal `json:"liquidationFee"`
	OraclePrice    decimal.Decimal `json:"oraclePrice"`
}

// Symbol 返回 "BTC-PERP" 形式的名称
func (m *PerpMarket) Symbol() string {
	return m.BaseSymbol + "-PERP"
}

// PerpAccount 单个永续市场上的持仓
type PerpAccount struct {
	MarketIndex int `json:"marketIndex"`

	// BasePosition 已换算为 base 单位（正数为多，负数为空）
	BasePosition  decimal.Decimal `json:"basePosition"`
	QuotePosition decimal.Decimal `json:"quotePosition"`
}

// PerpOrder 永续市场挂单
type PerpOrder struct {
	OrderID     string          `json:"orderId"`
	MarketIndex int             `json:"marketIndex"`
	Side        Side            `json:"side"`
	Price       decimal.Decimal `json:"price"`
	Size        decimal.Decimal `json:"size"`
}

// PerpAccountState 集成账户状态
type PerpAccountState struct {
	PerpAccounts []PerpAccount `json:"perpAccounts"`
	OpenOrders   []PerpOrder   `json:"openOrders"`
}

// PerpAccountFor 返回指定市场上的持仓
func (s *PerpAccountState) PerpAccountFor(marketIndex int) (PerpAccount, bool) {
	if s == nil {
		return PerpAccount{}, false
	}
	for _, pa := range s.PerpAccounts {
		if pa.MarketIndex == marketIndex {
			return pa, true
		}
	}
	return PerpAccount{}, false
}

// OrdersFor 返回指定市场上的挂单
func (s *PerpAccountState) OrdersFor(marketIndex int) []PerpOrder {
	if s == nil {
		return nil
	}
	var out []PerpOrder
	for _, o := range s.OpenOrders {
		if o.MarketIndex == marketIndex {
			out = append(out, o)
		}
	}
	return out
}

// PerpOrderRequest 永续下单请求
type PerpOrderRequest struct {
	MarketIndex  int
	Side         Side
	Price        decimal.Decimal
	Size         decimal.Decimal
	OrderType    OrderType
	ReduceOnly   bool
	ComputeUnits uint32
}
