package domain

import "github.com/shopspring/decimal"

// Side 订单方向
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// Opposite 返回反方向
func (s Side) Opposite() Side {
	if s == SideBid {
		return SideAsk
	}
	return SideBid
}

// OrderType 订单类型
type OrderType string

const (
	OrderTypeMarket        OrderType = "market"
	OrderTypeReduceOnlyIoc OrderType = "reduceOnlyIoc"
)

// BookLevel 订单簿档位
type BookLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// OrderBook 订单簿快照。
// Asks 按最优价在前排列；Bids 保持场所返回的迭代顺序，不做重排。
type OrderBook struct {
	Symbol string      `json:"symbol"`
	Asks   []BookLevel `json:"asks"`
	Bids   []BookLevel `json:"bids"`
}
