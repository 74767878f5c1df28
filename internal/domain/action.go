package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActionKind 单个执行步骤的类型
type ActionKind string

const (
	ActionCancelOrder       ActionKind = "cancel_order"
	ActionCreateOpenOrders  ActionKind = "create_open_orders"
	ActionClosePosition     ActionKind = "close_position"
	ActionClosePositionFail ActionKind = "close_position_failed"
	ActionSettle            ActionKind = "settle"
	ActionVenueWithdraw     ActionKind = "venue_withdraw"
	ActionDeactivate        ActionKind = "deactivate"
	ActionEquityWithdraw    ActionKind = "equity_withdraw"
)

// Action 一次已执行（或已模拟）的步骤
type Action struct {
	Account   string
	Venue     UTP // 账户级操作为空
	Kind      ActionKind
	Market    string
	Amount    decimal.Decimal
	Price     decimal.Decimal
	Side      Side
	Signature string
	Err       string
	At        time.Time
}
