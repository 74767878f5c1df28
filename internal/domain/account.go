package domain

import "github.com/shopspring/decimal"

// UTP 保证金账户上的外部交易场所集成
type UTP string

const (
	UTPMango UTP = "mango"
	UTPZo    UTP = "zo"
)

// String 返回集成的可读名称
func (u UTP) String() string {
	switch u {
	case UTPMango:
		return "Mango"
	case UTPZo:
		return "01"
	default:
		return string(u)
	}
}

// Balances 保证金账户余额汇总（computeBalances 的结果）
type Balances struct {
	Equity      decimal.Decimal `json:"equity"`
	Assets      decimal.Decimal `json:"assets"`
	Liabilities decimal.Decimal `json:"liabilities"`
}

// MarginAccount 保证金账户快照
type MarginAccount struct {
	Address    string   `json:"address"`
	Authority  string   `json:"authority"`
	ActiveUTPs []UTP    `json:"activeUtps"`
	Balances   Balances `json:"balances"`
}

// HasActiveUTPs 是否存在任何活跃集成
func (a *MarginAccount) HasActiveUTPs() bool {
	return a != nil && len(a.ActiveUTPs) > 0
}

// IsActive 指定集成是否活跃
func (a *MarginAccount) IsActive(utp UTP) bool {
	if a == nil {
		return false
	}
	for _, u := range a.ActiveUTPs {
		if u == utp {
			return true
		}
	}
	return false
}

// Observation 场所侧的抵押品观测结果
type Observation struct {
	FreeCollateral decimal.Decimal `json:"freeCollateral"`
	Equity         decimal.Decimal `json:"equity"`
	Valid          bool            `json:"valid"`
}
