package unwind

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultSettleDelay  = 5 * time.Second
	defaultComputeUnits = 400_000
)

// Options are the fixed thresholds and pacing of an unwind run.
type Options struct {
	// EquityThreshold: equity strictly above this is swept to the wallet.
	EquityThreshold decimal.Decimal
	// MangoDust is left behind in venue A; free collateral above it is withdrawn.
	MangoDust decimal.Decimal
	// ZoDust is left behind in venue B.
	ZoDust decimal.Decimal
	// ZoMinWithdrawal: venue B withdrawals smaller than this are skipped.
	ZoMinWithdrawal decimal.Decimal
	// SettleDelay is slept after every settlement call.
	SettleDelay time.Duration
	// ComputeUnits requested for venue A order placement.
	ComputeUnits uint32
}

// DefaultOptions returns the production thresholds.
func DefaultOptions() Options {
	return Options{
		EquityThreshold: decimal.RequireFromString("0.1"),
		MangoDust:       decimal.RequireFromString("0.000001"),
		ZoDust:          decimal.RequireFromString("0.1"),
		ZoMinWithdrawal: decimal.RequireFromString("0.1"),
		SettleDelay:     defaultSettleDelay,
		ComputeUnits:    defaultComputeUnits,
	}
}
