package unwind

import (
	"time"

	"github.com/betbot/utpunwind/internal/domain"
	"github.com/shopspring/decimal"
)

// AccountReport is what happened to one margin account.
type AccountReport struct {
	Address         string
	UnwoundUTPs     []domain.UTP
	Actions         []domain.Action
	SweptEquity     decimal.Decimal
	SwallowedErrors []string
}

// Report summarizes a run.
type Report struct {
	RunID      string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Accounts   []*AccountReport
}

// ActionCount counts actions of the given kind across all accounts.
func (r *Report) ActionCount(kind domain.ActionKind) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, acc := range r.Accounts {
		for _, a := range acc.Actions {
			if a.Kind == kind {
				n++
			}
		}
	}
	return n
}

// TotalSwept sums equity withdrawn to the wallet.
func (r *Report) TotalSwept() decimal.Decimal {
	total := decimal.Zero
	if r == nil {
		return total
	}
	for _, acc := range r.Accounts {
		total = total.Add(acc.SweptEquity)
	}
	return total
}

// AccountPlan is the read-only view of an account before anything is sent.
type AccountPlan struct {
	Address    string
	ActiveUTPs []domain.UTP
	Equity     decimal.Decimal
	WillSweep  bool
}

// TotalActions counts every recorded action.
func (r *Report) TotalActions() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, acc := range r.Accounts {
		n += len(acc.Actions)
	}
	return n
}

// SignatureCount counts actions that carry sig.
func (r *Report) SignatureCount(sig string) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, acc := range r.Accounts {
		for _, a := range acc.Actions {
			if a.Signature == sig {
				n++
			}
		}
	}
	return n
}
