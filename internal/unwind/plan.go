package unwind

import (
	"context"

	"github.com/pkg/errors"
)

// Plan reads every account without sending anything.
func (u *Unwinder) Plan(ctx context.Context) ([]AccountPlan, error) {
	accounts, err := u.margin.OwnAccounts(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list margin accounts")
	}

	plans := make([]AccountPlan, 0, len(accounts))
	for _, address := range accounts {
		account, err := u.margin.LoadAccount(ctx, address)
		if err != nil {
			return nil, errors.Wrapf(err, "load account %s", address)
		}
		equity := account.Balances.Equity
		plans = append(plans, AccountPlan{
			Address:    address,
			ActiveUTPs: account.ActiveUTPs,
			Equity:     equity,
			WillSweep:  equity.GreaterThan(u.opts.EquityThreshold),
		})
	}
	return plans, nil
}
