// Package unwind flattens every venue integration of the wallet's margin
// accounts and sweeps the remaining equity back to the wallet.
//
// Per account the sequence is fixed: reload, unwind venue A (Mango) if active,
// unwind venue B (01) if active, reload, sweep equity above the threshold.
// Per venue: cancel resting orders, close positions with reduce-only orders,
// settle, withdraw free collateral above dust, deactivate. Errors while closing
// positions are logged and swallowed; everything else aborts the run.
package unwind

import (
	"context"
	"time"

	"github.com/betbot/utpunwind/internal/domain"
	"github.com/betbot/utpunwind/internal/ports"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Unwinder drives the unwind of all accounts owned by the wallet.
type Unwinder struct {
	margin   ports.MarginProtocol
	mango    ports.MangoVenue
	zo       ports.ZoVenue
	recorder ports.ActionRecorder
	opts     Options
	runID    string
	dryRun   bool

	log   *logrus.Entry
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option customizes an Unwinder.
type Option func(*Unwinder)

// WithLogger injects the logger (default: component=unwind on the std logger).
func WithLogger(entry *logrus.Entry) Option {
	return func(u *Unwinder) {
		if entry != nil {
			u.log = entry
		}
	}
}

// WithRecorder journals every action.
func WithRecorder(r ports.ActionRecorder) Option {
	return func(u *Unwinder) { u.recorder = r }
}

// WithRunID tags the report and journal entries.
func WithRunID(id string) Option {
	return func(u *Unwinder) { u.runID = id }
}

// WithDryRun marks the report as simulated. Transactions are simulated by the
// submitter, not here.
func WithDryRun(dry bool) Option {
	return func(u *Unwinder) { u.dryRun = dry }
}

// New creates an Unwinder.
func New(margin ports.MarginProtocol, mango ports.MangoVenue, zo ports.ZoVenue, opts Options, options ...Option) *Unwinder {
	u := &Unwinder{
		margin: margin,
		mango:  mango,
		zo:     zo,
		opts:   opts,
		log:    logrus.WithField("component", "unwind"),
		now:    time.Now,
		sleep:  sleepContext,
	}
	for _, o := range options {
		o(u)
	}
	return u
}

// Run unwinds every account and sweeps equity. The returned report is non-nil
// even when an error aborts the run.
func (u *Unwinder) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: u.runID, DryRun: u.dryRun, StartedAt: u.now()}
	defer func() { report.FinishedAt = u.now() }()

	accounts, err := u.margin.OwnAccounts(ctx)
	if err != nil {
		return report, errors.Wrap(err, "list margin accounts")
	}
	u.log.Infof("Found %d accounts", len(accounts))

	for _, address := range accounts {
		acc := &AccountReport{Address: address}
		report.Accounts = append(report.Accounts, acc)

		if err := u.unwindAccount(ctx, acc); err != nil {
			return report, errors.Wrapf(err, "account %s", address)
		}
	}

	u.log.Info("Done")
	return report, nil
}

func (u *Unwinder) unwindAccount(ctx context.Context, acc *AccountReport) error {
	log := u.log.WithField("account", acc.Address)
	log.Info("Checking account")

	if err := u.checkForActiveUTPs(ctx, acc); err != nil {
		return err
	}
	return u.sweepEquity(ctx, acc)
}

func (u *Unwinder) checkForActiveUTPs(ctx context.Context, acc *AccountReport) error {
	account, err := u.margin.LoadAccount(ctx, acc.Address)
	if err != nil {
		return errors.Wrap(err, "reload account")
	}
	if !account.HasActiveUTPs() {
		return nil
	}
	u.log.WithField("account", acc.Address).Info("Marginfi account has active UTPs, closing...")
	return u.closeAllUTPs(ctx, acc)
}

func (u *Unwinder) closeAllUTPs(ctx context.Context, acc *AccountReport) error {
	log := u.log.WithField("account", acc.Address)

	account, err := u.margin.LoadAccount(ctx, acc.Address)
	if err != nil {
		return errors.Wrap(err, "reload account")
	}
	log.Info("Closing all UTP accounts")

	if account.IsActive(domain.UTPMango) {
		log.Info("Marginfi account has active Mango, closing...")
		if err := u.closeMango(ctx, acc); err != nil {
			return errors.Wrap(err, "close mango")
		}
		acc.UnwoundUTPs = append(acc.UnwoundUTPs, domain.UTPMango)
	}

	if account.IsActive(domain.UTPZo) {
		log.Info("Marginfi account has active 01, closing...")
		if err := u.closeZo(ctx, acc); err != nil {
			return errors.Wrap(err, "close 01")
		}
		acc.UnwoundUTPs = append(acc.UnwoundUTPs, domain.UTPZo)
	}
	return nil
}

func (u *Unwinder) sweepEquity(ctx context.Context, acc *AccountReport) error {
	account, err := u.margin.LoadAccount(ctx, acc.Address)
	if err != nil {
		return errors.Wrap(err, "reload account")
	}
	equity := account.Balances.Equity
	if !equity.GreaterThan(u.opts.EquityThreshold) {
		return nil
	}

	u.log.WithField("account", acc.Address).Infof("Withdrawing %s to wallet", equity)
	sig, err := u.margin.Withdraw(ctx, acc.Address, equity)
	if err != nil {
		return errors.Wrap(err, "withdraw equity")
	}
	acc.SweptEquity = equity
	u.record(ctx, acc, domain.Action{Kind: domain.ActionEquityWithdraw, Amount: equity, Signature: sig})
	return nil
}

// swallow logs and keeps an error from the position-closing loop.
func (u *Unwinder) swallow(ctx context.Context, acc *AccountReport, venue domain.UTP, err error) {
	u.log.WithFields(logrus.Fields{
		"account": acc.Address,
		"venue":   venue.String(),
	}).WithError(err).Error("Error closing positions")
	acc.SwallowedErrors = append(acc.SwallowedErrors, venue.String()+": "+err.Error())
	u.record(ctx, acc, domain.Action{Venue: venue, Kind: domain.ActionClosePositionFail, Err: err.Error()})
}

func (u *Unwinder) record(ctx context.Context, acc *AccountReport, a domain.Action) {
	a.Account = acc.Address
	a.At = u.now()
	acc.Actions = append(acc.Actions, a)
	if u.recorder == nil {
		return
	}
	if err := u.recorder.RecordAction(ctx, u.runID, a); err != nil {
		u.log.WithError(err).Warn("journal write failed")
	}
}

func (u *Unwinder) settlePause(ctx context.Context) error {
	if u.opts.SettleDelay <= 0 {
		return nil
	}
	return u.sleep(ctx, u.opts.SettleDelay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
