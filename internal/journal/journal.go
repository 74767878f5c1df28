// Package journal persists unwind runs and every action they take to SQLite
// for later audit.
package journal

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/betbot/utpunwind/internal/domain"
)

// Journal is a SQLite-backed run log.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// RunSummary is what FinishRun stores.
type RunSummary struct {
	Accounts    int
	Actions     int
	SweptEquity string
	Err         error
}

// Run is a stored run row.
type Run struct {
	ID          string
	Wallet      string
	DryRun      bool
	StartedAt   time.Time
	FinishedAt  *time.Time
	Accounts    int
	Actions     int
	SweptEquity string
	Error       string
}

// Open creates the database file and schema if needed.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "mkdir journal dir")
		}
	}
	// foreign keys are per connection, so set them in the DSN
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	db.SetMaxOpenConns(1) // SQLite：单连接更稳定
	db.SetMaxIdleConns(1)

	j := &Journal{db: db, now: time.Now}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func (j *Journal) StartRun(ctx context.Context, runID, wallet string, dryRun bool) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, wallet, dry_run, started_at) VALUES (?, ?, ?, ?)`,
		runID, wallet, boolInt(dryRun), formatTime(j.now()),
	)
	if err != nil {
		return errors.Wrapf(err, "insert run %s", runID)
	}
	return nil
}

func (j *Journal) FinishRun(ctx context.Context, runID string, sum RunSummary) error {
	errText := ""
	if sum.Err != nil {
		errText = sum.Err.Error()
	}
	res, err := j.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, accounts = ?, actions = ?, swept_equity = ?, error = ? WHERE id = ?`,
		formatTime(j.now()), sum.Accounts, sum.Actions, sum.SweptEquity, errText, runID,
	)
	if err != nil {
		return errors.Wrapf(err, "finish run %s", runID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Errorf("finish run %s: run not found", runID)
	}
	return nil
}

// RecordAction stores one action; it satisfies the unwinder's recorder port.
func (j *Journal) RecordAction(ctx context.Context, runID string, a domain.Action) error {
	at := a.At
	if at.IsZero() {
		at = j.now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO actions (run_id, account, venue, kind, market, side, amount, price, signature, error, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, a.Account, string(a.Venue), string(a.Kind), a.Market, string(a.Side),
		decimalText(a.Amount.IsZero(), a.Amount.String()), decimalText(a.Price.IsZero(), a.Price.String()),
		a.Signature, a.Err, formatTime(at),
	)
	if err != nil {
		return errors.Wrapf(err, "insert action %s for %s", a.Kind, a.Account)
	}
	return nil
}

func (j *Journal) GetRun(ctx context.Context, runID string) (*Run, error) {
	var (
		r                   Run
		dry                 int
		started             string
		finished, swept, ee sql.NullString
	)
	err := j.db.QueryRowContext(ctx,
		`SELECT id, wallet, dry_run, started_at, finished_at, accounts, actions, swept_equity, error FROM runs WHERE id = ?`,
		runID,
	).Scan(&r.ID, &r.Wallet, &dry, &started, &finished, &r.Accounts, &r.Actions, &swept, &ee)
	if err != nil {
		return nil, errors.Wrapf(err, "get run %s", runID)
	}
	r.DryRun = dry != 0
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if finished.Valid {
		t, _ := time.Parse(time.RFC3339Nano, finished.String)
		r.FinishedAt = &t
	}
	r.SweptEquity = swept.String
	r.Error = ee.String
	return &r, nil
}

// ListActions returns a run's actions in insertion order.
func (j *Journal) ListActions(ctx context.Context, runID string) ([]domain.Action, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT account, venue, kind, market, side, amount, price, signature, error, at
		 FROM actions WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "list actions %s", runID)
	}
	defer rows.Close()

	var out []domain.Action
	for rows.Next() {
		var (
			a                                domain.Action
			venue, kind, side, amount, price string
			at                               string
		)
		if err := rows.Scan(&a.Account, &venue, &kind, &a.Market, &side, &amount, &price, &a.Signature, &a.Err, &at); err != nil {
			return nil, err
		}
		a.Venue = domain.UTP(venue)
		a.Kind = domain.ActionKind(kind)
		a.Side = domain.Side(side)
		a.Amount = parseDecimal(amount)
		a.Price = parseDecimal(price)
		a.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, a)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func decimalText(zero bool, s string) string {
	if zero {
		return ""
	}
	return s
}
