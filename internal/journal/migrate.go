package journal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

func (j *Journal) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  wallet TEXT NOT NULL,
  dry_run INTEGER NOT NULL DEFAULT 0,
  started_at TEXT NOT NULL,
  finished_at TEXT,
  accounts INTEGER NOT NULL DEFAULT 0,
  actions INTEGER NOT NULL DEFAULT 0,
  swept_equity TEXT,
  error TEXT
);`,
		`
CREATE TABLE IF NOT EXISTS actions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  account TEXT NOT NULL,
  venue TEXT NOT NULL DEFAULT '',
  kind TEXT NOT NULL,
  market TEXT NOT NULL DEFAULT '',
  side TEXT NOT NULL DEFAULT '',
  amount TEXT NOT NULL DEFAULT '',
  price TEXT NOT NULL DEFAULT '',
  signature TEXT NOT NULL DEFAULT '',
  error TEXT NOT NULL DEFAULT '',
  at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_run ON actions(run_id);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_account ON actions(account);`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}
	return nil
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
