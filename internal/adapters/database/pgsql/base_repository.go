package pgsql

import (
	"context"

	"github.com/adiosmsu/budgeter/internal/apperrors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is created idempotently at startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS reconciliation_batches (
		batch_id    BIGSERIAL PRIMARY KEY,
		task_count  INTEGER     NOT NULL,
		started_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS balance_accounts (
		account_id BIGSERIAL PRIMARY KEY,
		name       TEXT    NOT NULL UNIQUE,
		unit       TEXT    NOT NULL,
		balance    NUMERIC NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS funds_mutations (
		seq             BIGSERIAL PRIMARY KEY,
		event_id        TEXT        NOT NULL UNIQUE,
		day             DATE        NOT NULL,
		account_id      BIGINT      NOT NULL REFERENCES balance_accounts (account_id),
		amount          NUMERIC     NOT NULL,
		unit            TEXT        NOT NULL,
		subject         TEXT        NOT NULL,
		reserved        BOOLEAN     NOT NULL,
		quantity        INTEGER     NOT NULL,
		occurred_at     TIMESTAMPTZ NOT NULL,
		agent           TEXT        NOT NULL,
		original_amount NUMERIC,
		original_unit   TEXT,
		rate            NUMERIC
	)`,
	`CREATE INDEX IF NOT EXISTS funds_mutations_day_idx ON funds_mutations (day)`,
	`CREATE TABLE IF NOT EXISTS currency_exchanges (
		seq             BIGSERIAL PRIMARY KEY,
		event_id        TEXT        NOT NULL UNIQUE,
		day             DATE        NOT NULL,
		buy_account_id  BIGINT      NOT NULL REFERENCES balance_accounts (account_id),
		bought          NUMERIC     NOT NULL,
		sell_account_id BIGINT      NOT NULL REFERENCES balance_accounts (account_id),
		sold            NUMERIC     NOT NULL,
		rate            NUMERIC     NOT NULL,
		occurred_at     TIMESTAMPTZ NOT NULL,
		agent           TEXT        NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS currency_exchanges_day_idx ON currency_exchanges (day)`,
}

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	pool dbtx
}

// db returns the transaction of the batch running in ctx, or the pool.
func (r *BaseRepository) db(ctx context.Context) dbtx {
	if b := batchFromContext(ctx); b != nil {
		return b.tx
	}
	return r.pool
}

// EnsureSchema creates the ledger, balance and batch tables if they are missing.
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := dbPool.Exec(ctx, stmt); err != nil {
			return apperrors.NewAppError(500, "failed to prepare schema", err)
		}
	}
	return nil
}
