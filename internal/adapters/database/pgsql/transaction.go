package pgsql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adiosmsu/budgeter/internal/apperrors"
	portsrepo "github.com/adiosmsu/budgeter/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbtx is what repositories need from either the pool or a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// txKey is the key type for storing the running batch in context.
type txKey struct{}

// batch is the state of one Execute call. Tasks run one after another, so
// afterCommit needs no locking.
type batch struct {
	tx          dbtx
	afterCommit []func(ctx context.Context) error
}

func withBatch(ctx context.Context, b *batch) context.Context {
	return context.WithValue(ctx, txKey{}, b)
}

func batchFromContext(ctx context.Context) *batch {
	if b, ok := ctx.Value(txKey{}).(*batch); ok {
		return b
	}
	return nil
}

// AfterCommit runs fn once the batch running in ctx commits, and drops it if
// the batch rolls back. Outside a batch fn runs immediately.
func AfterCommit(ctx context.Context, fn func(ctx context.Context) error) error {
	if b := batchFromContext(ctx); b != nil {
		b.afterCommit = append(b.afterCommit, fn)
		return nil
	}
	return fn(ctx)
}

// TransactionalSupport runs replay batches inside one PostgreSQL transaction.
// The Treasury and Accounter of this package pick the transaction up from the
// context, so a failed batch leaves no ledger rows and no balance changes.
type TransactionalSupport struct {
	db  *pgxpool.Pool
	now func() time.Time
}

var _ portsrepo.TransactionalSupport = (*TransactionalSupport)(nil)

// NewTransactionalSupport creates a new TransactionalSupport.
func NewTransactionalSupport(db *pgxpool.Pool) *TransactionalSupport {
	return &TransactionalSupport{db: db, now: time.Now}
}

// Execute runs every task with the transaction stored in ctx. All tasks run
// even after a failure; any failure rolls the batch back and the failures are
// returned joined. After-commit hooks run only once the commit succeeded.
func (s *TransactionalSupport) Execute(ctx context.Context, tasks ...func(ctx context.Context) error) (err error) {
	startedAt := s.now()
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return apperrors.NewAppError(500, "failed to begin transaction", err)
	}
	defer func() {
		// a committed transaction reports ErrTxClosed here
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	b := &batch{tx: tx}
	txCtx := withBatch(ctx, b)
	var errs []error
	for _, task := range tasks {
		if taskErr := task(txCtx); taskErr != nil {
			errs = append(errs, taskErr)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO reconciliation_batches (task_count, started_at, finished_at)
		VALUES ($1, $2, $3)
	`, len(tasks), startedAt, s.now())
	if err != nil {
		return fmt.Errorf("error recording reconciliation batch: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return apperrors.NewAppError(500, "failed to commit transaction", err)
	}
	return b.committed(ctx)
}

func (b *batch) committed(ctx context.Context) error {
	var errs []error
	for _, fn := range b.afterCommit {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	b.afterCommit = nil
	return errors.Join(errs...)
}
