package pgsql

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/adiosmsu/budgeter/internal/apperrors"
	"github.com/adiosmsu/budgeter/internal/core/domain"
	"github.com/adiosmsu/budgeter/internal/repositories/memory"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mock dbtx ---
type MockDB struct {
	mock.Mock
}

func (m *MockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	ret := m.Called(ctx, sql, args)
	return ret.Get(0).(pgconn.CommandTag), ret.Error(1)
}

func (m *MockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	ret := m.Called(ctx, sql, args)
	rows, _ := ret.Get(0).(pgx.Rows)
	return rows, ret.Error(1)
}

func (m *MockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	ret := m.Called(ctx, sql, args)
	return ret.Get(0).(pgx.Row)
}

var _ dbtx = (*MockDB)(nil)

// fakeRow scans values into the destinations in order.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.values[i]))
	}
	return nil
}

func statement(fragment string) any {
	return mock.MatchedBy(func(sql string) bool { return strings.Contains(sql, fragment) })
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var cash = domain.BalanceAccount{ID: 7, Name: "cash", Unit: "RUB"}

func TestTreasury_AddAmountRunsOnBatchTransaction(t *testing.T) {
	pool, tx := new(MockDB), new(MockDB)
	treasury := &Treasury{BaseRepository: BaseRepository{pool: pool}}

	signedDelta := mock.MatchedBy(func(args []any) bool {
		return len(args) == 2 && args[0] == cash.ID && args[1].(decimal.Decimal).Equal(dec("-5"))
	})
	tx.On("QueryRow", mock.Anything, statement("UPDATE balance_accounts"), signedDelta).
		Return(fakeRow{values: []any{dec("95")}}).Once()

	ctx := withBatch(context.Background(), &batch{tx: tx})
	balance, err := treasury.AddAmount(ctx, cash, domain.Loss, dec("5"))
	require.NoError(t, err)
	assert.Equal(t, "95", balance.String())

	tx.AssertExpectations(t)
	pool.AssertNotCalled(t, "QueryRow", mock.Anything, mock.Anything, mock.Anything)
}

func TestTreasury_UnknownAccountIsNotFound(t *testing.T) {
	pool := new(MockDB)
	treasury := &Treasury{BaseRepository: BaseRepository{pool: pool}}
	pool.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).Return(fakeRow{err: pgx.ErrNoRows})

	_, err := treasury.GetAmount(context.Background(), cash)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = treasury.AddAmount(context.Background(), cash, domain.Benefit, dec("1"))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = treasury.GetAccount(context.Background(), "cash")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestTreasury_RegisterAccount(t *testing.T) {
	pool := new(MockDB)
	treasury := &Treasury{BaseRepository: BaseRepository{pool: pool}}

	pool.On("QueryRow", mock.Anything, statement("INSERT INTO balance_accounts"), []any{"cash", "RUB"}).
		Return(fakeRow{values: []any{int64(7)}}).Once()
	account, created, err := treasury.RegisterAccount(context.Background(), " cash ", "RUB")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, cash, account)

	// a taken name returns the existing account
	pool.On("QueryRow", mock.Anything, statement("INSERT INTO balance_accounts"), []any{"cash", "RUB"}).
		Return(fakeRow{err: pgx.ErrNoRows}).Once()
	pool.On("QueryRow", mock.Anything, statement("SELECT account_id, name, unit"), []any{"cash"}).
		Return(fakeRow{values: []any{int64(7), "cash", "RUB"}}).Once()
	account, created, err = treasury.RegisterAccount(context.Background(), "cash", "RUB")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, cash, account)

	_, _, err = treasury.RegisterAccount(context.Background(), "  ", "RUB")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	pool.AssertExpectations(t)
}

func TestAccounter_DuplicateEventID(t *testing.T) {
	pool := new(MockDB)
	accounter := NewAccounter(nil, memory.NewPostponedRepository())
	accounter.pool = pool

	event := domain.FundsMutationEvent{
		ID:        "evt-1",
		Amount:    dec("-1000"),
		Unit:      "RUB",
		Account:   cash,
		Subject:   domain.Subject{Name: "rent"},
		Quantity:  1,
		Timestamp: time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC),
	}
	pool.On("Exec", mock.Anything, statement("INSERT INTO funds_mutations"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil).Once()
	pool.On("Exec", mock.Anything, statement("INSERT INTO funds_mutations"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 0"), nil).Once()

	require.NoError(t, accounter.RegisterFundsMutation(context.Background(), event))
	assert.ErrorIs(t, accounter.RegisterFundsMutation(context.Background(), event), apperrors.ErrDuplicate)

	event.ID = ""
	assert.ErrorIs(t, accounter.RegisterFundsMutation(context.Background(), event), apperrors.ErrValidation)
	pool.AssertExpectations(t)
}

func TestAccounter_ForgetsReconciledEntriesOnCommit(t *testing.T) {
	ctx := context.Background()
	postponed := memory.NewPostponedRepository()
	accounter := NewAccounter(nil, postponed)
	ts := time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC)
	day := domain.DayOf(ts)

	remember := func(amount string) domain.PostponedMutationEvent {
		entry, err := accounter.RememberPostponedExchangeableBenefit(ctx, domain.FundsMutationEvent{
			ID: "evt-" + amount, Amount: dec(amount), Unit: "EUR", Account: cash, Quantity: 1, Timestamp: ts,
		}, "RUB", nil)
		require.NoError(t, err)
		return entry
	}
	pending := func() int {
		entries, err := accounter.StreamRememberedBenefits(ctx, day, "EUR", "RUB")
		require.NoError(t, err)
		return len(entries)
	}

	committed := remember("10")
	rolledBack := remember("20")

	b := &batch{tx: new(MockDB)}
	require.NoError(t, accounter.MarkReconciledMutation(withBatch(ctx, b), committed))
	assert.Equal(t, 2, pending())
	require.NoError(t, b.committed(ctx))
	assert.Equal(t, 1, pending())

	// a batch that never commits keeps its entries
	abandoned := &batch{tx: new(MockDB)}
	require.NoError(t, accounter.MarkReconciledMutation(withBatch(ctx, abandoned), rolledBack))
	assert.Equal(t, 1, pending())

	// outside a batch the entry goes at once
	require.NoError(t, accounter.MarkReconciledMutation(ctx, rolledBack))
	assert.Equal(t, 0, pending())
}

func TestAfterCommit_OutsideBatchRunsNow(t *testing.T) {
	ran := false
	require.NoError(t, AfterCommit(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
	assert.Nil(t, batchFromContext(context.WithValue(context.Background(), txKey{}, "not a batch")))
}
