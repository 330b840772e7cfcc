package pgsql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/adiosmsu/budgeter/internal/apperrors"
	"github.com/adiosmsu/budgeter/internal/core/domain"
	portsrepo "github.com/adiosmsu/budgeter/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Treasury keeps balance accounts in balance_accounts. Inside a batch every
// statement runs on the batch transaction.
type Treasury struct {
	BaseRepository
}

// NewTreasury creates a Treasury on pool.
func NewTreasury(pool *pgxpool.Pool) *Treasury {
	return &Treasury{BaseRepository: BaseRepository{pool: pool}}
}

var _ portsrepo.Treasury = (*Treasury)(nil)

// RegisterAccount creates an account with a zero balance. It returns the
// existing account and false when name is already taken.
func (t *Treasury) RegisterAccount(ctx context.Context, name string, unit domain.Unit) (domain.BalanceAccount, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.BalanceAccount{}, false, fmt.Errorf("%w: account name is required", apperrors.ErrValidation)
	}
	if _, err := domain.NewUnit(string(unit)); err != nil {
		return domain.BalanceAccount{}, false, err
	}

	query := `
		INSERT INTO balance_accounts (name, unit)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
		RETURNING account_id;
	`
	var id int64
	err := t.db(ctx).QueryRow(ctx, query, name, string(unit)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, err := t.GetAccount(ctx, name)
		if err != nil {
			return domain.BalanceAccount{}, false, err
		}
		return *existing, false, nil
	}
	if err != nil {
		return domain.BalanceAccount{}, false, fmt.Errorf("failed to register account %q: %w", name, err)
	}
	return domain.BalanceAccount{ID: id, Name: name, Unit: unit}, true, nil
}

// GetAccount returns apperrors.ErrNotFound for unknown names.
func (t *Treasury) GetAccount(ctx context.Context, name string) (*domain.BalanceAccount, error) {
	name = strings.TrimSpace(name)
	query := `SELECT account_id, name, unit FROM balance_accounts WHERE name = $1;`
	var (
		account domain.BalanceAccount
		unit    string
	)
	err := t.db(ctx).QueryRow(ctx, query, name).Scan(&account.ID, &account.Name, &unit)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("account %q", name))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account %q: %w", name, err)
	}
	account.Unit = domain.Unit(unit)
	return &account, nil
}

func (t *Treasury) GetAmount(ctx context.Context, account domain.BalanceAccount) (decimal.Decimal, error) {
	query := `SELECT balance FROM balance_accounts WHERE account_id = $1;`
	var balance decimal.Decimal
	err := t.db(ctx).QueryRow(ctx, query, account.ID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, apperrors.NewNotFoundError(fmt.Sprintf("account %q", account.Name))
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read balance of %q: %w", account.Name, err)
	}
	return balance, nil
}

// AddAmount moves the balance of account by amount in direction.
func (t *Treasury) AddAmount(ctx context.Context, account domain.BalanceAccount, direction domain.Direction, amount decimal.Decimal) (decimal.Decimal, error) {
	if !direction.Valid() {
		return decimal.Zero, fmt.Errorf("%w: unknown direction %d", apperrors.ErrValidation, int(direction))
	}
	query := `
		UPDATE balance_accounts
		SET balance = balance + $2
		WHERE account_id = $1
		RETURNING balance;
	`
	var balance decimal.Decimal
	err := t.db(ctx).QueryRow(ctx, query, account.ID, direction.AppropriateMutationAmount(amount)).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, apperrors.NewNotFoundError(fmt.Sprintf("account %q", account.Name))
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to update balance of %q: %w", account.Name, err)
	}
	return balance, nil
}
