package repositories

import (
	"context"

	"github.com/adiosmsu/budgeter/internal/core/domain"
	"github.com/shopspring/decimal"
)

// TreasuryReader defines read operations for balance accounts.
type TreasuryReader interface {
	// GetAccount returns apperrors.ErrNotFound for unknown names.
	GetAccount(ctx context.Context, name string) (*domain.BalanceAccount, error)
	GetAmount(ctx context.Context, account domain.BalanceAccount) (decimal.Decimal, error)
}

// TreasuryWriter defines write operations for balance accounts.
type TreasuryWriter interface {
	// RegisterAccount returns false if the name is taken.
	RegisterAccount(ctx context.Context, name string, unit domain.Unit) (domain.BalanceAccount, bool, error)
	// AddAmount mutates the account balance in direction and returns the new balance.
	AddAmount(ctx context.Context, account domain.BalanceAccount, direction domain.Direction, amount decimal.Decimal) (decimal.Decimal, error)
}

// Treasury combines all balance account interfaces
type Treasury interface {
	TreasuryReader
	TreasuryWriter
}
