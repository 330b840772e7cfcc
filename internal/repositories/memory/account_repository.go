package memory

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adiosmsu/budgeter/internal/apperrors"
	"github.com/adiosmsu/budgeter/internal/core/domain"
	portsrepo "github.com/adiosmsu/budgeter/internal/core/ports/repositories"
	"github.com/adiosmsu/budgeter/internal/platform/indexed"
	"github.com/shopspring/decimal"
)

// Treasury keeps balance accounts with unique names and their balances.
type Treasury struct {
	accounts *indexed.Table[string, domain.BalanceAccount]
	names    indexed.Unique[string]
	balances sync.Map // int64 -> *atomic.Pointer[decimal.Decimal]
	settings
}

// NewTreasury creates an empty treasury.
func NewTreasury(opts ...Option) *Treasury {
	s := newSettings(opts)
	return &Treasury{
		accounts: indexed.New[string, domain.BalanceAccount](strings.Compare, s.timeout),
		settings: s,
	}
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

	id := t.accounts.NextID()
	account := domain.BalanceAccount{ID: id, Name: name, Unit: unit}
	inserted := t.accounts.Insert(id, func() domain.BalanceAccount {
		zero := decimal.Zero
		balance := &atomic.Pointer[decimal.Decimal]{}
		balance.Store(&zero)
		t.balances.Store(id, balance)
		return account
	}, t.names.Check(name))
	if !inserted {
		existing, err := t.GetAccount(ctx, name)
		if err != nil {
			return domain.BalanceAccount{}, false, err
		}
		return *existing, false, nil
	}
	return account, true, nil
}

func (t *Treasury) GetAccount(ctx context.Context, name string) (*domain.BalanceAccount, error) {
	id, ok := t.names.Owner(strings.TrimSpace(name))
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("account %q", name))
	}
	deadline := time.Now().Add(t.timeout)
	for {
		if account, ok := t.accounts.Get(id); ok {
			return &account, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: account %q is claimed but absent", apperrors.ErrIllegalConcurrentState, name)
		}
		runtime.Gosched()
	}
}

func (t *Treasury) GetAmount(ctx context.Context, account domain.BalanceAccount) (decimal.Decimal, error) {
	balance, err := t.balance(account)
	if err != nil {
		return decimal.Zero, err
	}
	return *balance.Load(), nil
}

// AddAmount moves the balance of account by amount in direction.
func (t *Treasury) AddAmount(ctx context.Context, account domain.BalanceAccount, direction domain.Direction, amount decimal.Decimal) (decimal.Decimal, error) {
	if !direction.Valid() {
		return decimal.Zero, fmt.Errorf("%w: unknown direction %d", apperrors.ErrValidation, int(direction))
	}
	balance, err := t.balance(account)
	if err != nil {
		return decimal.Zero, err
	}

	deadline := time.Now().Add(t.timeout)
	for {
		stale := balance.Load()
		fresh := direction.AmountToSet(*stale, amount)
		if balance.CompareAndSwap(stale, &fresh) {
			return fresh, nil
		}
		if time.Now().After(deadline) {
			return decimal.Zero, fmt.Errorf("%w: updating balance of %q", apperrors.ErrIndexTimeout, account.Name)
		}
		runtime.Gosched()
	}
}

// Clear drops every account. Not safe to run concurrently.
func (t *Treasury) Clear() {
	t.accounts.Clear()
	t.names.Clear()
	t.balances.Clear()
}

func (t *Treasury) balance(account domain.BalanceAccount) (*atomic.Pointer[decimal.Decimal], error) {
	v, ok := t.balances.Load(account.ID)
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("account %q", account.Name))
	}
	return v.(*atomic.Pointer[decimal.Decimal]), nil
}
