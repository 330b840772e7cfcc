package memory

import (
	"context"
	"fmt"

	"github.com/adiosmsu/budgeter/internal/apperrors"
	"github.com/adiosmsu/budgeter/internal/core/domain"
	portsrepo "github.com/adiosmsu/budgeter/internal/core/ports/repositories"
	"github.com/adiosmsu/budgeter/internal/platform/indexed"
)

// Accounter is the in-memory ledger. It owns the postponed entries as well
// and drops them once they are reconciled.
type Accounter struct {
	*PostponedRepository

	mutations   *indexed.Table[domain.Day, domain.FundsMutationEvent]
	exchanges   *indexed.Table[domain.Day, domain.CurrencyExchangeEvent]
	mutationIDs indexed.Unique[string]
	exchangeIDs indexed.Unique[string]
}

// NewAccounter creates an empty ledger.
func NewAccounter(opts ...Option) *Accounter {
	s := newSettings(opts)
	return &Accounter{
		PostponedRepository: NewPostponedRepository(opts...),
		mutations:           indexed.New[domain.Day, domain.FundsMutationEvent](domain.CompareDays, s.timeout),
		exchanges:           indexed.New[domain.Day, domain.CurrencyExchangeEvent](domain.CompareDays, s.timeout),
	}
}

var _ portsrepo.Accounter = (*Accounter)(nil)

// RegisterFundsMutation appends event to the ledger of its day.
// Registering the same event ID twice fails with apperrors.ErrDuplicate.
func (a *Accounter) RegisterFundsMutation(ctx context.Context, event domain.FundsMutationEvent) error {
	if event.ID == "" {
		return fmt.Errorf("%w: funds mutation without id", apperrors.ErrValidation)
	}
	id := a.mutations.NextID()
	ok, err := a.mutations.InsertIndexed(id, event.Day(), func() domain.FundsMutationEvent { return event }, nil, a.mutationIDs.Check(event.ID))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: funds mutation %s", apperrors.ErrDuplicate, event.ID)
	}
	return nil
}

// RegisterCurrencyExchange appends event to the ledger of its day.
func (a *Accounter) RegisterCurrencyExchange(ctx context.Context, event domain.CurrencyExchangeEvent) error {
	if event.ID == "" {
		return fmt.Errorf("%w: currency exchange without id", apperrors.ErrValidation)
	}
	id := a.exchanges.NextID()
	day := domain.DayOf(event.Timestamp)
	ok, err := a.exchanges.InsertIndexed(id, day, func() domain.CurrencyExchangeEvent { return event }, nil, a.exchangeIDs.Check(event.ID))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: currency exchange %s", apperrors.ErrDuplicate, event.ID)
	}
	return nil
}

func (a *Accounter) ListFundsMutations(ctx context.Context, day domain.Day) ([]domain.FundsMutationEvent, error) {
	return a.mutations.GetIndexed(day)
}

func (a *Accounter) ListCurrencyExchanges(ctx context.Context, day domain.Day) ([]domain.CurrencyExchangeEvent, error) {
	return a.exchanges.GetIndexed(day)
}

func (a *Accounter) MarkReconciledMutation(ctx context.Context, entry domain.PostponedMutationEvent) error {
	return a.ForgetMutation(ctx, entry)
}

func (a *Accounter) MarkReconciledExchange(ctx context.Context, entry domain.PostponedExchange) error {
	return a.ForgetExchange(ctx, entry)
}

// Clear drops the ledger and every postponed entry. Not safe to run concurrently.
func (a *Accounter) Clear() {
	a.PostponedRepository.Clear()
	a.mutations.Clear()
	a.exchanges.Clear()
	a.mutationIDs.Clear()
	a.exchangeIDs.Clear()
}
