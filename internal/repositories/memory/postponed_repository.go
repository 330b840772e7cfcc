package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/adiosmsu/budgeter/internal/apperrors"
	"github.com/adiosmsu/budgeter/internal/core/domain"
	portsrepo "github.com/adiosmsu/budgeter/internal/core/ports/repositories"
	"github.com/adiosmsu/budgeter/internal/platform/indexed"
	"github.com/shopspring/decimal"
)

// PostponedRepository keeps mutations and exchanges that could not be priced,
// each table bucketed by the entry's creation day.
type PostponedRepository struct {
	mutations *indexed.Table[domain.Day, domain.PostponedMutationEvent]
	exchanges *indexed.Table[domain.Day, domain.PostponedExchange]
}

// NewPostponedRepository creates an empty postponement store.
func NewPostponedRepository(opts ...Option) *PostponedRepository {
	s := newSettings(opts)
	return &PostponedRepository{
		mutations: indexed.New[domain.Day, domain.PostponedMutationEvent](domain.CompareDays, s.timeout),
		exchanges: indexed.New[domain.Day, domain.PostponedExchange](domain.CompareDays, s.timeout),
	}
}

var _ portsrepo.PostponedRepositoryFacade = (*PostponedRepository)(nil)

func (r *PostponedRepository) RememberPostponedExchangeableEvent(ctx context.Context, event domain.FundsMutationEvent, direction domain.Direction, conversionUnit domain.Unit, customRate *decimal.Decimal) (domain.PostponedMutationEvent, error) {
	if !direction.Valid() {
		return domain.PostponedMutationEvent{}, fmt.Errorf("%w: unknown direction %d", apperrors.ErrValidation, int(direction))
	}
	if event.Unit == conversionUnit {
		return domain.PostponedMutationEvent{}, fmt.Errorf("%w: event is already in %s", apperrors.ErrValidation, conversionUnit)
	}
	if err := validateCustomRate(customRate); err != nil {
		return domain.PostponedMutationEvent{}, err
	}

	id := r.mutations.NextID()
	entry := domain.PostponedMutationEvent{
		ID:             id,
		Direction:      direction,
		Event:          event,
		ConversionUnit: conversionUnit,
		CustomRate:     customRate,
	}
	if _, err := r.mutations.InsertIndexed(id, entry.Day(), func() domain.PostponedMutationEvent { return entry }, nil); err != nil {
		return domain.PostponedMutationEvent{}, err
	}
	return entry, nil
}

func (r *PostponedRepository) RememberPostponedExchangeableBenefit(ctx context.Context, event domain.FundsMutationEvent, conversionUnit domain.Unit, customRate *decimal.Decimal) (domain.PostponedMutationEvent, error) {
	return r.RememberPostponedExchangeableEvent(ctx, event, domain.Benefit, conversionUnit, customRate)
}

func (r *PostponedRepository) RememberPostponedExchangeableLoss(ctx context.Context, event domain.FundsMutationEvent, conversionUnit domain.Unit, customRate *decimal.Decimal) (domain.PostponedMutationEvent, error) {
	return r.RememberPostponedExchangeableEvent(ctx, event, domain.Loss, conversionUnit, customRate)
}

func (r *PostponedRepository) RememberPostponedExchange(ctx context.Context, amountToBuy decimal.Decimal, buyAccount, sellAccount domain.BalanceAccount, customRate *decimal.Decimal, timestamp time.Time, agent domain.Agent) (domain.PostponedExchange, error) {
	if !amountToBuy.IsPositive() {
		return domain.PostponedExchange{}, fmt.Errorf("%w: amount to buy must be positive", apperrors.ErrValidation)
	}
	if buyAccount.Unit == sellAccount.Unit {
		return domain.PostponedExchange{}, fmt.Errorf("%w: both accounts hold %s", apperrors.ErrValidation, buyAccount.Unit)
	}
	if err := validateCustomRate(customRate); err != nil {
		return domain.PostponedExchange{}, err
	}

	id := r.exchanges.NextID()
	entry := domain.PostponedExchange{
		ID:          id,
		AmountToBuy: amountToBuy,
		BuyAccount:  buyAccount,
		SellAccount: sellAccount,
		CustomRate:  customRate,
		Timestamp:   timestamp,
		Agent:       agent,
	}
	if _, err := r.exchanges.InsertIndexed(id, entry.Day(), func() domain.PostponedExchange { return entry }, nil); err != nil {
		return domain.PostponedExchange{}, err
	}
	return entry, nil
}

func (r *PostponedRepository) StreamRememberedBenefits(ctx context.Context, day domain.Day, a, b domain.Unit) ([]domain.PostponedMutationEvent, error) {
	return r.streamMutations(day, a, b, domain.Benefit)
}

func (r *PostponedRepository) StreamRememberedLosses(ctx context.Context, day domain.Day, a, b domain.Unit) ([]domain.PostponedMutationEvent, error) {
	return r.streamMutations(day, a, b, domain.Loss)
}

func (r *PostponedRepository) StreamRememberedExchanges(ctx context.Context, day domain.Day, a, b domain.Unit) ([]domain.PostponedExchange, error) {
	rows, err := r.exchanges.GetIndexed(day)
	if err != nil {
		return nil, err
	}
	var matched []domain.PostponedExchange
	for _, row := range rows {
		if row.Pair().Matches(a, b) {
			matched = append(matched, row)
		}
	}
	return matched, nil
}

// StreamAllPostponingReasons returns, for every day holding postponed
// entries, the sorted union of units those entries involve. Days ascend.
func (r *PostponedRepository) StreamAllPostponingReasons(ctx context.Context) ([]domain.PostponingReason, error) {
	units := make(map[domain.Day][]domain.Unit)

	for _, day := range r.mutations.Keys() {
		rows, err := r.mutations.GetIndexed(day)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			units[day] = append(units[day], row.Event.Unit, row.ConversionUnit)
		}
	}
	for _, day := range r.exchanges.Keys() {
		rows, err := r.exchanges.GetIndexed(day)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			units[day] = append(units[day], row.BuyAccount.Unit, row.SellAccount.Unit)
		}
	}

	reasons := make([]domain.PostponingReason, 0, len(units))
	for day, involved := range units {
		if len(involved) == 0 {
			continue
		}
		reasons = append(reasons, domain.PostponingReason{Day: day, Units: domain.SortUnits(involved)})
	}
	slices.SortFunc(reasons, func(a, b domain.PostponingReason) int {
		return domain.CompareDays(a.Day, b.Day)
	})
	return reasons, nil
}

func (r *PostponedRepository) ForgetMutation(ctx context.Context, entry domain.PostponedMutationEvent) error {
	return r.mutations.Remove(entry.ID, entry.Day())
}

func (r *PostponedRepository) ForgetExchange(ctx context.Context, entry domain.PostponedExchange) error {
	return r.exchanges.Remove(entry.ID, entry.Day())
}

// Clear drops every postponed entry. Not safe to run concurrently.
func (r *PostponedRepository) Clear() {
	r.mutations.Clear()
	r.exchanges.Clear()
}

func (r *PostponedRepository) streamMutations(day domain.Day, a, b domain.Unit, direction domain.Direction) ([]domain.PostponedMutationEvent, error) {
	rows, err := r.mutations.GetIndexed(day)
	if err != nil {
		return nil, err
	}
	var matched []domain.PostponedMutationEvent
	for _, row := range rows {
		if row.Direction == direction && row.Pair().Matches(a, b) {
			matched = append(matched, row)
		}
	}
	return matched, nil
}

func validateCustomRate(rate *decimal.Decimal) error {
	if rate != nil && !rate.IsPositive() {
		return fmt.Errorf("%w: custom rate must be positive", apperrors.ErrValidation)
	}
	return nil
}
