package memory

import (
	"context"
	"fmt"

	"github.com/adiosmsu/budgeter/internal/apperrors"
	"github.com/adiosmsu/budgeter/internal/core/domain"
	portsrepo "github.com/adiosmsu/budgeter/internal/core/ports/repositories"
	"github.com/adiosmsu/budgeter/internal/platform/indexed"
	"github.com/shopspring/decimal"
)

// ExchangeRateRepository is the day-bucketed rate store.
type ExchangeRateRepository struct {
	table *indexed.Table[domain.Day, domain.ConversionRate]
	settings
}

// NewExchangeRateRepository creates an empty rate store.
func NewExchangeRateRepository(opts ...Option) *ExchangeRateRepository {
	s := newSettings(opts)
	return &ExchangeRateRepository{
		table:    indexed.New[domain.Day, domain.ConversionRate](domain.CompareDays, s.timeout),
		settings: s,
	}
}

var _ portsrepo.ExchangeRateRepositoryFacade = (*ExchangeRateRepository)(nil)

// AddRate stores rate for (day, from, to). It returns false without touching
// the store when that direction is already known for day.
func (r *ExchangeRateRepository) AddRate(ctx context.Context, day domain.Day, from, to domain.Unit, rate decimal.Decimal) (bool, error) {
	if from == to {
		return false, fmt.Errorf("%w: cannot store a rate from %s to itself", apperrors.ErrValidation, from)
	}
	if !rate.IsPositive() {
		return false, fmt.Errorf("%w: rate %s for %s/%s must be positive", apperrors.ErrValidation, rate, from, to)
	}

	pair := domain.NewPair(from, to)
	id := r.table.NextID()
	row := func() domain.ConversionRate {
		return domain.ConversionRate{ID: id, Day: day, Pair: pair, Rate: domain.Normalize(rate)}
	}
	notSamePair := func(existing domain.ConversionRate) bool {
		return existing.Pair != pair
	}
	return r.table.InsertIndexed(id, day, row, notSamePair)
}

// GetConversionMultiplierStraight looks up the exact stored direction.
func (r *ExchangeRateRepository) GetConversionMultiplierStraight(ctx context.Context, day domain.Day, from, to domain.Unit) (decimal.Decimal, bool, error) {
	rows, err := r.table.GetIndexed(day)
	if err != nil {
		return decimal.Zero, false, err
	}
	rate, ok := straight(rows, from, to)
	return rate, ok, nil
}

// GetConversionMultiplierBidirectional falls back to inverting the reverse row.
// A unit converts into itself with a multiplier of one.
func (r *ExchangeRateRepository) GetConversionMultiplierBidirectional(ctx context.Context, day domain.Day, from, to domain.Unit) (decimal.Decimal, bool, error) {
	rows, err := r.table.GetIndexed(day)
	if err != nil {
		return decimal.Zero, false, err
	}
	rate, ok := bidirectional(rows, from, to)
	return rate, ok, nil
}

// GetConversionMultiplierWithIntermediate returns hub->to / hub->from, both
// looked up bidirectionally on day.
func (r *ExchangeRateRepository) GetConversionMultiplierWithIntermediate(ctx context.Context, day domain.Day, from, to, hub domain.Unit) (decimal.Decimal, bool, error) {
	rows, err := r.table.GetIndexed(day)
	if err != nil {
		return decimal.Zero, false, err
	}
	rate, ok := intermediate(rows, from, to, hub)
	return rate, ok, nil
}

// GetLatestConversionMultiplier scans day buckets newest first and returns
// the first exact-direction match.
func (r *ExchangeRateRepository) GetLatestConversionMultiplier(ctx context.Context, from, to domain.Unit) (decimal.Decimal, bool, error) {
	return r.latest(func(rows []domain.ConversionRate) (decimal.Decimal, bool) {
		return straight(rows, from, to)
	})
}

// GetLatestConversionMultiplierBidirectional is the bidirectional lookup on
// the newest day that can answer it.
func (r *ExchangeRateRepository) GetLatestConversionMultiplierBidirectional(ctx context.Context, from, to domain.Unit) (decimal.Decimal, bool, error) {
	return r.latest(func(rows []domain.ConversionRate) (decimal.Decimal, bool) {
		return bidirectional(rows, from, to)
	})
}

// GetLatestConversionMultiplierWithIntermediate triangulates on the newest day
// holding both hub-relative rates. Both legs always come from the same day.
func (r *ExchangeRateRepository) GetLatestConversionMultiplierWithIntermediate(ctx context.Context, from, to, hub domain.Unit) (decimal.Decimal, bool, error) {
	return r.latest(func(rows []domain.ConversionRate) (decimal.Decimal, bool) {
		return intermediate(rows, from, to, hub)
	})
}

// IsRateStale reports whether today's bucket holds no row involving unit.
func (r *ExchangeRateRepository) IsRateStale(ctx context.Context, unit domain.Unit) (bool, error) {
	rows, err := r.table.GetIndexed(domain.DayOf(r.now()))
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if row.Pair.Involves(unit) {
			return false, nil
		}
	}
	return true, nil
}

// GetIndexedForDay returns every row of day in insertion order.
func (r *ExchangeRateRepository) GetIndexedForDay(ctx context.Context, day domain.Day) ([]domain.ConversionRate, error) {
	return r.table.GetIndexed(day)
}

// Clear drops all rates. Not safe to call concurrently with anything else.
func (r *ExchangeRateRepository) Clear() {
	r.table.Clear()
}

func (r *ExchangeRateRepository) latest(match func([]domain.ConversionRate) (decimal.Decimal, bool)) (decimal.Decimal, bool, error) {
	var (
		found decimal.Decimal
		ok    bool
	)
	err := r.table.ScanDescending(func(_ domain.Day, rows []domain.ConversionRate) bool {
		found, ok = match(rows)
		return !ok
	})
	if err != nil {
		return decimal.Zero, false, err
	}
	return found, ok, nil
}

func straight(rows []domain.ConversionRate, from, to domain.Unit) (decimal.Decimal, bool) {
	want := domain.NewPair(from, to)
	for _, row := range rows {
		if row.Pair == want {
			return row.Rate, true
		}
	}
	return decimal.Zero, false
}

func bidirectional(rows []domain.ConversionRate, from, to domain.Unit) (decimal.Decimal, bool) {
	if from == to {
		return decimal.NewFromInt(1), true
	}
	if rate, ok := straight(rows, from, to); ok {
		return rate, true
	}
	if rate, ok := straight(rows, to, from); ok {
		return domain.ReverseRate(rate), true
	}
	return decimal.Zero, false
}

func intermediate(rows []domain.ConversionRate, from, to, hub domain.Unit) (decimal.Decimal, bool) {
	hubToFrom, ok := bidirectional(rows, hub, from)
	if !ok {
		return decimal.Zero, false
	}
	hubToTo, ok := bidirectional(rows, hub, to)
	if !ok {
		return decimal.Zero, false
	}
	return domain.Triangulate(hubToFrom, hubToTo), true
}
