package repositories

import (
	"context"

	"github.com/adiosmsu/budgeter/internal/core/domain"
	"github.com/shopspring/decimal"
)

// ExchangeRateReader defines read operations for learned conversion rates.
// Absent rates are reported as (zero, false, nil); errors mean a broken store invariant.
type ExchangeRateReader interface {
	// GetConversionMultiplierStraight looks up the exact direction only.
	GetConversionMultiplierStraight(ctx context.Context, day domain.Day, from, to domain.Unit) (decimal.Decimal, bool, error)
	// GetConversionMultiplierBidirectional falls back to the inverted reverse row.
	GetConversionMultiplierBidirectional(ctx context.Context, day domain.Day, from, to domain.Unit) (decimal.Decimal, bool, error)
	// GetConversionMultiplierWithIntermediate triangulates through hub.
	GetConversionMultiplierWithIntermediate(ctx context.Context, day domain.Day, from, to, hub domain.Unit) (decimal.Decimal, bool, error)

	GetLatestConversionMultiplier(ctx context.Context, from, to domain.Unit) (decimal.Decimal, bool, error)
	GetLatestConversionMultiplierBidirectional(ctx context.Context, from, to domain.Unit) (decimal.Decimal, bool, error)
	GetLatestConversionMultiplierWithIntermediate(ctx context.Context, from, to, hub domain.Unit) (decimal.Decimal, bool, error)

	// IsRateStale reports whether no row involving unit exists for today.
	IsRateStale(ctx context.Context, unit domain.Unit) (bool, error)
	// GetIndexedForDay returns the day bucket.
	GetIndexedForDay(ctx context.Context, day domain.Day) ([]domain.ConversionRate, error)
}

// ExchangeRateWriter defines write operations for learned conversion rates.
type ExchangeRateWriter interface {
	// AddRate returns false if (day, from, to) is already stored.
	AddRate(ctx context.Context, day domain.Day, from, to domain.Unit, rate decimal.Decimal) (bool, error)
}

// ExchangeRateRepositoryFacade combines all exchange rate-related repository interfaces
type ExchangeRateRepositoryFacade interface {
	ExchangeRateReader
	ExchangeRateWriter
}
