package services

import (
	"context"

	"github.com/adiosmsu/budgeter/internal/core/domain"
	"github.com/shopspring/decimal"
)

// RateResolverSvc defines conversion multiplier lookups. An unresolvable rate
// is reported as (zero, false, nil); errors mean a broken store invariant.
type RateResolverSvc interface {
	// Resolve runs the full resolution for day, fetching from loaders as needed.
	// attemptCacheFirst consults stored rates before any fetch.
	Resolve(ctx context.Context, day domain.Day, from, to domain.Unit, attemptCacheFirst bool) (decimal.Decimal, bool, error)
	// ConversionMultiplier is Resolve with the cache consulted first.
	ConversionMultiplier(ctx context.Context, day domain.Day, from, to domain.Unit) (decimal.Decimal, bool, error)
	// LatestMultiplier answers from stored rates only, newest day first.
	LatestMultiplier(ctx context.Context, from, to domain.Unit) (decimal.Decimal, bool, error)
	IsRateStale(ctx context.Context, unit domain.Unit) (bool, error)
}

// ReconcilerSvc defines the reconciliation sweep over postponed entries.
type ReconcilerSvc interface {
	ProcessAllPostponedEvents(ctx context.Context) (*domain.SweepReport, error)
	// Wait blocks until queued persistence and replay tasks are done.
	Wait()
}

// ConversionSvcFacade combines all conversion-related service interfaces
type ConversionSvcFacade interface {
	RateResolverSvc
	ReconcilerSvc
}
