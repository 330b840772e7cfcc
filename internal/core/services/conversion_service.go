package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/adiosmsu/budgeter/internal/core/domain"
	portsrepo "github.com/adiosmsu/budgeter/internal/core/ports/repositories"
	portssvc "github.com/adiosmsu/budgeter/internal/core/ports/services"
	"github.com/adiosmsu/budgeter/internal/platform/workers"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var one = decimal.NewFromInt(1)

// ConversionService resolves conversion multipliers and settles postponed
// entries once their rate becomes known. It also hosts the mutation and
// exchange cores, which are the only producers of postponed entries.
type ConversionService struct {
	BaseService
	rates     portsrepo.ExchangeRateRepositoryFacade
	accounter portsrepo.Accounter
	treasury  portsrepo.Treasury
	tx        portsrepo.TransactionalSupport
	pool      *workers.Pool
	hub       portsrepo.RateLoader
	crypto    portsrepo.RateLoader
	now       func() time.Time

	// claims holds postponed entries whose replay is queued or done
	claims sync.Map // string -> struct{}
}

// ConversionOption is a functional option for configuring the conversion service
type ConversionOption func(*ConversionService)

// WithCryptoLoader adds the loader serving the crypto main unit
func WithCryptoLoader(loader portsrepo.RateLoader) ConversionOption {
	return func(s *ConversionService) {
		s.crypto = loader
	}
}

// WithClock overrides the clock deciding which day is today
func WithClock(now func() time.Time) ConversionOption {
	return func(s *ConversionService) {
		s.now = now
	}
}

// WithLogger sets the logger used outside request contexts
func WithLogger(logger *slog.Logger) ConversionOption {
	return func(s *ConversionService) {
		s.Logger = logger
	}
}

// NewConversionService creates the engine. hub is the loader of the
// triangulation pivot; background work runs on pool.
func NewConversionService(repos portsrepo.RepositoryProvider, hub portsrepo.RateLoader, pool *workers.Pool, options ...ConversionOption) *ConversionService {
	svc := &ConversionService{
		rates:     repos.RateRepo,
		accounter: repos.Accounter,
		treasury:  repos.Treasury,
		tx:        repos.TxSupport,
		pool:      pool,
		hub:       hub,
		now:       time.Now,
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var (
	_ portssvc.ConversionSvcFacade = (*ConversionService)(nil)
	_ portssvc.MutationSvc         = (*ConversionService)(nil)
)

// resolution is the outcome of one resolve call.
type resolution struct {
	rate    decimal.Decimal
	found   bool
	fetched bool // a loader answered, as opposed to a pure cache hit
	queued  int  // postponed entries handed to the pool
}

// knownRate is a rate for one stored direction, usable in both.
type knownRate struct {
	pair domain.Pair
	rate decimal.Decimal
}

func (k knownRate) multiplier(from, to domain.Unit) (decimal.Decimal, bool) {
	switch {
	case from == to:
		return one, true
	case k.pair == domain.NewPair(from, to):
		return k.rate, true
	case k.pair == domain.NewPair(to, from):
		return domain.ReverseRate(k.rate), true
	}
	return decimal.Zero, false
}

func (s *ConversionService) Resolve(ctx context.Context, day domain.Day, from, to domain.Unit, attemptCacheFirst bool) (decimal.Decimal, bool, error) {
	res, err := s.resolve(ctx, day, from, to, attemptCacheFirst)
	if err != nil {
		return decimal.Zero, false, err
	}
	return res.rate, res.found, nil
}

func (s *ConversionService) ConversionMultiplier(ctx context.Context, day domain.Day, from, to domain.Unit) (decimal.Decimal, bool, error) {
	return s.Resolve(ctx, day, from, to, true)
}

func (s *ConversionService) LatestMultiplier(ctx context.Context, from, to domain.Unit) (decimal.Decimal, bool, error) {
	if from == to {
		return one, true, nil
	}
	rate, ok, err := s.rates.GetLatestConversionMultiplierBidirectional(ctx, from, to)
	if err != nil || ok {
		return rate, ok, err
	}
	return s.rates.GetLatestConversionMultiplierWithIntermediate(ctx, from, to, s.hub.MainUnit())
}

func (s *ConversionService) IsRateStale(ctx context.Context, unit domain.Unit) (bool, error) {
	return s.rates.IsRateStale(ctx, unit)
}

// Wait blocks until every queued persistence and replay task has finished.
func (s *ConversionService) Wait() {
	s.pool.Wait()
}

func (s *ConversionService) today() domain.Day {
	return domain.DayOf(s.now())
}

func (s *ConversionService) resolve(ctx context.Context, day domain.Day, from, to domain.Unit, cacheFirst bool) (resolution, error) {
	if from == to {
		return resolution{rate: one, found: true}, nil
	}
	pair := domain.NewPair(from, to)

	if s.crypto != nil && pair.Involves(s.crypto.MainUnit()) {
		// today's crypto quotes move too fast for the day cache
		if day == s.today() {
			cacheFirst = false
		}
		return s.conversionMultiplierFor(ctx, s.crypto, day, pair.Other(s.crypto.MainUnit()), from, to, cacheFirst)
	}
	if pair.Involves(s.hub.MainUnit()) {
		return s.conversionMultiplierFor(ctx, s.hub, day, pair.Other(s.hub.MainUnit()), from, to, cacheFirst)
	}
	return s.resolveArbitrary(ctx, day, from, to, cacheFirst)
}

// conversionMultiplierFor prices other against the loader's main unit and
// returns it in the from->to direction.
func (s *ConversionService) conversionMultiplierFor(ctx context.Context, loader portsrepo.RateLoader, day domain.Day, other, from, to domain.Unit, cacheFirst bool) (resolution, error) {
	if cacheFirst {
		rate, ok, err := s.rates.GetConversionMultiplierBidirectional(ctx, day, from, to)
		if err != nil {
			return resolution{}, err
		}
		if ok {
			return resolution{rate: rate, found: true}, nil
		}
	}

	fetched := loader.LoadCurrencies(ctx, day, []domain.Unit{other})
	raw, ok := fetched[other]
	if !ok || !raw.IsPositive() {
		s.LogDebug(ctx, "No rate fetched", slog.String("day", day.String()), slog.String("main", loader.MainUnit().String()), slog.String("unit", other.String()))
		return resolution{}, nil
	}

	queued, err := s.afterFetch(ctx, loader, day, fetched)
	if err != nil {
		return resolution{}, err
	}
	known := knownRate{pair: loader.Direction().Pair(loader.MainUnit(), other), rate: raw}
	rate, _ := known.multiplier(from, to)
	return resolution{rate: rate, found: true, fetched: true, queued: queued}, nil
}

// resolveArbitrary triangulates a pair holding neither the hub nor the crypto unit.
func (s *ConversionService) resolveArbitrary(ctx context.Context, day domain.Day, from, to domain.Unit, cacheFirst bool) (resolution, error) {
	hub := s.hub.MainUnit()
	var legs [2]resolution

	g, gctx := errgroup.WithContext(ctx)
	for i, unit := range []domain.Unit{from, to} {
		g.Go(func() error {
			res, err := s.conversionMultiplierFor(gctx, s.hub, day, unit, hub, unit, cacheFirst)
			legs[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return resolution{}, err
	}

	res := resolution{
		fetched: legs[0].fetched || legs[1].fetched,
		queued:  legs[0].queued + legs[1].queued,
	}
	if !legs[0].found || !legs[1].found {
		return res, nil
	}
	res.rate = domain.Triangulate(legs[0].rate, legs[1].rate)
	res.found = true

	if res.fetched {
		n, err := s.reconcile(ctx, day, knownRate{pair: domain.NewPair(from, to), rate: res.rate})
		if err != nil {
			return resolution{}, err
		}
		res.queued += n
	}
	return res, nil
}

// storedMultiplier answers from the rates already stored for day.
func (s *ConversionService) storedMultiplier(ctx context.Context, day domain.Day, from, to domain.Unit) (decimal.Decimal, bool, error) {
	rate, ok, err := s.rates.GetConversionMultiplierBidirectional(ctx, day, from, to)
	if err != nil || ok {
		return rate, ok, err
	}
	return s.rates.GetConversionMultiplierWithIntermediate(ctx, day, from, to, s.hub.MainUnit())
}
