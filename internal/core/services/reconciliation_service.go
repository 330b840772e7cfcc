package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/adiosmsu/budgeter/internal/apperrors"
	"github.com/adiosmsu/budgeter/internal/core/domain"
	portsrepo "github.com/adiosmsu/budgeter/internal/core/ports/repositories"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type task = func(ctx context.Context) error

// afterFetch persists every rate a loader returned and queues replays of the
// entries postponed on day for each fetched unit.
func (s *ConversionService) afterFetch(ctx context.Context, loader portsrepo.RateLoader, day domain.Day, fetched map[domain.Unit]decimal.Decimal) (int, error) {
	main := loader.MainUnit()
	direction := loader.Direction()

	rows := make([]domain.ConversionRate, 0, len(fetched))
	for unit, rate := range fetched {
		if unit == main || !rate.IsPositive() {
			continue
		}
		rows = append(rows, domain.ConversionRate{Day: day, Pair: direction.Pair(main, unit), Rate: rate})
	}
	s.persist(day, rows)

	queued := 0
	for _, row := range rows {
		n, err := s.reconcile(ctx, day, knownRate{pair: row.Pair, rate: row.Rate})
		if err != nil {
			return queued, err
		}
		queued += n
	}
	return queued, nil
}

// persist stores fetched rates in the background. Rows someone else stored
// first are rejected by the store and ignored.
func (s *ConversionService) persist(day domain.Day, rows []domain.ConversionRate) {
	if len(rows) == 0 {
		return
	}
	s.pool.Submit("persist rates "+day.String(), func(ctx context.Context) error {
		var errs []error
		for _, row := range rows {
			if _, err := s.rates.AddRate(ctx, row.Day, row.Pair.From, row.Pair.To, row.Rate); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// reconcile queues one replay per unclaimed entry postponed on day for the
// units of known. The replays run as one batch on the pool.
func (s *ConversionService) reconcile(ctx context.Context, day domain.Day, known knownRate) (int, error) {
	a, b := known.pair.From, known.pair.To

	benefits, err := s.accounter.StreamRememberedBenefits(ctx, day, a, b)
	if err != nil {
		return 0, err
	}
	losses, err := s.accounter.StreamRememberedLosses(ctx, day, a, b)
	if err != nil {
		return 0, err
	}
	exchanges, err := s.accounter.StreamRememberedExchanges(ctx, day, a, b)
	if err != nil {
		return 0, err
	}

	var (
		tasks   []task
		claimed []string
	)
	for _, entry := range append(benefits, losses...) {
		key := mutationClaim(entry)
		if !s.claim(key) {
			continue
		}
		natural, _ := known.multiplier(entry.Event.Unit, entry.ConversionUnit)
		claimed = append(claimed, key)
		tasks = append(tasks, s.replayMutation(entry, natural, key))
	}
	for _, entry := range exchanges {
		key := exchangeClaim(entry)
		if !s.claim(key) {
			continue
		}
		natural, _ := known.multiplier(entry.BuyAccount.Unit, entry.SellAccount.Unit)
		claimed = append(claimed, key)
		tasks = append(tasks, s.replayExchange(entry, natural, key))
	}
	if len(tasks) == 0 {
		return 0, nil
	}

	name := fmt.Sprintf("reconcile %s %s", day, known.pair)
	batch := func(ctx context.Context) error {
		err := s.tx.Execute(ctx, tasks...)
		if err != nil {
			// nothing of a failed batch is kept, so every entry may be retried
			for _, key := range claimed {
				s.release(key)
			}
		}
		return err
	}
	if !s.pool.Submit(name, batch) {
		s.LogWarn(ctx, "Replay batch rejected, entries stay postponed", slog.String("day", day.String()), slog.String("pair", known.pair.String()))
		for _, key := range claimed {
			s.release(key)
		}
		return 0, nil
	}
	s.LogDebug(ctx, "Postponed entries queued for replay", slog.String("day", day.String()), slog.String("pair", known.pair.String()), slog.Int("count", len(tasks)))
	return len(tasks), nil
}

// replayMutation re-drives the mutation core as if natural had been known at
// submission. The claim is released only if nothing was booked. A ledger that
// already holds the replay id means an earlier replay booked the entry.
func (s *ConversionService) replayMutation(entry domain.PostponedMutationEvent, natural decimal.Decimal, key string) task {
	return func(ctx context.Context) error {
		event := entry.Event
		if event.ID == "" {
			event.ID = derivedID("postponed-mutation", fmt.Sprint(entry.ID))
		}
		_, err := s.applyMutation(ctx, entry.Direction, event, entry.ConversionUnit, entry.CustomRate, natural)
		if errors.Is(err, apperrors.ErrDuplicate) {
			s.LogWarn(ctx, "Postponed mutation already booked", slog.Int64("postponed_id", entry.ID), slog.String("event_id", event.ID))
		} else if err != nil {
			s.release(key)
			return fmt.Errorf("replaying postponed mutation %d: %w", entry.ID, err)
		}
		return s.accounter.MarkReconciledMutation(ctx, entry)
	}
}

func (s *ConversionService) replayExchange(entry domain.PostponedExchange, natural decimal.Decimal, key string) task {
	return func(ctx context.Context) error {
		id := derivedID("postponed-exchange", fmt.Sprint(entry.ID))
		_, _, err := s.applyExchange(ctx, id, entry.AmountToBuy, entry.BuyAccount, entry.SellAccount, entry.CustomRate, entry.Timestamp, entry.Agent, natural)
		if errors.Is(err, apperrors.ErrDuplicate) {
			s.LogWarn(ctx, "Postponed exchange already booked", slog.Int64("postponed_id", entry.ID), slog.String("event_id", id))
		} else if err != nil {
			s.release(key)
			return fmt.Errorf("replaying postponed exchange %d: %w", entry.ID, err)
		}
		return s.accounter.MarkReconciledExchange(ctx, entry)
	}
}

func (s *ConversionService) claim(key string) bool {
	_, loaded := s.claims.LoadOrStore(key, struct{}{})
	return !loaded
}

func (s *ConversionService) release(key string) {
	s.claims.Delete(key)
}

func mutationClaim(entry domain.PostponedMutationEvent) string {
	return fmt.Sprintf("mutation:%d", entry.ID)
}

func exchangeClaim(entry domain.PostponedExchange) string {
	return fmt.Sprintf("exchange:%d", entry.ID)
}

// derivedID is stable for a given source, so replaying one entry twice
// collides in the ledger instead of booking twice.
func derivedID(kind, source string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(kind+"/"+source)).String()
}

// ProcessAllPostponedEvents resolves every pair of units involved in
// postponed entries of each day, with live fetches, and queues the replays.
// When no loader answers, rates already stored for the day are used instead.
func (s *ConversionService) ProcessAllPostponedEvents(ctx context.Context) (*domain.SweepReport, error) {
	reasons, err := s.accounter.StreamAllPostponingReasons(ctx)
	if err != nil {
		s.LogError(ctx, err, "Failed to list postponing reasons")
		return nil, err
	}

	var work []domain.DayPair
	for _, reason := range reasons {
		for _, pair := range reason.Pairs() {
			work = append(work, domain.DayPair{Day: reason.Day, Pair: pair})
		}
	}

	report := &domain.SweepReport{Total: len(work)}
	s.LogInfo(ctx, "Reconciliation sweep started", slog.Int("days", len(reasons)), slog.Int("pairs", len(work)))

	for _, dp := range work {
		found, queued, err := s.sweepPair(ctx, dp)
		if err != nil {
			s.LogError(ctx, err, "Reconciliation sweep aborted", slog.String("day", dp.Day.String()), slog.String("pair", dp.Pair.String()))
			return report, err
		}
		report.Processed++
		report.Queued += queued
		if found {
			report.Succeeded = append(report.Succeeded, dp)
		} else {
			report.Failed = append(report.Failed, dp)
		}
		s.LogInfo(ctx, "Reconciliation sweep progress",
			slog.String("day", dp.Day.String()),
			slog.String("pair", dp.Pair.String()),
			slog.Bool("resolved", found),
			slog.Float64("progress", report.Progress()))
	}

	s.LogInfo(ctx, "Reconciliation sweep finished",
		slog.Int("succeeded", len(report.Succeeded)),
		slog.Int("failed", len(report.Failed)),
		slog.Int("queued", report.Queued))
	return report, nil
}

func (s *ConversionService) sweepPair(ctx context.Context, dp domain.DayPair) (bool, int, error) {
	res, err := s.resolve(ctx, dp.Day, dp.Pair.From, dp.Pair.To, false)
	if err != nil {
		return false, 0, err
	}
	if res.found {
		return true, res.queued, nil
	}

	rate, ok, err := s.storedMultiplier(ctx, dp.Day, dp.Pair.From, dp.Pair.To)
	if err != nil || !ok {
		return false, res.queued, err
	}
	n, err := s.reconcile(ctx, dp.Day, knownRate{pair: dp.Pair, rate: rate})
	if err != nil {
		return false, res.queued, err
	}
	return true, res.queued + n, nil
}
