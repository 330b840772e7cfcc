package feeds

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/adiosmsu/budgeter/internal/apperrors"
	"github.com/adiosmsu/budgeter/internal/core/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// historyTimeLayout is the timestamp format of the first history column.
const historyTimeLayout = "2006-01-02 15:04:05"

// historyRateColumn is the index of the daily average in a history row.
const historyRateColumn = 3

// tickerFields are tried in order; the first present one wins.
var tickerFields = []string{"15m", "24h_avg", "last"}

type historyEntry struct {
	fetchedOn domain.Day
	rates     map[domain.Day]decimal.Decimal
}

// CryptoLoader prices units against a crypto main unit. Today is served by
// momentary tickers, past days by per-unit daily history that is downloaded
// at most once per UTC day.
type CryptoLoader struct {
	main       domain.Unit
	tickers    []string
	historyURL string
	fetcher    *Fetcher
	logger     *slog.Logger
	now        func() time.Time

	history sync.Map // domain.Unit -> *historyEntry
	refresh singleflight.Group
}

// CryptoOption configures a CryptoLoader.
type CryptoOption func(*CryptoLoader)

// WithCryptoClock overrides the clock deciding which day is today.
func WithCryptoClock(now func() time.Time) CryptoOption {
	return func(l *CryptoLoader) {
		l.now = now
	}
}

// NewCryptoLoader creates a loader. historyURL holds a single %s replaced by the unit.
func NewCryptoLoader(main domain.Unit, tickers []string, historyURL string, fetcher *Fetcher, logger *slog.Logger, opts ...CryptoOption) *CryptoLoader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &CryptoLoader{
		main:       main,
		tickers:    tickers,
		historyURL: historyURL,
		fetcher:    fetcher,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *CryptoLoader) MainUnit() domain.Unit { return l.main }

func (l *CryptoLoader) Direction() domain.RateDirection { return domain.MainToOther }

func (l *CryptoLoader) LoadCurrencies(ctx context.Context, day domain.Day, units []domain.Unit) map[domain.Unit]decimal.Decimal {
	today := domain.DayOf(l.now())
	switch {
	case day == today:
		return l.loadTickers(ctx, units)
	case day.After(today):
		return map[domain.Unit]decimal.Decimal{}
	}

	rates := make(map[domain.Unit]decimal.Decimal, len(units))
	for _, unit := range units {
		entry := l.historyFor(ctx, unit, today)
		if entry == nil {
			continue
		}
		if rate, ok := entry.rates[day]; ok {
			rates[unit] = rate
		}
	}
	return rates
}

func (l *CryptoLoader) loadTickers(ctx context.Context, units []domain.Unit) map[domain.Unit]decimal.Decimal {
	filter := wanted(units)
	rates := make(map[domain.Unit]decimal.Decimal)

	for _, url := range l.tickers {
		body, err := l.fetcher.Get(ctx, url)
		if err != nil {
			l.logger.WarnContext(ctx, "Crypto ticker unavailable", "url", url, "error", err)
			continue
		}
		doc, err := decodeTicker(body)
		if err != nil {
			l.logger.WarnContext(ctx, "Crypto ticker unreadable", "url", url, "error", err)
			continue
		}

		candidates := units
		if filter == nil {
			candidates = tickerUnits(doc)
		}
		for _, unit := range candidates {
			if _, done := rates[unit]; done {
				continue
			}
			if rate, ok := tickerRate(doc, unit); ok {
				rates[unit] = rate
			}
		}
		if filter != nil && len(rates) == len(filter) {
			break
		}
	}
	return rates
}

func decodeTicker(body []byte) (map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var doc map[string]any
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decoding ticker: %v", apperrors.ErrFeedFetch, err)
	}
	return doc, nil
}

func tickerUnits(doc map[string]any) []domain.Unit {
	var units []domain.Unit
	for code, v := range doc {
		if _, ok := v.(map[string]any); !ok {
			continue
		}
		if unit, err := domain.NewUnit(code); err == nil {
			units = append(units, unit)
		}
	}
	return domain.SortUnits(units)
}

func tickerRate(doc map[string]any, unit domain.Unit) (decimal.Decimal, bool) {
	for _, field := range tickerFields {
		v, err := jsonpath.Get(fmt.Sprintf(`$["%s"]["%s"]`, unit, field), doc)
		if err != nil || v == nil {
			continue
		}
		rate, err := toDecimal(v)
		if err != nil || !rate.IsPositive() {
			continue
		}
		return rate, true
	}
	return decimal.Zero, false
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch value := v.(type) {
	case json.Number:
		return decimal.NewFromString(value.String())
	case float64:
		return decimal.NewFromFloat(value), nil
	case string:
		return parseCommaDecimal(value)
	}
	return decimal.Zero, fmt.Errorf("unexpected ticker value %T", v)
}

// historyFor returns the cached history of unit, downloading it when it was
// last fetched before today. A failed download keeps the previous entry.
func (l *CryptoLoader) historyFor(ctx context.Context, unit domain.Unit, today domain.Day) *historyEntry {
	if entry := l.cachedHistory(unit); entry != nil && !entry.fetchedOn.Before(today) {
		return entry
	}
	v, _, _ := l.refresh.Do(string(unit), func() (any, error) {
		if entry := l.cachedHistory(unit); entry != nil && !entry.fetchedOn.Before(today) {
			return entry, nil
		}
		url := fmt.Sprintf(l.historyURL, unit)
		body, err := l.fetcher.Get(ctx, url)
		if err == nil {
			var rates map[domain.Day]decimal.Decimal
			if rates, err = parseHistory(body); err == nil {
				entry := &historyEntry{fetchedOn: today, rates: rates}
				l.history.Store(unit, entry)
				return entry, nil
			}
		}
		l.logger.WarnContext(ctx, "Crypto history unavailable", "url", url, "unit", unit.String(), "error", err)
		return l.cachedHistory(unit), nil
	})
	entry, _ := v.(*historyEntry)
	return entry
}

func (l *CryptoLoader) cachedHistory(unit domain.Unit) *historyEntry {
	v, ok := l.history.Load(unit)
	if !ok {
		return nil
	}
	return v.(*historyEntry)
}

func parseHistory(body []byte) (map[domain.Day]decimal.Decimal, error) {
	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: reading history csv: %v", apperrors.ErrFeedFetch, err)
	}

	rates := make(map[domain.Day]decimal.Decimal, len(records))
	for _, record := range records {
		if len(record) <= historyRateColumn {
			continue
		}
		// header and malformed rows are skipped
		ts, err := time.Parse(historyTimeLayout, strings.TrimSpace(record[0]))
		if err != nil {
			continue
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(record[historyRateColumn]))
		if err != nil || !rate.IsPositive() {
			continue
		}
		rates[domain.DayOf(ts)] = rate
	}
	if len(rates) == 0 {
		return nil, fmt.Errorf("%w: history csv holds no rates", apperrors.ErrFeedFetch)
	}
	return rates, nil
}
