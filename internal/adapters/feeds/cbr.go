package feeds

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/adiosmsu/budgeter/internal/apperrors"
	"github.com/adiosmsu/budgeter/internal/core/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

// cbrDateLayout is the dd/MM/yyyy form the daily endpoint expects.
const cbrDateLayout = "02/01/2006"

type valCurs struct {
	XMLName xml.Name `xml:"ValCurs"`
	Date    string   `xml:"Date,attr"`
	Valutes []valute `xml:"Valute"`
}

type valute struct {
	CharCode string `xml:"CharCode"`
	Nominal  string `xml:"Nominal"`
	Value    string `xml:"Value"`
}

// CBRLoader reads the central bank daily XML. One request returns every
// published unit; values are amounts of the main unit per Nominal units.
type CBRLoader struct {
	main    domain.Unit
	mirrors []string
	fetcher *Fetcher
	logger  *slog.Logger
}

// NewCBRLoader creates a loader trying mirrors in order. Each mirror holds a
// single %s replaced by the requested date.
func NewCBRLoader(main domain.Unit, mirrors []string, fetcher *Fetcher, logger *slog.Logger) *CBRLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &CBRLoader{main: main, mirrors: mirrors, fetcher: fetcher, logger: logger}
}

func (l *CBRLoader) MainUnit() domain.Unit { return l.main }

func (l *CBRLoader) Direction() domain.RateDirection { return domain.OtherToMain }

func (l *CBRLoader) LoadCurrencies(ctx context.Context, day domain.Day, units []domain.Unit) map[domain.Unit]decimal.Decimal {
	date := day.Time().Format(cbrDateLayout)
	filter := wanted(units)
	rates := map[domain.Unit]decimal.Decimal{}
	for _, mirror := range l.mirrors {
		url := fmt.Sprintf(mirror, date)
		body, err := l.fetcher.Get(ctx, url)
		if err != nil {
			l.logger.WarnContext(ctx, "Central bank feed unavailable", "url", url, "day", day.String(), "error", err)
			continue
		}
		found, err := parseCBR(body, filter)
		if err != nil {
			l.logger.WarnContext(ctx, "Central bank feed unreadable", "url", url, "day", day.String(), "error", err)
			continue
		}
		for unit, rate := range found {
			if _, ok := rates[unit]; !ok {
				rates[unit] = rate
			}
		}
		l.logger.DebugContext(ctx, "Central bank rates loaded", "url", url, "day", day.String(), "count", len(found))
		if complete(rates, units) {
			return rates
		}
	}
	if len(rates) == 0 {
		return rates
	}
	l.logger.WarnContext(ctx, "Central bank mirrors exhausted with units missing", "day", day.String(), "found", len(rates), "requested", len(units))
	return rates
}

// complete reports whether rates holds every requested unit. An empty request
// asks for the whole document, which any readable mirror answers.
func complete(rates map[domain.Unit]decimal.Decimal, units []domain.Unit) bool {
	if len(units) == 0 {
		return len(rates) > 0
	}
	for _, u := range units {
		if _, ok := rates[u]; !ok {
			return false
		}
	}
	return true
}

func parseCBR(body []byte, filter map[domain.Unit]bool) (map[domain.Unit]decimal.Decimal, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	decoder.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		if strings.EqualFold(label, "windows-1251") || strings.EqualFold(label, "cp1251") {
			return charmap.Windows1251.NewDecoder().Reader(input), nil
		}
		return nil, fmt.Errorf("unsupported charset %q", label)
	}

	var doc valCurs
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decoding xml: %v", apperrors.ErrFeedFetch, err)
	}

	rates := make(map[domain.Unit]decimal.Decimal, len(doc.Valutes))
	for _, v := range doc.Valutes {
		unit := domain.Unit(strings.TrimSpace(v.CharCode))
		if filter != nil && !filter[unit] {
			continue
		}
		value, err := parseCommaDecimal(v.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: value of %s: %v", apperrors.ErrFeedFetch, unit, err)
		}
		nominal := decimal.NewFromInt(1)
		if strings.TrimSpace(v.Nominal) != "" {
			if nominal, err = parseCommaDecimal(v.Nominal); err != nil {
				return nil, fmt.Errorf("%w: nominal of %s: %v", apperrors.ErrFeedFetch, unit, err)
			}
		}
		if !value.IsPositive() || !nominal.IsPositive() {
			continue
		}
		rates[unit] = domain.DivideRate(value, nominal)
	}
	return rates, nil
}

func parseCommaDecimal(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	return decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
}
