package feeds

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adiosmsu/budgeter/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

var testNow = time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFetcher() *Fetcher {
	return NewFetcher(2*time.Second, 0, quietLogger())
}

const cbrBody = `<?xml version="1.0" encoding="windows-1251"?>
<ValCurs Date="20.05.2024" name="Foreign Currency Market">
<Valute ID="R01235"><NumCode>840</NumCode><CharCode>USD</CharCode><Nominal>1</Nominal><Name>Доллар США</Name><Value>90,7153</Value></Valute>
<Valute ID="R01239"><NumCode>978</NumCode><CharCode>EUR</CharCode><Nominal>1</Nominal><Name>Евро</Name><Value>98,5003</Value></Valute>
<Valute ID="R01820"><NumCode>392</NumCode><CharCode>JPY</CharCode><Nominal>100</Nominal><Name>Японских иен</Name><Value>58,2500</Value></Valute>
</ValCurs>`

func windows1251(t *testing.T, s string) []byte {
	encoded, err := charmap.Windows1251.NewEncoder().String(s)
	require.NoError(t, err)
	return []byte(encoded)
}

func TestCBRLoader_ParsesLegacyEncodingAndNominal(t *testing.T) {
	body := windows1251(t, cbrBody)
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("date_req")
		w.Header().Set("Content-Type", "application/xml; charset=windows-1251")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	loader := NewCBRLoader("RUB", []string{srv.URL + "/daily?date_req=%s"}, testFetcher(), quietLogger())
	assert.Equal(t, domain.Unit("RUB"), loader.MainUnit())
	assert.Equal(t, domain.OtherToMain, loader.Direction())

	rates := loader.LoadCurrencies(context.Background(), domain.DayOf(testNow), []domain.Unit{"USD", "JPY", "GBP"})
	assert.Equal(t, "20/05/2024", gotQuery)
	require.Len(t, rates, 2)
	assert.Equal(t, "90.7153", rates["USD"].String())
	assert.Equal(t, "0.5825", rates["JPY"].String())

	all := loader.LoadCurrencies(context.Background(), domain.DayOf(testNow), nil)
	assert.Len(t, all, 3)
}

func TestCBRLoader_FallsBackToNextMirror(t *testing.T) {
	var brokenHits atomic.Int32
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		brokenHits.Add(1)
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer broken.Close()
	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<ValCurs><Valute><CharCode>USD</CharCode><Value>abc</Value></Valute></ValCurs>"))
	}))
	defer garbage.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(windows1251(t, cbrBody))
	}))
	defer good.Close()

	loader := NewCBRLoader("RUB", []string{broken.URL + "/%s", garbage.URL + "/%s", good.URL + "/%s"}, testFetcher(), quietLogger())
	rates := loader.LoadCurrencies(context.Background(), domain.DayOf(testNow), []domain.Unit{"EUR"})
	assert.Equal(t, int32(1), brokenHits.Load())
	require.Contains(t, rates, domain.Unit("EUR"))
	assert.Equal(t, "98.5003", rates["EUR"].String())
}

func TestCBRLoader_MergesUnitsAcrossMirrors(t *testing.T) {
	var lastHits atomic.Int32
	partial := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<ValCurs><Valute><CharCode>USD</CharCode><Nominal>1</Nominal><Value>91,0000</Value></Valute></ValCurs>"))
	}))
	defer partial.Close()
	full := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(windows1251(t, cbrBody))
	}))
	defer full.Close()
	last := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastHits.Add(1)
		_, _ = w.Write(windows1251(t, cbrBody))
	}))
	defer last.Close()

	loader := NewCBRLoader("RUB", []string{partial.URL + "/%s", full.URL + "/%s", last.URL + "/%s"}, testFetcher(), quietLogger())
	rates := loader.LoadCurrencies(context.Background(), domain.DayOf(testNow), []domain.Unit{"USD", "EUR"})
	require.Len(t, rates, 2)
	// the first mirror answering a unit wins
	assert.Equal(t, "91", rates["USD"].String())
	assert.Equal(t, "98.5003", rates["EUR"].String())
	assert.Equal(t, int32(0), lastHits.Load())

	// a unit no mirror publishes leaves the partial result after every mirror was tried
	rates = loader.LoadCurrencies(context.Background(), domain.DayOf(testNow), []domain.Unit{"EUR", "GBP"})
	assert.Equal(t, int32(1), lastHits.Load())
	require.Len(t, rates, 1)
	assert.Equal(t, "98.5003", rates["EUR"].String())
}

func TestCBRLoader_AllMirrorsDownIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	loader := NewCBRLoader("RUB", []string{srv.URL + "/%s"}, testFetcher(), quietLogger())
	rates := loader.LoadCurrencies(context.Background(), domain.DayOf(testNow), []domain.Unit{"USD"})
	assert.NotNil(t, rates)
	assert.Empty(t, rates)
}

func TestCryptoLoader_TickersFirstFoundWins(t *testing.T) {
	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"USD": {"15m": 67000.5, "last": 66000}, "EUR": {"symbol": "€"}}`))
	}))
	defer first.Close()
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"USD": {"24h_avg": 1}, "EUR": {"24h_avg": 61000.25, "last": 60000}, "timestamp": "x"}`))
	}))
	defer second.Close()

	loader := NewCryptoLoader("BTC", []string{first.URL, second.URL}, "", testFetcher(), quietLogger(),
		WithCryptoClock(func() time.Time { return testNow }))
	assert.Equal(t, domain.MainToOther, loader.Direction())

	rates := loader.LoadCurrencies(context.Background(), domain.DayOf(testNow), []domain.Unit{"USD", "EUR", "GBP"})
	require.Len(t, rates, 2)
	assert.Equal(t, "67000.5", rates["USD"].String())
	assert.Equal(t, "61000.25", rates["EUR"].String())
}

const historyCSV = `DateTime,High,Low,Average,Volume BTC
2024-05-19 00:00:00,67500.10,66100.00,66800.55,1200.5
2024-05-18 00:00:00,67200.00,65900.00,66500.00,1100.0
garbage line
`

func TestCryptoLoader_HistoryCachedPerDay(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !strings.Contains(r.URL.Path, "USD") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(historyCSV))
	}))
	defer srv.Close()

	now := testNow
	loader := NewCryptoLoader("BTC", nil, srv.URL+"/history/%s.csv", testFetcher(), quietLogger(),
		WithCryptoClock(func() time.Time { return now }))
	ctx := context.Background()
	yesterday := domain.DayOf(testNow).AddDays(-1)

	rates := loader.LoadCurrencies(ctx, yesterday, []domain.Unit{"USD"})
	assert.Equal(t, "66800.55", rates["USD"].String())
	rates = loader.LoadCurrencies(ctx, yesterday.AddDays(-1), []domain.Unit{"USD"})
	assert.Equal(t, "66500", rates["USD"].String())
	assert.Equal(t, int32(1), hits.Load())

	// a day missing from the series stays missing until tomorrow's refresh
	rates = loader.LoadCurrencies(ctx, yesterday.AddDays(-30), []domain.Unit{"USD"})
	assert.Empty(t, rates)
	assert.Equal(t, int32(1), hits.Load())

	now = testNow.Add(24 * time.Hour)
	_ = loader.LoadCurrencies(ctx, yesterday, []domain.Unit{"USD"})
	assert.Equal(t, int32(2), hits.Load())

	// failures are not cached
	_ = loader.LoadCurrencies(ctx, yesterday, []domain.Unit{"EUR"})
	_ = loader.LoadCurrencies(ctx, yesterday, []domain.Unit{"EUR"})
	assert.Equal(t, int32(4), hits.Load())
}

func TestCryptoLoader_FutureDayIsEmpty(t *testing.T) {
	loader := NewCryptoLoader("BTC", nil, "http://127.0.0.1:0/%s", testFetcher(), quietLogger(),
		WithCryptoClock(func() time.Time { return testNow }))
	assert.Empty(t, loader.LoadCurrencies(context.Background(), domain.DayOf(testNow).AddDays(1), []domain.Unit{"USD"}))
}

func TestRateDirection_Pair(t *testing.T) {
	assert.Equal(t, domain.NewPair("USD", "RUB"), domain.OtherToMain.Pair("RUB", "USD"))
	assert.Equal(t, domain.NewPair("BTC", "USD"), domain.MainToOther.Pair("BTC", "USD"))
}
