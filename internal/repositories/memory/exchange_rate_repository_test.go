package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/adiosmsu/budgeter/internal/apperrors"
	"github.com/adiosmsu/budgeter/internal/core/domain"
	"github.com/adiosmsu/budgeter/internal/repositories/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

var fixedNow = time.Date(2024, 5, 20, 13, 45, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type ExchangeRateRepositoryTestSuite struct {
	suite.Suite
	ctx   context.Context
	repo  *memory.ExchangeRateRepository
	today domain.Day
}

func (suite *ExchangeRateRepositoryTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.repo = memory.NewExchangeRateRepository(
		memory.WithTimeout(time.Second),
		memory.WithClock(func() time.Time { return fixedNow }),
	)
	suite.today = domain.DayOf(fixedNow)
}

func (suite *ExchangeRateRepositoryTestSuite) add(day domain.Day, from, to domain.Unit, rate string) {
	ok, err := suite.repo.AddRate(suite.ctx, day, from, to, dec(rate))
	suite.Require().NoError(err)
	suite.Require().True(ok)
}

func (suite *ExchangeRateRepositoryTestSuite) TestConcreteScenario() {
	suite.add(suite.today, "RUB", "USD", "2")

	rate, ok, err := suite.repo.GetConversionMultiplierBidirectional(suite.ctx, suite.today, "RUB", "USD")
	suite.Require().NoError(err)
	suite.True(ok)
	suite.Equal("2", rate.String())

	rate, ok, err = suite.repo.GetConversionMultiplierBidirectional(suite.ctx, suite.today, "USD", "RUB")
	suite.Require().NoError(err)
	suite.True(ok)
	suite.Equal("0.5", rate.String())

	_, ok, err = suite.repo.GetConversionMultiplierBidirectional(suite.ctx, suite.today.AddDays(-3650), "RUB", "USD")
	suite.Require().NoError(err)
	suite.False(ok)
}

func (suite *ExchangeRateRepositoryTestSuite) TestStraightDoesNotInvert() {
	suite.add(suite.today, "RUB", "USD", "2")

	_, ok, err := suite.repo.GetConversionMultiplierStraight(suite.ctx, suite.today, "USD", "RUB")
	suite.Require().NoError(err)
	suite.False(ok)
}

func (suite *ExchangeRateRepositoryTestSuite) TestUniqueness() {
	suite.add(suite.today, "RUB", "USD", "2")

	ok, err := suite.repo.AddRate(suite.ctx, suite.today, "RUB", "USD", dec("3"))
	suite.Require().NoError(err)
	suite.False(ok)

	rate, _, err := suite.repo.GetConversionMultiplierStraight(suite.ctx, suite.today, "RUB", "USD")
	suite.Require().NoError(err)
	suite.Equal("2", rate.String())

	// the reverse direction is a different row
	ok, err = suite.repo.AddRate(suite.ctx, suite.today, "USD", "RUB", dec("0.4"))
	suite.Require().NoError(err)
	suite.True(ok)

	// and so is the same direction on another day
	ok, err = suite.repo.AddRate(suite.ctx, suite.today.AddDays(-1), "RUB", "USD", dec("3"))
	suite.Require().NoError(err)
	suite.True(ok)
}

func (suite *ExchangeRateRepositoryTestSuite) TestAddRate_Validation() {
	_, err := suite.repo.AddRate(suite.ctx, suite.today, "RUB", "RUB", dec("1"))
	suite.ErrorIs(err, apperrors.ErrValidation)

	_, err = suite.repo.AddRate(suite.ctx, suite.today, "RUB", "USD", dec("0"))
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *ExchangeRateRepositoryTestSuite) TestBidirectionalIsReverseOfBidirectional() {
	suite.add(suite.today, "USD", "EUR", "0.8")

	ab, _, err := suite.repo.GetConversionMultiplierBidirectional(suite.ctx, suite.today, "USD", "EUR")
	suite.Require().NoError(err)
	ba, _, err := suite.repo.GetConversionMultiplierBidirectional(suite.ctx, suite.today, "EUR", "USD")
	suite.Require().NoError(err)

	suite.True(domain.ReverseRate(ab).Equal(ba), "%s vs %s", ab, ba)
	suite.Equal("1.25", ba.String())
}

func (suite *ExchangeRateRepositoryTestSuite) TestTriangulationConsistency() {
	expected := domain.DivideRate(dec("0.0125"), dec("0.01"))

	// every storage direction of the two hub legs gives the same ratio
	layouts := [][2]bool{{false, false}, {false, true}, {true, false}, {true, true}}
	for i, layout := range layouts {
		day := suite.today.AddDays(-i)
		if layout[0] {
			suite.add(day, "USD", "RUB", "100")
		} else {
			suite.add(day, "RUB", "USD", "0.01")
		}
		if layout[1] {
			suite.add(day, "EUR", "RUB", "80")
		} else {
			suite.add(day, "RUB", "EUR", "0.0125")
		}

		rate, ok, err := suite.repo.GetConversionMultiplierWithIntermediate(suite.ctx, day, "USD", "EUR", "RUB")
		suite.Require().NoError(err)
		suite.Require().True(ok)
		suite.True(expected.Equal(rate), "layout %v: %s", layout, rate)
	}

	_, ok, err := suite.repo.GetConversionMultiplierWithIntermediate(suite.ctx, suite.today, "USD", "GBP", "RUB")
	suite.Require().NoError(err)
	suite.False(ok)
}

func (suite *ExchangeRateRepositoryTestSuite) TestLatest() {
	suite.add(suite.today.AddDays(-10), "RUB", "USD", "0.010")
	suite.add(suite.today.AddDays(-2), "RUB", "USD", "0.011")
	suite.add(suite.today.AddDays(-1), "RUB", "EUR", "0.012")

	rate, ok, err := suite.repo.GetLatestConversionMultiplier(suite.ctx, "RUB", "USD")
	suite.Require().NoError(err)
	suite.True(ok)
	suite.Equal("0.011", rate.String())

	rate, ok, err = suite.repo.GetLatestConversionMultiplierBidirectional(suite.ctx, "EUR", "RUB")
	suite.Require().NoError(err)
	suite.True(ok)
	suite.True(domain.ReverseRate(dec("0.012")).Equal(rate))

	// no single day holds both legs yet
	_, ok, err = suite.repo.GetLatestConversionMultiplierWithIntermediate(suite.ctx, "USD", "EUR", "RUB")
	suite.Require().NoError(err)
	suite.False(ok)

	suite.add(suite.today.AddDays(-2), "RUB", "EUR", "0.0132")
	rate, ok, err = suite.repo.GetLatestConversionMultiplierWithIntermediate(suite.ctx, "USD", "EUR", "RUB")
	suite.Require().NoError(err)
	suite.True(ok)
	suite.Equal("1.2", rate.String())

	_, ok, err = suite.repo.GetLatestConversionMultiplier(suite.ctx, "RUB", "JPY")
	suite.Require().NoError(err)
	suite.False(ok)
}

func (suite *ExchangeRateRepositoryTestSuite) TestStaleness() {
	stale, err := suite.repo.IsRateStale(suite.ctx, "USD")
	suite.Require().NoError(err)
	suite.True(stale)

	suite.add(suite.today.AddDays(-1), "RUB", "USD", "0.01")
	stale, err = suite.repo.IsRateStale(suite.ctx, "USD")
	suite.Require().NoError(err)
	suite.True(stale)

	suite.add(suite.today, "USD", "RUB", "100")
	stale, err = suite.repo.IsRateStale(suite.ctx, "USD")
	suite.Require().NoError(err)
	suite.False(stale)
}

func (suite *ExchangeRateRepositoryTestSuite) TestConcurrentInsertion() {
	const n = 100
	var wg sync.WaitGroup
	results := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			unit := domain.Unit(fmt.Sprintf("X%03d", i))
			ok, err := suite.repo.AddRate(suite.ctx, suite.today, "RUB", unit, decimal.NewFromInt(int64(i+1)))
			suite.NoError(err)
			results[i] = ok
		}(i)
	}
	wg.Wait()

	for i, ok := range results {
		suite.True(ok, "insert %d", i)
	}
	rows, err := suite.repo.GetIndexedForDay(suite.ctx, suite.today)
	suite.Require().NoError(err)
	suite.Len(rows, n)
}

func (suite *ExchangeRateRepositoryTestSuite) TestClear() {
	suite.add(suite.today, "RUB", "USD", "2")
	suite.repo.Clear()

	rows, err := suite.repo.GetIndexedForDay(suite.ctx, suite.today)
	suite.Require().NoError(err)
	suite.Empty(rows)
	suite.add(suite.today, "RUB", "USD", "2")
}

func TestExchangeRateRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(ExchangeRateRepositoryTestSuite))
}
