package repositories

import (
	"context"

	"github.com/adiosmsu/budgeter/internal/core/domain"
	"github.com/shopspring/decimal"
)

// RateLoader fetches rates of other units against MainUnit for one day from
// an external source. Failures are never returned: units that could not be
// priced are missing from the result, which may be empty but never nil.
type RateLoader interface {
	MainUnit() domain.Unit
	Direction() domain.RateDirection
	// LoadCurrencies with an empty units slice asks for everything the
	// source publishes, if it can tell.
	LoadCurrencies(ctx context.Context, day domain.Day, units []domain.Unit) map[domain.Unit]decimal.Decimal
}
