package repositories

import (
	"context"
	"time"

	"github.com/adiosmsu/budgeter/internal/core/domain"
	"github.com/shopspring/decimal"
)

// PostponedWriter records events that could not be priced when they happened.
type PostponedWriter interface {
	RememberPostponedExchangeableEvent(ctx context.Context, event domain.FundsMutationEvent, direction domain.Direction, conversionUnit domain.Unit, customRate *decimal.Decimal) (domain.PostponedMutationEvent, error)
	RememberPostponedExchangeableBenefit(ctx context.Context, event domain.FundsMutationEvent, conversionUnit domain.Unit, customRate *decimal.Decimal) (domain.PostponedMutationEvent, error)
	RememberPostponedExchangeableLoss(ctx context.Context, event domain.FundsMutationEvent, conversionUnit domain.Unit, customRate *decimal.Decimal) (domain.PostponedMutationEvent, error)
	RememberPostponedExchange(ctx context.Context, amountToBuy decimal.Decimal, buyAccount, sellAccount domain.BalanceAccount, customRate *decimal.Decimal, timestamp time.Time, agent domain.Agent) (domain.PostponedExchange, error)
}

// PostponedReader streams postponed entries back. Day-and-pair lookups match
// entries whose two units are exactly {a, b}, in any order.
type PostponedReader interface {
	StreamRememberedBenefits(ctx context.Context, day domain.Day, a, b domain.Unit) ([]domain.PostponedMutationEvent, error)
	StreamRememberedLosses(ctx context.Context, day domain.Day, a, b domain.Unit) ([]domain.PostponedMutationEvent, error)
	StreamRememberedExchanges(ctx context.Context, day domain.Day, a, b domain.Unit) ([]domain.PostponedExchange, error)
	// StreamAllPostponingReasons returns one reason per day holding postponed entries.
	StreamAllPostponingReasons(ctx context.Context) ([]domain.PostponingReason, error)
}

// PostponedRemover drops entries once their owner considers them settled.
type PostponedRemover interface {
	ForgetMutation(ctx context.Context, entry domain.PostponedMutationEvent) error
	ForgetExchange(ctx context.Context, entry domain.PostponedExchange) error
}

// PostponedRepositoryFacade combines all postponement repository interfaces
type PostponedRepositoryFacade interface {
	PostponedWriter
	PostponedReader
	PostponedRemover
}
