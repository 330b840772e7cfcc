package repositories

import (
	"context"

	"github.com/adiosmsu/budgeter/internal/core/domain"
)

// LedgerWriter registers ledger events.
type LedgerWriter interface {
	RegisterFundsMutation(ctx context.Context, event domain.FundsMutationEvent) error
	RegisterCurrencyExchange(ctx context.Context, event domain.CurrencyExchangeEvent) error
}

// LedgerReader lists ledger events of a day.
type LedgerReader interface {
	ListFundsMutations(ctx context.Context, day domain.Day) ([]domain.FundsMutationEvent, error)
	ListCurrencyExchanges(ctx context.Context, day domain.Day) ([]domain.CurrencyExchangeEvent, error)
}

// Accounter owns the ledger and the postponed entries. Whether a reconciled
// entry is removed or archived is the Accounter's decision.
type Accounter interface {
	LedgerWriter
	LedgerReader
	PostponedRepositoryFacade
	MarkReconciledMutation(ctx context.Context, entry domain.PostponedMutationEvent) error
	MarkReconciledExchange(ctx context.Context, entry domain.PostponedExchange) error
}
