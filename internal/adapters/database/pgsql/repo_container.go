package pgsql

import (
	portsrepo "github.com/adiosmsu/budgeter/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewRepositoryProvider persists balances and the ledger in PostgreSQL and
// runs replay batches in one transaction. Rates and postponed entries stay in
// the given stores.
func NewRepositoryProvider(dbPool *pgxpool.Pool, rates portsrepo.ExchangeRateRepositoryFacade, postponed portsrepo.PostponedRepositoryFacade) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		RateRepo:  rates,
		Accounter: NewAccounter(dbPool, postponed),
		Treasury:  NewTreasury(dbPool),
		TxSupport: NewTransactionalSupport(dbPool),
	}
}
