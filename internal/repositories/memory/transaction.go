package memory

import (
	"context"
	"errors"

	portsrepo "github.com/adiosmsu/budgeter/internal/core/ports/repositories"
)

// SequentialTransactions runs a batch one task after another. The in-memory
// stores have no rollback, so every task runs even if an earlier one failed
// and the failures are joined.
type SequentialTransactions struct{}

// NewSequentialTransactions returns the non-transactional batch runner.
func NewSequentialTransactions() SequentialTransactions {
	return SequentialTransactions{}
}

var _ portsrepo.TransactionalSupport = SequentialTransactions{}

func (SequentialTransactions) Execute(ctx context.Context, tasks ...func(ctx context.Context) error) error {
	var errs []error
	for _, task := range tasks {
		if err := task(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
