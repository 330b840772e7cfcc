package repositories

import (
	"context"
)

// TransactionalSupport runs a batch of tasks as a unit. Implementations backed
// by a transactional store run them in one transaction; others run them
// sequentially.
type TransactionalSupport interface {
	Execute(ctx context.Context, tasks ...func(ctx context.Context) error) error
}
