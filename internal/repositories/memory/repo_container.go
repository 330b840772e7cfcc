// Package memory holds the in-process repositories, all built on the lock-free
// indexed table. They live for the process lifetime; Clear methods exist for
// tests and resets and must not run concurrently with other operations.
package memory

import (
	"time"

	portsrepo "github.com/adiosmsu/budgeter/internal/core/ports/repositories"
	"github.com/adiosmsu/budgeter/internal/platform/indexed"
)

type settings struct {
	timeout time.Duration
	now     func() time.Time
}

// Option configures the in-memory repositories.
type Option func(*settings)

// WithTimeout bounds index CAS retries and primary-row waits.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.timeout = d
	}
}

// WithClock overrides the clock used to decide what "today" is.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

func newSettings(opts []Option) settings {
	s := settings{timeout: indexed.DefaultTimeout, now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// NewRepositoryProvider wires every in-memory repository. A nil tx selects
// sequential execution of background batches.
func NewRepositoryProvider(tx portsrepo.TransactionalSupport, opts ...Option) portsrepo.RepositoryProvider {
	if tx == nil {
		tx = NewSequentialTransactions()
	}
	return portsrepo.RepositoryProvider{
		RateRepo:  NewExchangeRateRepository(opts...),
		Accounter: NewAccounter(opts...),
		Treasury:  NewTreasury(opts...),
		TxSupport: tx,
	}
}
