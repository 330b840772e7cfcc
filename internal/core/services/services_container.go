package services

import (
	portsrepo "github.com/adiosmsu/budgeter/internal/core/ports/repositories"
	portssvc "github.com/adiosmsu/budgeter/internal/core/ports/services"
	"github.com/adiosmsu/budgeter/internal/platform/workers"
)

// NewServiceContainer creates a new service container with properly initialized dependencies.
// One engine serves both facades so submissions and sweeps share the replay claims.
func NewServiceContainer(repos portsrepo.RepositoryProvider, hub portsrepo.RateLoader, pool *workers.Pool, options ...ConversionOption) *portssvc.ServiceContainer {
	engine := NewConversionService(repos, hub, pool, options...)
	return &portssvc.ServiceContainer{
		Conversion: engine,
		Mutation:   engine,
	}
}
