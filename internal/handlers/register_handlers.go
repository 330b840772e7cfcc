package handlers

import (
	portssvc "github.com/adiosmsu/budgeter/internal/core/ports/services"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
)

// RegisterRoutes sets up all application routes, injecting dependencies using interfaces.
// sweepLimiter throttles the reconciliation trigger; nil leaves it unthrottled.
func RegisterRoutes(
	r *gin.Engine,
	services *portssvc.ServiceContainer,
	sweepLimiter *limiter.Limiter,
) {

	// Add health check route
	r.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})

	setupAPIV1Routes(r, services, sweepLimiter)
}

// setupAPIV1Routes configures the /api/v1 group and delegates to specific entity route registrations
func setupAPIV1Routes(
	r *gin.Engine,
	service *portssvc.ServiceContainer,
	sweepLimiter *limiter.Limiter,
) {
	v1 := r.Group("/api/v1")

	registerExchangeRateRoutes(v1, service.Conversion)
	registerReconciliationRoutes(v1, service.Conversion, sweepLimiter)
}
