package handlers

import (
	"log/slog"
	"net/http"

	portssvc "github.com/adiosmsu/budgeter/internal/core/ports/services"
	"github.com/adiosmsu/budgeter/internal/dto"
	"github.com/adiosmsu/budgeter/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
)

// reconciliationHandler triggers sweeps over postponed entries.
type reconciliationHandler struct {
	reconciler portssvc.ReconcilerSvc
}

func registerReconciliationRoutes(rg *gin.RouterGroup, reconciler portssvc.ReconcilerSvc, sweepLimiter *limiter.Limiter) {
	h := &reconciliationHandler{reconciler: reconciler}

	reconciliation := rg.Group("/reconciliation")
	if sweepLimiter != nil {
		reconciliation.Use(middleware.RateLimit(sweepLimiter))
	}
	reconciliation.POST("/sweep", h.sweep)
}

// sweep runs a full sweep. Replays finish in the background unless ?wait=true.
func (h *reconciliationHandler) sweep(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)
	logger.Info("Received request to run reconciliation sweep")

	report, err := h.reconciler.ProcessAllPostponedEvents(c.Request.Context())
	if err != nil {
		logger.Error("Reconciliation sweep failed", slog.String("error", err.Error()))
		resp := gin.H{"error": "Reconciliation sweep failed"}
		if report != nil {
			resp["report"] = dto.ToSweepResponse(report)
		}
		c.JSON(http.StatusInternalServerError, resp)
		return
	}
	if c.Query("wait") == "true" {
		h.reconciler.Wait()
	}

	c.JSON(http.StatusOK, dto.ToSweepResponse(report))
}
