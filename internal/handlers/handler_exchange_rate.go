package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/adiosmsu/budgeter/internal/apperrors"
	"github.com/adiosmsu/budgeter/internal/core/domain"
	portssvc "github.com/adiosmsu/budgeter/internal/core/ports/services"
	"github.com/adiosmsu/budgeter/internal/dto"
	"github.com/adiosmsu/budgeter/internal/middleware"
	"github.com/gin-gonic/gin"
)

// exchangeRateHandler handles HTTP requests related to conversion multipliers.
type exchangeRateHandler struct {
	rateService portssvc.RateResolverSvc
}

func newExchangeRateHandler(rs portssvc.RateResolverSvc) *exchangeRateHandler {
	return &exchangeRateHandler{
		rateService: rs,
	}
}

// registerExchangeRateRoutes registers routes related to exchange rates.
func registerExchangeRateRoutes(rg *gin.RouterGroup, rateService portssvc.RateResolverSvc) {
	h := newExchangeRateHandler(rateService)

	rates := rg.Group("/rates")
	{
		rates.GET("/latest/:from/:to", h.getLatestMultiplier)
		rates.GET("/stale/:unit", h.getStaleness)
		rates.GET("/:day/:from/:to", h.getConversionMultiplier)
	}
}

// getConversionMultiplier resolves the multiplier of a pair on a day, fetching
// from the feeds when needed. ?cache=false skips stored rates.
func (h *exchangeRateHandler) getConversionMultiplier(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)

	day, err := domain.ParseDay(c.Param("day"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Day must be formatted as " + domain.DayLayout})
		return
	}
	pair, ok := parsePair(c)
	if !ok {
		return
	}
	cacheFirst := true
	if raw := c.Query("cache"); raw != "" {
		if cacheFirst, err = strconv.ParseBool(raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cache must be a boolean"})
			return
		}
	}

	logger = logger.With(slog.String("day", day.String()), slog.String("pair", pair.String()))
	logger.Info("Received request to resolve conversion multiplier", slog.Bool("cache_first", cacheFirst))

	rate, found, err := h.rateService.Resolve(c.Request.Context(), day, pair.From, pair.To, cacheFirst)
	if err != nil {
		logger.Error("Failed to resolve conversion multiplier", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve conversion multiplier"})
		return
	}
	if !found {
		logger.Warn("Conversion multiplier not resolvable")
		c.JSON(http.StatusNotFound, gin.H{"error": apperrors.ErrNoRate.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.ToConversionMultiplierResponse(day, pair, rate))
}

// getLatestMultiplier answers from the newest stored rates, never fetching.
func (h *exchangeRateHandler) getLatestMultiplier(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)
	pair, ok := parsePair(c)
	if !ok {
		return
	}

	rate, found, err := h.rateService.LatestMultiplier(c.Request.Context(), pair.From, pair.To)
	if err != nil {
		logger.Error("Failed to look up latest multiplier", slog.String("pair", pair.String()), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up latest multiplier"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": apperrors.ErrNoRate.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.ToConversionMultiplierResponse(domain.Day{}, pair, rate))
}

func (h *exchangeRateHandler) getStaleness(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)
	unit, err := domain.NewUnit(c.Param("unit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stale, err := h.rateService.IsRateStale(c.Request.Context(), unit)
	if err != nil {
		logger.Error("Failed to check rate staleness", slog.String("unit", unit.String()), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check rate staleness"})
		return
	}

	c.JSON(http.StatusOK, dto.StalenessResponse{CurrencyCode: unit.String(), Stale: stale})
}

// parsePair reads the :from and :to params, answering 400 itself on failure.
func parsePair(c *gin.Context) (domain.Pair, bool) {
	from, err := domain.NewUnit(c.Param("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return domain.Pair{}, false
	}
	to, err := domain.NewUnit(c.Param("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return domain.Pair{}, false
	}
	return domain.NewPair(from, to), true
}
