package dto

import (
	"github.com/adiosmsu/budgeter/internal/core/domain"
	"github.com/shopspring/decimal"
)

// ConversionMultiplierResponse defines the API response for a resolved multiplier.
type ConversionMultiplierResponse struct {
	Day              string          `json:"day,omitempty"`
	FromCurrencyCode string          `json:"fromCurrencyCode"`
	ToCurrencyCode   string          `json:"toCurrencyCode"`
	Rate             decimal.Decimal `json:"rate"`
}

// StalenessResponse reports whether today's rates for a unit are missing.
type StalenessResponse struct {
	CurrencyCode string `json:"currencyCode"`
	Stale        bool   `json:"stale"`
}

// ToConversionMultiplierResponse builds a ConversionMultiplierResponse; a zero day is omitted.
func ToConversionMultiplierResponse(day domain.Day, pair domain.Pair, rate decimal.Decimal) ConversionMultiplierResponse {
	resp := ConversionMultiplierResponse{
		FromCurrencyCode: pair.From.String(),
		ToCurrencyCode:   pair.To.String(),
		Rate:             rate,
	}
	if !day.IsZero() {
		resp.Day = day.String()
	}
	return resp
}
