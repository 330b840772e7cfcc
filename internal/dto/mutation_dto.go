package dto

import (
	"time"

	"github.com/adiosmsu/budgeter/internal/core/domain"
	"github.com/shopspring/decimal"
)

// MutationRequest submits an income (Benefit) or expense (Loss).
// Event.Amount is the absolute amount in Event.Unit. ConversionUnit defaults to
// the unit of Event.Account. CustomRate, when set, is the multiplier from
// Event.Unit to ConversionUnit actually applied by the counterparty.
type MutationRequest struct {
	Direction      domain.Direction
	Event          domain.FundsMutationEvent
	ConversionUnit domain.Unit
	CustomRate     *decimal.Decimal
}

// ExchangeRequest submits buying AmountToBuy of BuyAccount's unit with funds of SellAccount.
// CustomRate, when set, is the multiplier from the bought unit to the sold unit.
type ExchangeRequest struct {
	AmountToBuy decimal.Decimal
	BuyAccount  domain.BalanceAccount
	SellAccount domain.BalanceAccount
	CustomRate  *decimal.Decimal
	Timestamp   time.Time
	Agent       domain.Agent
}

// SubmissionStatus tells whether a submission hit the ledger or was postponed.
type SubmissionStatus string

const (
	StatusApplied   SubmissionStatus = "APPLIED"
	StatusPostponed SubmissionStatus = "POSTPONED"
)

// SubmissionResult is the outcome of a mutation or exchange submission.
type SubmissionResult struct {
	Status      SubmissionStatus
	PostponedID int64
	Mutations   []domain.FundsMutationEvent
	Exchange    *domain.CurrencyExchangeEvent
}
