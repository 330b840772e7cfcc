package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PostponedMutationEvent is an income or expense that could not be converted
// into ConversionUnit on the day it happened. Stored entries are never mutated.
type PostponedMutationEvent struct {
	ID             int64              `json:"id"`
	Direction      Direction          `json:"direction"`
	Event          FundsMutationEvent `json:"event"`
	ConversionUnit Unit               `json:"conversionUnit"`
	CustomRate     *decimal.Decimal   `json:"customRate,omitempty"`
}

// Day is the creation day the entry is keyed to.
func (p PostponedMutationEvent) Day() Day { return p.Event.Day() }

// Pair is the conversion the entry is waiting for.
func (p PostponedMutationEvent) Pair() Pair { return NewPair(p.Event.Unit, p.ConversionUnit) }

// PostponedExchange is an exchange that could not be priced on the day it happened.
type PostponedExchange struct {
	ID          int64            `json:"id"`
	AmountToBuy decimal.Decimal  `json:"amountToBuy"`
	BuyAccount  BalanceAccount   `json:"buyAccount"`
	SellAccount BalanceAccount   `json:"sellAccount"`
	CustomRate  *decimal.Decimal `json:"customRate,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
	Agent       Agent            `json:"agent"`
}

// Day is the creation day the entry is keyed to.
func (p PostponedExchange) Day() Day { return DayOf(p.Timestamp) }

// Pair is the conversion the entry is waiting for: bought unit to sold unit.
func (p PostponedExchange) Pair() Pair { return NewPair(p.BuyAccount.Unit, p.SellAccount.Unit) }

// PostponingReason groups every unit involved in postponed entries of one day.
type PostponingReason struct {
	Day   Day    `json:"day"`
	Units []Unit `json:"units"`
}

// Pairs returns every unordered pair drawn from the reason's units.
func (r PostponingReason) Pairs() []Pair {
	var pairs []Pair
	for i := 0; i < len(r.Units); i++ {
		for j := i + 1; j < len(r.Units); j++ {
			pairs = append(pairs, NewPair(r.Units[i], r.Units[j]))
		}
	}
	return pairs
}
