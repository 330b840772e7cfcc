package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Agent is whoever initiated a financial event.
type Agent struct {
	Name string `json:"name"`
}

// Subject classifies a funds mutation (salary, groceries...).
type Subject struct {
	Name     string `json:"name"`
	Reserved bool   `json:"reserved"`
}

// ConversionDifferenceSubject tags ledger entries that book the gap between a
// custom and a natural conversion rate.
var ConversionDifferenceSubject = Subject{Name: "Currency conversion difference", Reserved: true}

// FundsMutationEvent is an income or expense. Amount is in Unit; when the event
// was converted, OriginalAmount/OriginalUnit hold the pre-conversion values and
// Rate the natural multiplier that was applied.
type FundsMutationEvent struct {
	ID             string           `json:"id"`
	Amount         decimal.Decimal  `json:"amount"`
	Unit           Unit             `json:"unit"`
	Account        BalanceAccount   `json:"account"`
	Subject        Subject          `json:"subject"`
	Quantity       int              `json:"quantity"`
	Timestamp      time.Time        `json:"timestamp"`
	Agent          Agent            `json:"agent"`
	OriginalAmount *decimal.Decimal `json:"originalAmount,omitempty"`
	OriginalUnit   *Unit            `json:"originalUnit,omitempty"`
	Rate           *decimal.Decimal `json:"rate,omitempty"`
}

// Day returns the day the event belongs to.
func (e FundsMutationEvent) Day() Day { return DayOf(e.Timestamp) }

// IsConverted reports whether the event carries a conversion.
func (e FundsMutationEvent) IsConverted() bool {
	return e.OriginalAmount != nil && e.OriginalUnit != nil && *e.OriginalUnit != e.Unit
}

// CurrencyExchangeEvent moves funds between two accounts in different units.
// Rate is the multiplier from the bought unit to the sold unit: Sold = Bought * Rate.
type CurrencyExchangeEvent struct {
	ID          string          `json:"id"`
	Bought      decimal.Decimal `json:"bought"`
	BuyAccount  BalanceAccount  `json:"buyAccount"`
	Sold        decimal.Decimal `json:"sold"`
	SellAccount BalanceAccount  `json:"sellAccount"`
	Rate        decimal.Decimal `json:"rate"`
	Timestamp   time.Time       `json:"timestamp"`
	Agent       Agent           `json:"agent"`
}
