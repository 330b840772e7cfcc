package domain

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/adiosmsu/budgeter/internal/apperrors"
	"github.com/shopspring/decimal"
)

// Unit is a currency code (e.g. "RUB", "USD", "BTC").
type Unit string

// crypto units are not ISO 4217 currencies and are missing from go-money.
var cryptoFractions = map[Unit]int{
	"BTC": 8,
	"ETH": 18,
	"LTC": 8,
}

// NewUnit normalizes and validates a currency code. Only ISO currencies and
// supported crypto units are accepted.
func NewUnit(code string) (Unit, error) {
	u := Unit(strings.ToUpper(strings.TrimSpace(code)))
	if len(u) < 3 || len(u) > 5 {
		return "", fmt.Errorf("%w: currency code %q must be 3 to 5 letters", apperrors.ErrValidation, code)
	}
	for _, r := range u {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: currency code %q must be letters only", apperrors.ErrValidation, code)
		}
	}
	if !u.Known() {
		return "", fmt.Errorf("%w: unknown currency %q", apperrors.ErrValidation, code)
	}
	return u, nil
}

func (u Unit) String() string { return string(u) }

// Known reports whether u is an ISO currency or a supported crypto unit.
func (u Unit) Known() bool {
	if _, ok := cryptoFractions[u]; ok {
		return true
	}
	return money.GetCurrency(string(u)) != nil
}

// Fraction returns the number of minor digits of u; unknown units get 2.
func (u Unit) Fraction() int {
	if f, ok := cryptoFractions[u]; ok {
		return f
	}
	if c := money.GetCurrency(string(u)); c != nil {
		return c.Fraction
	}
	return 2
}

// Round rounds an amount of u to its minor unit.
func (u Unit) Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(int32(u.Fraction()))
}

// Pair is an ordered pair of units; From is converted into To.
type Pair struct {
	From Unit
	To   Unit
}

// NewPair builds a pair.
func NewPair(from, to Unit) Pair { return Pair{From: from, To: to} }

// Reverse swaps the direction.
func (p Pair) Reverse() Pair { return Pair{From: p.To, To: p.From} }

// Involves reports whether u is one of the two units.
func (p Pair) Involves(u Unit) bool { return p.From == u || p.To == u }

// Matches reports whether {From, To} equals {a, b}, order-independent.
func (p Pair) Matches(a, b Unit) bool {
	return (p.From == a && p.To == b) || (p.From == b && p.To == a)
}

// Other returns the unit of the pair that is not u.
func (p Pair) Other(u Unit) Unit {
	if p.From == u {
		return p.To
	}
	return p.From
}

func (p Pair) String() string { return string(p.From) + "/" + string(p.To) }

// SortUnits sorts units in place and drops duplicates.
func SortUnits(units []Unit) []Unit {
	slices.Sort(units)
	return slices.Compact(units)
}
