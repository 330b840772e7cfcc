package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Direction tags a funds mutation as incoming (Benefit) or outgoing (Loss).
type Direction int

const (
	Benefit Direction = iota + 1
	Loss
)

type directionBehavior struct {
	name string
	sign int64
	// direction of the conversion difference when the custom rate exceeds the natural one
	whenCustomMore Direction
	whenCustomLess Direction
}

var directionTable = map[Direction]directionBehavior{
	Benefit: {name: "BENEFIT", sign: 1, whenCustomMore: Benefit, whenCustomLess: Loss},
	Loss:    {name: "LOSS", sign: -1, whenCustomMore: Loss, whenCustomLess: Benefit},
}

func (d Direction) behavior() directionBehavior {
	b, ok := directionTable[d]
	if !ok {
		panic(fmt.Sprintf("unknown direction %d", int(d)))
	}
	return b
}

// Valid reports whether d is Benefit or Loss.
func (d Direction) Valid() bool {
	_, ok := directionTable[d]
	return ok
}

func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return d.behavior().name
}

// ParseDirection parses "BENEFIT" or "LOSS".
func ParseDirection(s string) (Direction, error) {
	for d, b := range directionTable {
		if b.name == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// AmountToSet returns the balance an account must hold after mutating it by amount.
func (d Direction) AmountToSet(balance, amount decimal.Decimal) decimal.Decimal {
	return balance.Add(d.AppropriateMutationAmount(amount))
}

// AppropriateMutationAmount returns amount signed for d: positive for Benefit, negative for Loss.
func (d Direction) AppropriateMutationAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Abs().Mul(decimal.NewFromInt(d.behavior().sign))
}

// ExchangeDifferenceDirection returns the direction of the conversion difference
// booked for an event of direction d. A custom rate above the natural one hands
// the difference to d itself; below it, to the opposite direction.
func (d Direction) ExchangeDifferenceDirection(customMoreThanNatural bool) Direction {
	b := d.behavior()
	if customMoreThanNatural {
		return b.whenCustomMore
	}
	return b.whenCustomLess
}
