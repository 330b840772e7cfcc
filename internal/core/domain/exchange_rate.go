package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// RateScale is the number of fractional digits kept by rate divisions.
const RateScale = 24

// ConversionRate is a learned multiplier for one direction of a pair on one day:
// an amount of Pair.From times Rate is the amount of Pair.To.
type ConversionRate struct {
	ID   int64           `json:"id"`
	Day  Day             `json:"day"`
	Pair Pair            `json:"pair"`
	Rate decimal.Decimal `json:"rate"`
}

var (
	one = decimal.NewFromInt(1)
	two = decimal.NewFromInt(2)
	ulp = decimal.New(1, -RateScale)
	ten = big.NewInt(10)
)

// ReverseRate returns 1/rate at RateScale, half-down, trailing zeros stripped.
func ReverseRate(rate decimal.Decimal) decimal.Decimal {
	return DivideRate(one, rate)
}

// Triangulate returns the multiplier from A to B given hub->A and hub->B multipliers.
func Triangulate(hubToA, hubToB decimal.Decimal) decimal.Decimal {
	return DivideRate(hubToB, hubToA)
}

// DivideRate returns a/b rounded half-down to RateScale fractional digits and
// normalized. Dividing by zero panics, as decimal.Div does.
func DivideRate(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		panic("decimal division by 0")
	}
	// a == b*q + r with q truncated at RateScale and |r| < |b|*ulp
	q, r := a.QuoRem(b, RateScale)
	// half-down: only a remainder strictly above one half rounds away from zero
	if r.Abs().Mul(two).GreaterThan(b.Abs().Mul(ulp)) {
		if a.Sign()*b.Sign() < 0 {
			q = q.Sub(ulp)
		} else {
			q = q.Add(ulp)
		}
	}
	return Normalize(q)
}

// Normalize strips trailing fractional zeros so equal values share one representation.
func Normalize(d decimal.Decimal) decimal.Decimal {
	c := d.Coefficient()
	if c.Sign() == 0 {
		return decimal.Zero
	}
	exp := d.Exponent()
	m := new(big.Int)
	for exp < 0 {
		q, rem := new(big.Int).QuoRem(c, ten, m)
		if rem.Sign() != 0 {
			break
		}
		c = q
		exp++
	}
	return decimal.NewFromBigInt(c, exp)
}
