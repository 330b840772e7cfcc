package domain

// RateDirection tells how rates returned by a loader must be read.
type RateDirection int

const (
	// MainToOther rates are the amount of the other unit one main unit buys.
	MainToOther RateDirection = iota + 1
	// OtherToMain rates are the amount of the main unit one other unit buys.
	OtherToMain
)

func (d RateDirection) String() string {
	switch d {
	case MainToOther:
		return "main->other"
	case OtherToMain:
		return "other->main"
	}
	return "unknown"
}

// Pair returns the stored direction of a rate between main and other.
func (d RateDirection) Pair(main, other Unit) Pair {
	if d == OtherToMain {
		return NewPair(other, main)
	}
	return NewPair(main, other)
}
