// Package domain contains the core domain types for the arbitrage context.
package domain

// Direction names the pool entered first on the round trip.
type Direction string

const (
	// AFirst sells the input into pool A and buys it back from pool B.
	AFirst Direction = "A_FIRST"

	// BFirst sells the input into pool B and buys it back from pool A.
	BFirst Direction = "B_FIRST"
)

// Route renders the direction the way the deploy script prints it.
func (d Direction) Route() string {
	switch d {
	case AFirst:
		return "A->B"
	case BFirst:
		return "B->A"
	default:
		return "?"
	}
}

func (d Direction) String() string {
	switch d {
	case AFirst:
		return "A_FIRST (pool A, then pool B)"
	case BFirst:
		return "B_FIRST (pool B, then pool A)"
	default:
		return "Unknown"
	}
}

// ParseDirection accepts A_FIRST/B_FIRST or the A->B/B->A route form.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case string(AFirst), "A->B":
		return AFirst, true
	case string(BFirst), "B->A":
		return BFirst, true
	default:
		return "", false
	}
}
