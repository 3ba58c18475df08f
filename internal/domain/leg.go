package domain

// Leg identifies which side of a trade a fan-out executes.
type Leg string

const (
	LegBuy  Leg = "buy"
	LegSell Leg = "sell"
)

// String returns the string representation of Leg.
func (l Leg) String() string {
	return string(l)
}

// IsValid checks if the leg is a valid value.
func (l Leg) IsValid() bool {
	return l == LegBuy || l == LegSell
}
