package money

import (
	"encoding/json"
	"math"
)

// Cents is a monetary amount in integer minor units. All arithmetic happens
// in cents; the decimal display value only exists at the JSON boundary.
type Cents int64

// FromDisplay converts a decimal currency value to cents with half-up rounding.
func FromDisplay(v float64) Cents {
	return Cents(math.Round(v * 100))
}

// Display returns the decimal currency value.
func (c Cents) Display() float64 {
	return float64(c) / 100
}

// JSON carries the display value, the way API clients expect amounts.

func (c Cents) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Display())
}

func (c *Cents) UnmarshalJSON(data []byte) error {
	var v float64

	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	*c = FromDisplay(v)
	return nil
}
