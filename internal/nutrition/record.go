package nutrition

import (
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	// SourceLocal marks observations taken from the bundled dataset.
	SourceLocal = "Local Estimation"

	// NotAvailable is the wire value of Calories when no energy figure was found.
	NotAvailable = "Not available"

	energyName = "Energy"
	energyUnit = "kcal"
)

// LabelScore is one entry of a classifier's probability distribution.
type LabelScore struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Classification is what a classifier produces for a single image.
type Classification struct {
	Label        string
	Confidence   float64
	Distribution []LabelScore
}

// Observation is a single nutrient value reported by a data source.
type Observation struct {
	NutrientName string  `json:"nutrientName"`
	Value        float64 `json:"value"`
	UnitName     string  `json:"unitName"`
	Source       string  `json:"source,omitempty"`
}

// Calories is either a number or "Not available".
type Calories struct {
	Value     float64
	Available bool
}

// KnownCalories returns an available Calories value.
func KnownCalories(v float64) Calories {
	return Calories{Value: v, Available: true}
}

func (c Calories) String() string {
	if !c.Available {
		return NotAvailable
	}
	return strconv.FormatFloat(c.Value, 'f', -1, 64)
}

// MarshalJSON encodes a number, or the string "Not available".
func (c Calories) MarshalJSON() ([]byte, error) {
	if !c.Available {
		return json.Marshal(NotAvailable)
	}
	return json.Marshal(c.Value)
}

// UnmarshalJSON accepts either form produced by MarshalJSON.
func (c *Calories) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != NotAvailable {
			return fmt.Errorf("calories: unexpected string %q", s)
		}
		*c = Calories{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("calories: %w", err)
	}
	*c = KnownCalories(v)
	return nil
}

// Record is the resolved nutrition answer for one image or query.
type Record struct {
	Prediction string        `json:"prediction"`
	Calories   Calories      `json:"calories"`
	Confidence *float64      `json:"confidence,omitempty"`
	Nutrition  []Observation `json:"nutrition"`
}
