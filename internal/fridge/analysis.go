package fridge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Totals are the aggregates derived from an item list.
type Totals struct {
	TotalCalories float64 `json:"totalCalories"`
	TotalValue    float64 `json:"totalValue"`
}

// ComputeTotals folds items into calorie and value totals. It never
// modifies items and returns zeros for an empty list.
func ComputeTotals(items []FoodItem) Totals {
	var t Totals
	for _, it := range items {
		t.TotalCalories += it.Nutrition.Calories * it.Quantity
		t.TotalValue += it.EstimatedValue * it.Quantity
	}
	return t
}

// Analysis is the result of one extraction: the item list plus its derived
// totals. Totals are recomputed whenever the items change and cannot be
// set from outside the package.
type Analysis struct {
	items  []FoodItem
	totals Totals
}

// NewAnalysis builds an analysis from items, computing the totals. Names
// are trimmed and categories normalized the same way a decoded document
// is, so an analysis reads back exactly as it was built.
func NewAnalysis(items []FoodItem) *Analysis {
	cp := make([]FoodItem, len(items))
	for i, it := range items {
		cp[i] = it.clone()
		cp[i].Name = strings.TrimSpace(it.Name)
		cp[i].Category = ParseCategory(string(it.Category))
	}
	return &Analysis{items: cp, totals: ComputeTotals(cp)}
}

// Validate checks the analysis against the same rules a stored document
// must pass, including finite totals. Failures are a *SchemaValidationError.
func (a *Analysis) Validate() error {
	var violations []Violation
	for i, it := range a.items {
		violations = append(violations, checkPayload(fmt.Sprintf("items[%d]", i), payloadOf(it), nil)...)
	}
	if len(violations) == 0 {
		violations = checkTotals(a.totals)
	}
	if len(violations) > 0 {
		return &SchemaValidationError{Violations: violations}
	}
	return nil
}

// Items returns a copy of the items in extraction order.
func (a *Analysis) Items() []FoodItem {
	out := make([]FoodItem, len(a.items))
	for i, it := range a.items {
		out[i] = it.clone()
	}
	return out
}

// Len returns the number of items.
func (a *Analysis) Len() int {
	return len(a.items)
}

// TotalCalories is the sum of calories * quantity over all items.
func (a *Analysis) TotalCalories() float64 {
	return a.totals.TotalCalories
}

// TotalValue is the sum of estimatedValue * quantity over all items.
func (a *Analysis) TotalValue() float64 {
	return a.totals.TotalValue
}

// Totals returns both aggregates.
func (a *Analysis) Totals() Totals {
	return a.totals
}

// WithQuantity returns a new analysis where only the quantity of the item at
// index changed. The second return value is false, and the receiver is
// returned as is, when index is out of range.
func (a *Analysis) WithQuantity(index int, quantity float64) (*Analysis, bool) {
	if index < 0 || index >= len(a.items) {
		return a, false
	}
	items := a.Items()
	items[index].Quantity = quantity
	return &Analysis{items: items, totals: ComputeTotals(items)}, true
}

type analysisJSON struct {
	Items         []FoodItem `json:"items"`
	TotalCalories float64    `json:"totalCalories"`
	TotalValue    float64    `json:"totalValue"`
}

// MarshalJSON writes the persisted layout: items followed by the totals.
func (a *Analysis) MarshalJSON() ([]byte, error) {
	items := a.items
	if items == nil {
		items = []FoodItem{}
	}
	return json.Marshal(analysisJSON{
		Items:         items,
		TotalCalories: a.totals.TotalCalories,
		TotalValue:    a.totals.TotalValue,
	})
}

// UnmarshalJSON validates data against the analysis schema. Stored totals
// are checked for shape but always recomputed from the items.
func (a *Analysis) UnmarshalJSON(data []byte) error {
	items, err := validateDocument(data, true)
	if err != nil {
		return err
	}
	*a = *NewAnalysis(items)
	return nil
}

// String is a one-line summary used in logs.
func (a *Analysis) String() string {
	return fmt.Sprintf("%d items, %s kcal, %s", len(a.items), FormatCalories(a.totals.TotalCalories), FormatValue(a.totals.TotalValue))
}
