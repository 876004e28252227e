package fridge

import "strings"

// Category is the food group an item belongs to.
type Category string

const (
	CategoryProduce Category = "produce"
	CategoryDairy   Category = "dairy"
	CategoryMeat    Category = "meat"
	CategorySeafood Category = "seafood"
	CategoryOther   Category = "other"
)

// Categories lists every accepted category in display order.
var Categories = []Category{CategoryProduce, CategoryDairy, CategoryMeat, CategorySeafood, CategoryOther}

// ParseCategory maps a raw label to a Category. Empty or unknown labels
// fall back to CategoryOther.
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryProduce, CategoryDairy, CategoryMeat, CategorySeafood, CategoryOther:
		return c
	default:
		return CategoryOther
	}
}

// Nutrition holds per-unit nutrition estimates. Calories is always known;
// the macros stay nil when the model did not report them, which is not the
// same thing as zero.
type Nutrition struct {
	Calories float64  `json:"calories"`
	Protein  *float64 `json:"protein,omitempty"`
	Carbs    *float64 `json:"carbs,omitempty"`
	Fat      *float64 `json:"fat,omitempty"`
}

// FoodItem is one inventory entry.
type FoodItem struct {
	Name           string    `json:"name"`
	Quantity       float64   `json:"quantity"`
	Unit           string    `json:"unit,omitempty"`
	Nutrition      Nutrition `json:"nutrition"`
	EstimatedValue float64   `json:"estimatedValue"` // price per unit
	Category       Category  `json:"category"`
	ExpiryDate     string    `json:"expiryDate,omitempty"`
}

// clone returns a deep copy so callers never share macro pointers.
func (it FoodItem) clone() FoodItem {
	out := it
	out.Nutrition.Protein = copyFloat(it.Nutrition.Protein)
	out.Nutrition.Carbs = copyFloat(it.Nutrition.Carbs)
	out.Nutrition.Fat = copyFloat(it.Nutrition.Fat)
	return out
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Float returns a pointer to f, for building items with optional macros.
func Float(f float64) *float64 {
	return &f
}
