package fridge

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatValue renders a money amount with two decimals. Rounding happens
// here and nowhere else.
func FormatValue(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// FormatCalories renders calories rounded to the nearest whole number.
func FormatCalories(c float64) string {
	return strconv.FormatFloat(math.Round(c), 'f', 0, 64)
}

// FormatQuantity drops the decimals of whole quantities.
func FormatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

// Summary renders the analysis as a plain text table.
func Summary(a *Analysis) string {
	var b strings.Builder
	if a.Len() == 0 {
		b.WriteString("No food found in the image.\n")
	}
	for i, it := range a.items {
		qty := FormatQuantity(it.Quantity)
		if it.Unit != "" {
			qty += " " + it.Unit
		}
		fmt.Fprintf(&b, "%2d. %-28s %-12s %-8s %6s kcal  %s each\n",
			i, it.Name, qty, it.Category, FormatCalories(it.Nutrition.Calories), FormatValue(it.EstimatedValue))
	}
	fmt.Fprintf(&b, "\nTotal calories: %s\nTotal value:    %s\n", FormatCalories(a.TotalCalories()), FormatValue(a.TotalValue()))
	return b.String()
}
