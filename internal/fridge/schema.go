package fridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrMalformedJSON is returned when a document is not valid JSON at all.
var ErrMalformedJSON = errors.New("malformed JSON")

// Violation is one field-level schema failure.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.Field == "" {
		return v.Message
	}
	return v.Field + ": " + v.Message
}

// SchemaValidationError lists every violation found in a document.
type SchemaValidationError struct {
	Violations []Violation
}

func (e *SchemaValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "schema validation failed: " + strings.Join(parts, "; ")
}

// nutritionPayload and itemPayload mirror FoodItem with every field optional
// so that presence can be checked explicitly.
type nutritionPayload struct {
	Calories *float64 `json:"calories" validate:"required,finite,gte=0"`
	Protein  *float64 `json:"protein" validate:"omitempty,finite,gte=0"`
	Carbs    *float64 `json:"carbs" validate:"omitempty,finite,gte=0"`
	Fat      *float64 `json:"fat" validate:"omitempty,finite,gte=0"`
}

type itemPayload struct {
	Name           *string           `json:"name" validate:"required,nonblank"`
	Quantity       *float64          `json:"quantity" validate:"required,finite,gt=0"`
	Unit           *string           `json:"unit"`
	Nutrition      *nutritionPayload `json:"nutrition" validate:"required"`
	EstimatedValue *float64          `json:"estimatedValue" validate:"required,finite,gte=0"`
	Category       *string           `json:"category"`
	ExpiryDate     *string           `json:"expiryDate"`
}

func (p *itemPayload) toItem() FoodItem {
	it := FoodItem{
		Name:           strings.TrimSpace(*p.Name),
		Quantity:       *p.Quantity,
		EstimatedValue: *p.EstimatedValue,
		Category:       CategoryOther,
		Nutrition: Nutrition{
			Calories: *p.Nutrition.Calories,
			Protein:  copyFloat(p.Nutrition.Protein),
			Carbs:    copyFloat(p.Nutrition.Carbs),
			Fat:      copyFloat(p.Nutrition.Fat),
		},
	}
	if p.Unit != nil {
		it.Unit = *p.Unit
	}
	if p.Category != nil {
		it.Category = ParseCategory(*p.Category)
	}
	if p.ExpiryDate != nil {
		it.ExpiryDate = *p.ExpiryDate
	}
	return it
}

// payloadOf is the reverse of toItem, used to check items built in code.
func payloadOf(it FoodItem) *itemPayload {
	return &itemPayload{
		Name:           &it.Name,
		Quantity:       &it.Quantity,
		EstimatedValue: &it.EstimatedValue,
		Nutrition: &nutritionPayload{
			Calories: &it.Nutrition.Calories,
			Protein:  it.Nutrition.Protein,
			Carbs:    it.Nutrition.Carbs,
			Fat:      it.Nutrition.Fat,
		},
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		panic(fmt.Sprintf("failed to register nonblank validator: %v", err))
	}
	if err := v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		return isFinite(fl.Field().Float())
	}); err != nil {
		panic(fmt.Sprintf("failed to register finite validator: %v", err))
	}
	return v
}

// ValidateResponse checks a model response of the form {"items": [...]}
// and returns the decoded items. Schema failures are reported as a
// *SchemaValidationError carrying every violation; invalid JSON wraps
// ErrMalformedJSON.
func ValidateResponse(data []byte) ([]FoodItem, error) {
	return validateDocument(data, false)
}

func validateDocument(data []byte, withTotals bool) ([]FoodItem, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || !json.Valid(data) {
			return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
		}
		return nil, &SchemaValidationError{Violations: []Violation{{Message: "expected object"}}}
	}
	if top == nil {
		return nil, &SchemaValidationError{Violations: []Violation{{Message: "expected object"}}}
	}

	var violations []Violation

	if withTotals {
		for _, key := range []string{"totalCalories", "totalValue"} {
			if v := checkNumber(key, top[key]); v != nil {
				violations = append(violations, *v)
			}
		}
	}

	rawItems, ok := top["items"]
	if !ok || isNull(rawItems) {
		violations = append(violations, Violation{Field: "items", Message: "is required"})
		return nil, &SchemaValidationError{Violations: violations}
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(rawItems, &elems); err != nil {
		violations = append(violations, Violation{Field: "items", Message: "expected array"})
		return nil, &SchemaValidationError{Violations: violations}
	}

	items := make([]FoodItem, 0, len(elems))
	for i, raw := range elems {
		prefix := fmt.Sprintf("items[%d]", i)
		payload, itemViolations := validateItem(prefix, raw)
		if len(itemViolations) > 0 {
			violations = append(violations, itemViolations...)
			continue
		}
		items = append(items, payload.toItem())
	}

	if len(violations) == 0 {
		violations = checkTotals(ComputeTotals(items))
	}
	if len(violations) > 0 {
		return nil, &SchemaValidationError{Violations: violations}
	}
	return items, nil
}

func validateItem(prefix string, raw json.RawMessage) (*itemPayload, []Violation) {
	if kind := rawKind(raw); kind != "object" {
		return nil, []Violation{{Field: prefix, Message: "expected object, got " + kind}}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, []Violation{{Field: prefix, Message: err.Error()}}
	}

	var payload itemPayload
	var violations []Violation
	var typeFields []string

	decode := func(name, kind string, raw json.RawMessage, dst any) {
		if raw == nil || isNull(raw) {
			return
		}
		if got := rawKind(raw); got != kind {
			typeFields = append(typeFields, name)
			violations = append(violations, Violation{
				Field:   prefix + "." + name,
				Message: fmt.Sprintf("expected %s, got %s", kind, got),
			})
			return
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			// Numbers outside the float64 range land here.
			typeFields = append(typeFields, name)
			violations = append(violations, Violation{Field: prefix + "." + name, Message: "must be a finite number"})
		}
	}

	decode("name", "string", fields["name"], &payload.Name)
	decode("quantity", "number", fields["quantity"], &payload.Quantity)
	decode("unit", "string", fields["unit"], &payload.Unit)
	if n := fields["nutrition"]; n != nil && !isNull(n) {
		if got := rawKind(n); got != "object" {
			typeFields = append(typeFields, "nutrition")
			violations = append(violations, Violation{Field: prefix + ".nutrition", Message: "expected object, got " + got})
		} else {
			var nutrition map[string]json.RawMessage
			_ = json.Unmarshal(n, &nutrition)
			payload.Nutrition = &nutritionPayload{}
			decode("nutrition.calories", "number", nutrition["calories"], &payload.Nutrition.Calories)
			decode("nutrition.protein", "number", nutrition["protein"], &payload.Nutrition.Protein)
			decode("nutrition.carbs", "number", nutrition["carbs"], &payload.Nutrition.Carbs)
			decode("nutrition.fat", "number", nutrition["fat"], &payload.Nutrition.Fat)
		}
	}
	decode("estimatedValue", "number", fields["estimatedValue"], &payload.EstimatedValue)
	decode("category", "string", fields["category"], &payload.Category)
	decode("expiryDate", "string", fields["expiryDate"], &payload.ExpiryDate)

	violations = append(violations, checkPayload(prefix, &payload, typeFields)...)
	if len(violations) > 0 {
		return nil, violations
	}
	return &payload, nil
}

// checkPayload runs the value rules over a decoded item, skipping fields
// already reported with the wrong type.
func checkPayload(prefix string, payload *itemPayload, skip []string) []Violation {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []Violation{{Field: prefix, Message: err.Error()}}
	}
	var violations []Violation
	for _, fe := range fieldErrs {
		field := stripRoot(fe.Namespace())
		if coveredBy(field, skip) {
			continue
		}
		violations = append(violations, Violation{Field: prefix + "." + field, Message: describe(fe)})
	}
	return violations
}

// checkTotals reports totals that overflow float64. Every item can be in
// range while their products or sum are not.
func checkTotals(t Totals) []Violation {
	var violations []Violation
	if !isFinite(t.TotalCalories) {
		violations = append(violations, Violation{Field: "totalCalories", Message: "must be a finite number"})
	}
	if !isFinite(t.TotalValue) {
		violations = append(violations, Violation{Field: "totalValue", Message: "must be a finite number"})
	}
	return violations
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// rawKind names the JSON type of raw the way violation messages spell it.
func rawKind(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return "nothing"
	}
	switch s[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

func checkNumber(key string, raw json.RawMessage) *Violation {
	if raw == nil || isNull(raw) {
		return &Violation{Field: key, Message: "is required"}
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return &Violation{Field: key, Message: "expected number"}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// stripRoot drops the struct type name validator puts in front of the
// namespace, e.g. "itemPayload.nutrition.calories" -> "nutrition.calories".
func stripRoot(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func coveredBy(field string, prefixes []string) bool {
	for _, p := range prefixes {
		if field == p || strings.HasPrefix(field, p+".") {
			return true
		}
	}
	return false
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "nonblank":
		return "must not be blank"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "finite":
		return "must be a finite number"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
