// Package catalog holds the product configurations the shop builds and sells.
package catalog

import (
	"fmt"
	"math"
	"strings"
)

const (
	ActionMade = "made"
	ActionSold = "sold"
)

var kvOptions = []string{
	"10kv",
	"8kv",
	"5kv",
	"3kv",
	"1KvA",
	"500 Watt",
	"300 Watt",
	"1 Kva Charger",
	"500 Watt Charger",
	"Inverter",
}

var materialOptions = []string{"Aluminium", "Copper"}

var defaultTypes = []string{"Manual", "Automatic"}

// typesByKV overrides defaultTypes for specific kv classes.
var typesByKV = map[string][]string{
	"3kv":      {"Full Automatic", "Digital", "Local"},
	"5kv":      {"Full Automatic", "Digital", "Local"},
	"8kv":      {"Full Automatic", "Digital", "Local"},
	"10kv":     {"Manual", "Automatic"},
	"Inverter": {"Automatic"},
}

// FieldError describes one rejected configuration field.
type FieldError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// ValidationError lists every field the catalog rejected.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

// KVOptions returns the kv classes in display order.
func KVOptions() []string {
	return append([]string(nil), kvOptions...)
}

// MaterialOptions returns the known materials.
func MaterialOptions() []string {
	return append([]string(nil), materialOptions...)
}

// DefaultTypes returns the types allowed for a kv without its own entry.
func DefaultTypes() []string {
	return append([]string(nil), defaultTypes...)
}

// Actions returns the supported movement actions.
func Actions() []string {
	return []string{ActionMade, ActionSold}
}

// TypeOptions returns the permitted types for kv.
func TypeOptions(kv string) []string {
	if types, ok := typesByKV[kv]; ok {
		return append([]string(nil), types...)
	}
	return DefaultTypes()
}

// TypeTable returns the explicit kv → types table.
func TypeTable() map[string][]string {
	table := make(map[string][]string, len(typesByKV))
	for kv, types := range typesByKV {
		table[kv] = append([]string(nil), types...)
	}
	return table
}

// IsKnownKV reports whether kv is in the catalog.
func IsKnownKV(kv string) bool {
	return contains(kvOptions, kv)
}

// IsKnownMaterial reports whether material is in the catalog.
func IsKnownMaterial(material string) bool {
	return contains(materialOptions, material)
}

// Validate checks a configuration against the catalog. Comparison is exact and case-sensitive.
func Validate(kv, material, typ string) error {
	var fields []FieldError

	kvKnown := IsKnownKV(kv)
	if !kvKnown {
		fields = append(fields, FieldError{
			Field:   "kv",
			Value:   kv,
			Message: fmt.Sprintf("unknown kv %q", kv),
		})
	}

	if !IsKnownMaterial(material) {
		fields = append(fields, FieldError{
			Field:   "material",
			Value:   material,
			Message: fmt.Sprintf("unknown material %q", material),
		})
	}

	// type only makes sense against a known kv
	if kvKnown && !contains(TypeOptions(kv), typ) {
		fields = append(fields, FieldError{
			Field:   "type",
			Value:   typ,
			Message: fmt.Sprintf("type %q is not available for kv %q", typ, kv),
		})
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// MaxQuantity bounds the magnitude of a single movement.
const MaxQuantity = math.MaxInt32

// SignedQuantity applies the action sign convention: made is +|q|, sold is -|q|.
// Without an action the quantity is taken as already signed.
func SignedQuantity(action string, quantity int) (int, error) {
	if quantity == 0 {
		return 0, fmt.Errorf("quantity must not be zero")
	}
	if quantity > MaxQuantity || quantity < -MaxQuantity {
		return 0, fmt.Errorf("quantity must be between -%d and %d", MaxQuantity, MaxQuantity)
	}

	magnitude := quantity
	if magnitude < 0 {
		magnitude = -magnitude
	}

	switch action {
	case "":
		return quantity, nil
	case ActionMade:
		return magnitude, nil
	case ActionSold:
		return -magnitude, nil
	default:
		return 0, fmt.Errorf("unknown action %q", action)
	}
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
