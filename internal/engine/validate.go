package engine

import (
	"fmt"
	"math"
	"strings"

	"canteen-backend/internal/schema"
)

// Validate checks input against the entity's declared fields and returns
// every violation at once. Required fields are enforced only on create.
// Fields absent from the schema are ignored here; persistence filters them
// out separately.
func Validate(e *schema.Entity, input map[string]any, isUpdate bool) []string {
	var errs []string

	if !isUpdate {
		for _, name := range e.FieldNames() {
			f := e.Fields[name]
			if !f.Required {
				continue
			}
			if v, ok := input[name]; !ok || v == nil {
				errs = append(errs, fmt.Sprintf("Field '%s' is required", name))
			}
		}
	}

	for _, name := range e.FieldNames() {
		f := e.Fields[name]
		value, ok := input[name]
		if !ok || value == nil {
			continue
		}
		errs = append(errs, checkField(name, f, value)...)
	}

	return errs
}

func checkField(name string, f schema.Field, value any) []string {
	var errs []string

	switch f.Type {
	case schema.TypeString:
		s, ok := value.(string)
		if !ok {
			return []string{fmt.Sprintf("Field '%s' must be a string", name)}
		}
		if f.MinLength > 0 && len(s) < f.MinLength {
			errs = append(errs, fmt.Sprintf("Field '%s' must be at least %d characters", name, f.MinLength))
		}
		if len(f.Enum) > 0 && !contains(f.Enum, s) {
			errs = append(errs, fmt.Sprintf("Field '%s' must be one of: %s", name, strings.Join(f.Enum, ", ")))
		}
	case schema.TypeNumber:
		n, ok := toNumber(value)
		if !ok || math.IsNaN(n) {
			return []string{fmt.Sprintf("Field '%s' must be a number", name)}
		}
		if f.Minimum != nil && n < *f.Minimum {
			errs = append(errs, fmt.Sprintf("Field '%s' must be at least %v", name, *f.Minimum))
		}
		if f.Maximum != nil && n > *f.Maximum {
			errs = append(errs, fmt.Sprintf("Field '%s' must be at most %v", name, *f.Maximum))
		}
	case schema.TypeBoolean:
		if _, ok := value.(bool); !ok {
			return []string{fmt.Sprintf("Field '%s' must be a boolean", name)}
		}
	case schema.TypeJSON:
		switch value.(type) {
		case map[string]any, []any:
		default:
			return []string{fmt.Sprintf("Field '%s' must be a valid JSON object or array", name)}
		}
	}
	// Unrecognized types are stored as text and carry no type conformance.

	return errs
}

// ApplyDefaults fills declared defaults for fields absent from input.
// Explicit values, including explicit null, are never overwritten.
func ApplyDefaults(e *schema.Entity, input map[string]any) map[string]any {
	result := make(map[string]any, len(input))
	for k, v := range input {
		result[k] = v
	}

	for name, f := range e.Fields {
		if _, ok := result[name]; !ok && f.Default != nil {
			result[name] = f.Default
		}
	}
	return result
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
