package engine

import (
	"encoding/json"
	"strconv"
	"time"

	"canteen-backend/internal/schema"
)

// ProjectRow applies the field-visibility mask to a stored row: every
// declared field is included unless hidden, and the four implicit columns
// are unconditionally re-included afterward, so they can never be hidden.
// Values are decoded back to their abstract types on the way out (drivers
// return NUMERIC as text, booleans as integers and json as text, depending
// on the dialect).
func ProjectRow(entity *schema.Entity, row map[string]any) map[string]any {
	clean := make(map[string]any, len(entity.Fields)+4)

	for _, name := range entity.FieldNames() {
		f := entity.Fields[name]
		if f.Hidden {
			continue
		}
		clean[name] = decodeFieldValue(f, row[name])
	}

	for _, name := range schema.ImplicitFields {
		clean[name] = row[name]
	}
	return clean
}

// ProjectRows projects a result set in place order.
func ProjectRows(entity *schema.Entity, rows []map[string]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = ProjectRow(entity, row)
	}
	return out
}

func decodeFieldValue(f schema.Field, v any) any {
	if v == nil {
		return nil
	}

	switch f.Type {
	case schema.TypeNumber:
		switch n := v.(type) {
		case float64:
			return n
		case int64:
			return float64(n)
		case string:
			if parsed, err := strconv.ParseFloat(n, 64); err == nil {
				return parsed
			}
		}
	case schema.TypeBoolean:
		switch b := v.(type) {
		case bool:
			return b
		case int64:
			return b != 0
		case float64:
			return b != 0
		}
	case schema.TypeJSON:
		switch s := v.(type) {
		case string:
			return unmarshalJSON(s)
		case []byte:
			return unmarshalJSON(string(s))
		case time.Time:
			// normalizeValue can misread a date-like json string; undo it
			return v
		}
	}
	return v
}

func marshalJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

func unmarshalJSON(s string) any {
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return s
	}
	return out
}
