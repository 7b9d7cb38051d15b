package schema

// Field describes one declared column of an entity.
type Field struct {
	Type      string   `json:"type"`
	Required  bool     `json:"required,omitempty"`
	Unique    bool     `json:"unique,omitempty"`
	Default   any      `json:"default,omitempty"`
	Enum      []string `json:"enum,omitempty"`
	Format    string   `json:"format,omitempty"` // "email", "date"
	MinLength int      `json:"minLength,omitempty"`
	Minimum   *float64 `json:"minimum,omitempty"`
	Maximum   *float64 `json:"maximum,omitempty"`
	Hidden    bool     `json:"hidden,omitempty"`
}

// Recognized field types. Anything else materializes as TEXT and is
// skipped by type conformance checks.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeJSON    = "json"
)

// KnownType reports whether the field's type is one of the four
// recognized kinds.
func (f Field) KnownType() bool {
	switch f.Type {
	case TypeString, TypeNumber, TypeBoolean, TypeJSON:
		return true
	}
	return false
}
