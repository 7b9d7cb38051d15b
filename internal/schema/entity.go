package schema

import "sort"

// Permission actions.
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionList   = "list"
)

// PermissionRule is the declared rule for one action. A nil rule (action
// absent from the permissions map) means the action is disallowed.
type PermissionRule struct {
	Public        bool `json:"public,omitempty"`
	Authenticated bool `json:"authenticated,omitempty"`
	Admin         bool `json:"admin,omitempty"`
	Own           bool `json:"own,omitempty"`
}

// Entity is one declarative entity definition: its fields plus per-action
// permission rules. Entities are loaded once at startup and never mutated.
type Entity struct {
	Name        string                     `json:"name"`
	TableName   string                     `json:"tableName"`
	Fields      map[string]Field           `json:"fields"`
	Permissions map[string]*PermissionRule `json:"permissions"`
}

// Implicit columns present on every entity table. They are server-managed:
// never validated, never hidden, never writable through update.
var ImplicitFields = []string{"id", "created_date", "updated_date", "created_by"}

// IsImplicitField reports whether name is one of the engine-owned columns.
func IsImplicitField(name string) bool {
	switch name {
	case "id", "created_date", "updated_date", "created_by":
		return true
	}
	return false
}

// GetField returns the declared field with the given name, or nil.
func (e *Entity) GetField(name string) *Field {
	if f, ok := e.Fields[name]; ok {
		return &f
	}
	return nil
}

// HasField reports whether the entity declares a field with the given name.
func (e *Entity) HasField(name string) bool {
	_, ok := e.Fields[name]
	return ok
}

// FieldNames returns all declared field names in stable (sorted) order, so
// generated DDL and column lists are deterministic across runs.
func (e *Entity) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rule returns the permission rule for the given action, or nil when the
// action is disallowed for this entity.
func (e *Entity) Rule(action string) *PermissionRule {
	if e.Permissions == nil {
		return nil
	}
	return e.Permissions[action]
}
