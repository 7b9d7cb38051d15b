package schema

import (
	"regexp"
	"sort"
)

// identRe limits table and field identifiers to names that can be safely
// embedded in generated SQL. Caller-supplied text never reaches a statement
// unless it matches a name from this registry.
var identRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Registry holds every loaded entity definition for the process lifetime.
// It is populated once at startup and read-only afterwards, so lookups need
// no locking.
type Registry struct {
	entities map[string]*Entity
}

// NewRegistry builds a registry from the given entities.
func NewRegistry(entities []*Entity) *Registry {
	m := make(map[string]*Entity, len(entities))
	for _, e := range entities {
		m[e.Name] = e
	}
	return &Registry{entities: m}
}

// Get returns the entity with the given name, or nil.
func (r *Registry) Get(name string) *Entity {
	return r.entities[name]
}

// All returns every registered entity, sorted by name.
func (r *Registry) All() []*Entity {
	entities := make([]*Entity, 0, len(r.entities))
	for _, e := range r.entities {
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].Name < entities[j].Name })
	return entities
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	return len(r.entities)
}
