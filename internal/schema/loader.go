package schema

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Load reads every *.json entity definition in dir and returns a populated
// registry. Either every definition loads or an error is returned; a
// partial registry is never produced.
func Load(dir string) (*Registry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("entities directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("entities path %s is not a directory", dir)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read entities directory: %w", err)
	}

	var names []string
	for _, f := range files {
		if !f.IsDir() && strings.HasSuffix(f.Name(), ".json") {
			names = append(names, f.Name())
		}
	}
	sort.Strings(names)

	var entities []*Entity
	for _, name := range names {
		entity, err := loadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}

	return NewRegistry(entities), nil
}

func loadFile(path string) (*Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var entity Entity
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := check(&entity); err != nil {
		return nil, fmt.Errorf("invalid entity in %s: %w", path, err)
	}

	for name, f := range entity.Fields {
		if !f.KnownType() {
			log.Printf("WARN: entity %s field %s has unrecognized type %q, will be stored as text",
				entity.Name, name, f.Type)
		}
	}

	return &entity, nil
}

// check enforces the structural invariants a definition must satisfy before
// it can be materialized.
func check(e *Entity) error {
	if e.Name == "" {
		return fmt.Errorf("missing name")
	}
	if e.TableName == "" {
		return fmt.Errorf("entity %s: missing tableName", e.Name)
	}
	if !identRe.MatchString(e.TableName) {
		return fmt.Errorf("entity %s: invalid tableName %q", e.Name, e.TableName)
	}
	if len(e.Fields) == 0 {
		return fmt.Errorf("entity %s: no fields declared", e.Name)
	}
	for name := range e.Fields {
		if !identRe.MatchString(name) {
			return fmt.Errorf("entity %s: invalid field name %q", e.Name, name)
		}
		if IsImplicitField(name) {
			return fmt.Errorf("entity %s: field %q collides with an implicit column", e.Name, name)
		}
	}
	for action := range e.Permissions {
		switch action {
		case ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionList:
		default:
			return fmt.Errorf("entity %s: unknown permission action %q", e.Name, action)
		}
	}
	return nil
}
