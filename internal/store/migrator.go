package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"canteen-backend/internal/schema"
)

// Migrator materializes entity definitions into physical tables. Every
// operation is idempotent: running it against an existing table adds missing
// columns and indexes and otherwise does nothing.
type Migrator struct {
	store *Store
}

func NewMigrator(store *Store) *Migrator {
	return &Migrator{store: store}
}

// MigrateAll materializes every entity in the registry. Called once at
// startup, before the server accepts traffic; any failure is fatal upstream.
func (m *Migrator) MigrateAll(ctx context.Context, reg *schema.Registry) error {
	for _, entity := range reg.All() {
		if err := m.Migrate(ctx, entity); err != nil {
			return fmt.Errorf("materialize %s: %w", entity.Name, err)
		}
	}
	return nil
}

// Migrate ensures the table matches the entity definition. Creates the table
// if it doesn't exist, or adds missing columns.
func (m *Migrator) Migrate(ctx context.Context, entity *schema.Entity) error {
	exists, err := m.store.Dialect.TableExists(ctx, m.store.DB, entity.TableName)
	if err != nil {
		return fmt.Errorf("check table exists: %w", err)
	}

	if !exists {
		if err := m.createTable(ctx, entity); err != nil {
			return err
		}
	} else if err := m.alterTable(ctx, entity); err != nil {
		return err
	}

	return m.createIndexes(ctx, entity)
}

func (m *Migrator) createTable(ctx context.Context, entity *schema.Entity) error {
	d := m.store.Dialect

	// Every table carries the four engine-owned columns; id is the primary
	// identifier and both timestamps default to creation time.
	cols := []string{
		"id " + d.ColumnType(schema.Field{Type: "uuid"}) + " PRIMARY KEY",
		"created_date " + d.ColumnType(schema.Field{Type: "timestamp"}) + " NOT NULL DEFAULT " + timestampDefault(d),
		"updated_date " + d.ColumnType(schema.Field{Type: "timestamp"}) + " NOT NULL DEFAULT " + timestampDefault(d),
		"created_by " + d.ColumnType(schema.Field{Type: schema.TypeString, Format: "email"}),
	}

	for _, name := range entity.FieldNames() {
		f := entity.Fields[name]
		cols = append(cols, buildColumnDef(d, name, f))
	}

	sqlStr := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)",
		entity.TableName, strings.Join(cols, ",\n  "))

	if _, err := m.store.DB.ExecContext(ctx, sqlStr); err != nil {
		return fmt.Errorf("create table %s: %w", entity.TableName, err)
	}

	log.Printf("Created table %s", entity.TableName)
	return nil
}

func (m *Migrator) alterTable(ctx context.Context, entity *schema.Entity) error {
	existing, err := m.store.Dialect.GetColumns(ctx, m.store.DB, entity.TableName)
	if err != nil {
		return fmt.Errorf("get columns for %s: %w", entity.TableName, err)
	}

	for _, name := range entity.FieldNames() {
		if _, ok := existing[name]; ok {
			continue
		}
		f := entity.Fields[name]
		// Existing rows have no value for the new column, so NOT NULL and
		// UNIQUE are not applied on this path.
		add := schema.Field{Type: f.Type, Format: f.Format, Default: f.Default}
		def := buildColumnDef(m.store.Dialect, name, add)
		sqlStr := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", entity.TableName, def)
		if _, err := m.store.DB.ExecContext(ctx, sqlStr); err != nil {
			return fmt.Errorf("add column %s.%s: %w", entity.TableName, name, err)
		}
		log.Printf("Added column %s.%s", entity.TableName, name)
	}
	return nil
}

// buildColumnDef renders one column clause. Clause order: type, NOT NULL,
// DEFAULT, UNIQUE.
func buildColumnDef(d Dialect, name string, f schema.Field) string {
	col := name + " " + d.ColumnType(f)

	if f.Required {
		col += " NOT NULL"
	}
	if f.Default != nil {
		col += " DEFAULT " + defaultLiteral(f.Default)
	}
	if f.Unique {
		col += " UNIQUE"
	}
	return col
}

// defaultLiteral renders a default value for a DDL clause. DDL cannot carry
// bind parameters, so textual and structured values go through literal
// quoting rather than raw interpolation.
func defaultLiteral(v any) string {
	switch val := v.(type) {
	case string:
		return QuoteLiteral(val)
	case float64:
		return fmt.Sprintf("%v", val)
	case int:
		return fmt.Sprintf("%d", val)
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return "NULL"
		}
		return QuoteLiteral(string(data))
	}
}

func (m *Migrator) createIndexes(ctx context.Context, entity *schema.Entity) error {
	stmts := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_created_date ON %s (created_date)",
			entity.TableName, entity.TableName),
	}

	// created_by backs the row-level-security filter; index it whenever some
	// action restricts access to owned rows.
	if usesOwnership(entity) {
		stmts = append(stmts,
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_created_by ON %s (created_by)",
				entity.TableName, entity.TableName))
	}

	for _, name := range entity.FieldNames() {
		if entity.Fields[name].Unique {
			stmts = append(stmts,
				fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_%s ON %s (%s)",
					entity.TableName, name, entity.TableName, name))
		}
	}

	for _, sqlStr := range stmts {
		if _, err := m.store.DB.ExecContext(ctx, sqlStr); err != nil {
			return fmt.Errorf("create index on %s: %w", entity.TableName, err)
		}
	}
	return nil
}

func usesOwnership(entity *schema.Entity) bool {
	for _, rule := range entity.Permissions {
		if rule != nil && rule.Own {
			return true
		}
	}
	return false
}

func timestampDefault(d Dialect) string {
	if d.Name() == "sqlite" {
		// datetime('now') must be parenthesized in a DEFAULT clause
		return "(" + d.NowExpr() + ")"
	}
	return d.NowExpr()
}
