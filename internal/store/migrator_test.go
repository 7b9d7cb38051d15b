package store

import (
	"context"
	"errors"
	"testing"

	"canteen-backend/internal/schema"
)

func memStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewSQLiteMemory(context.Background())
	if err != nil {
		t.Fatalf("open sqlite memory: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func widgetEntity() *schema.Entity {
	min := 0.0
	return &schema.Entity{
		Name:      "widgets",
		TableName: "widgets",
		Fields: map[string]schema.Field{
			"name":   {Type: schema.TypeString, Required: true},
			"sku":    {Type: schema.TypeString, Unique: true},
			"price":  {Type: schema.TypeNumber, Minimum: &min},
			"active": {Type: schema.TypeBoolean, Default: true},
			"tags":   {Type: schema.TypeJSON},
		},
		Permissions: map[string]*schema.PermissionRule{
			"list": {Own: true},
		},
	}
}

func TestMigrateCreatesTable(t *testing.T) {
	ctx := context.Background()
	s := memStore(t)
	e := widgetEntity()

	if err := NewMigrator(s).Migrate(ctx, e); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	exists, err := s.Dialect.TableExists(ctx, s.DB, "widgets")
	if err != nil {
		t.Fatalf("table exists: %v", err)
	}
	if !exists {
		t.Fatal("widgets table not created")
	}

	cols, err := s.Dialect.GetColumns(ctx, s.DB, "widgets")
	if err != nil {
		t.Fatalf("get columns: %v", err)
	}
	for _, want := range []string{"id", "created_date", "updated_date", "created_by", "name", "sku", "price", "active", "tags"} {
		if _, ok := cols[want]; !ok {
			t.Errorf("missing column %s, have %v", want, cols)
		}
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := memStore(t)
	m := NewMigrator(s)
	e := widgetEntity()

	for i := 0; i < 3; i++ {
		if err := m.Migrate(ctx, e); err != nil {
			t.Fatalf("migrate run %d: %v", i, err)
		}
	}
}

func TestMigrateAddsMissingColumns(t *testing.T) {
	ctx := context.Background()
	s := memStore(t)
	m := NewMigrator(s)
	e := widgetEntity()

	if err := m.Migrate(ctx, e); err != nil {
		t.Fatalf("initial migrate: %v", err)
	}

	e.Fields["weight"] = schema.Field{Type: schema.TypeNumber, Default: 1.5}
	if err := m.Migrate(ctx, e); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	cols, err := s.Dialect.GetColumns(ctx, s.DB, "widgets")
	if err != nil {
		t.Fatalf("get columns: %v", err)
	}
	if _, ok := cols["weight"]; !ok {
		t.Fatalf("weight column not added, have %v", cols)
	}
}

func TestMigratedTableAcceptsRows(t *testing.T) {
	ctx := context.Background()
	s := memStore(t)
	e := widgetEntity()

	if err := NewMigrator(s).Migrate(ctx, e); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pb := s.Dialect.NewParamBuilder()
	sqlStr := "INSERT INTO widgets (id, created_date, updated_date, created_by, name, sku) VALUES (" +
		pb.Add("w1") + ", " + pb.Add("t0") + ", " + pb.Add("t0") + ", " +
		pb.Add("alice@campus.edu") + ", " + pb.Add("Knob") + ", " + pb.Add("SKU-1") + ")"
	if _, err := Exec(ctx, s.DB, sqlStr, pb.Params()...); err != nil {
		t.Fatalf("insert: %v", err)
	}

	pb = s.Dialect.NewParamBuilder()
	row, err := QueryRow(ctx, s.DB, "SELECT * FROM widgets WHERE id = "+pb.Add("w1"), pb.Params()...)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if row["name"] != "Knob" {
		t.Errorf("name: %v", row["name"])
	}
	// the declared boolean default materialized
	if v, ok := row["active"].(int64); !ok || v != 1 {
		t.Errorf("active default: %T %v", row["active"], row["active"])
	}
}

func TestUniqueIndexEnforced(t *testing.T) {
	ctx := context.Background()
	s := memStore(t)
	e := widgetEntity()

	if err := NewMigrator(s).Migrate(ctx, e); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	insert := func(id string) error {
		pb := s.Dialect.NewParamBuilder()
		sqlStr := "INSERT INTO widgets (id, created_date, updated_date, created_by, name, sku) VALUES (" +
			pb.Add(id) + ", " + pb.Add("t0") + ", " + pb.Add("t0") + ", " +
			pb.Add("alice@campus.edu") + ", " + pb.Add("Knob") + ", " + pb.Add("SKU-1") + ")"
		_, err := Exec(ctx, s.DB, sqlStr, pb.Params()...)
		return err
	}

	if err := insert("w1"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := insert("w2")
	if err == nil {
		t.Fatal("duplicate sku accepted")
	}
	if !errors.Is(MapError(s.Dialect, err), ErrUniqueViolation) {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func TestDefaultLiteral(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"blue", "'blue'"},
		{"it's", "'it''s'"},
		{true, "TRUE"},
		{false, "FALSE"},
		{1.5, "1.5"},
		{map[string]any{"a": 1.0}, `'{"a":1}'`},
	}
	for _, tt := range tests {
		if got := defaultLiteral(tt.in); got != tt.want {
			t.Errorf("defaultLiteral(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSeedAdminUser(t *testing.T) {
	ctx := context.Background()
	s := memStore(t)

	users := &schema.Entity{
		Name:      "users",
		TableName: "users",
		Fields: map[string]schema.Field{
			"email":            {Type: schema.TypeString, Required: true, Unique: true},
			"password":         {Type: schema.TypeString, Required: true, Hidden: true},
			"full_name":        {Type: schema.TypeString, Required: true},
			"role":             {Type: schema.TypeString, Default: "student"},
			"wallet_balance":   {Type: schema.TypeNumber, Default: 0.0},
			"profile_complete": {Type: schema.TypeBoolean, Default: false},
		},
	}
	if err := NewMigrator(s).Migrate(ctx, users); err != nil {
		t.Fatalf("migrate users: %v", err)
	}

	if err := s.SeedAdminUser(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.SeedAdminUser(ctx); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	var count int
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one seeded admin, got %d", count)
	}

	row, err := QueryRow(ctx, s.DB, "SELECT * FROM users")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if row["email"] != "admin@canteen.local" || row["role"] != "admin" {
		t.Fatalf("seeded user: %v", row)
	}
}
