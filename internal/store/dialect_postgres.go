package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"canteen-backend/internal/schema"
)

// PostgresDialect implements Dialect for PostgreSQL via pgx/stdlib.
type PostgresDialect struct{}

func (d *PostgresDialect) Name() string       { return "postgres" }
func (d *PostgresDialect) DriverName() string { return "pgx" }

func (d *PostgresDialect) NewParamBuilder() ParamBuilder {
	return &pgParamBuilder{}
}

func (d *PostgresDialect) NowExpr() string    { return "NOW()" }
func (d *PostgresDialect) NeedsBoolFix() bool { return false }

// ColumnType reproduces the engine's abstract-to-physical mapping:
// string/email is a bounded varchar, string/date a date, number a
// fixed-point decimal, json a jsonb blob. Unrecognized types fall back to
// text.
func (d *PostgresDialect) ColumnType(f schema.Field) string {
	switch f.Type {
	case schema.TypeString:
		switch f.Format {
		case "email":
			return "VARCHAR(255)"
		case "date":
			return "DATE"
		}
		return "TEXT"
	case schema.TypeNumber:
		return "DECIMAL(10, 2)"
	case schema.TypeBoolean:
		return "BOOLEAN"
	case schema.TypeJSON:
		return "JSONB"
	case "uuid":
		return "UUID"
	case "timestamp":
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func (d *PostgresDialect) TableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_name = $1 AND table_schema = 'public')`,
		tableName,
	).Scan(&exists)
	return exists, err
}

func (d *PostgresDialect) GetColumns(ctx context.Context, db *sql.DB, tableName string) (map[string]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT column_name, data_type FROM information_schema.columns WHERE table_name = $1 AND table_schema = 'public'`,
		tableName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]string)
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, err
		}
		cols[name] = dataType
	}
	return cols, rows.Err()
}

func (d *PostgresDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 23505 = unique_violation
		if pgErr.Code == "23505" {
			return errors.Join(ErrUniqueViolation, err)
		}
	}
	return err
}
