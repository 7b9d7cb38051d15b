package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"canteen-backend/internal/schema"
	"canteen-backend/internal/store"
)

const (
	defaultLimit  = 100
	defaultOffset = 0
)

// ListPlan is a parsed, allow-listed description of one list request.
// Every identifier in it comes from the entity definition, never from the
// caller's raw text.
type ListPlan struct {
	Entity    *schema.Entity
	Filters   []Filter // equality only
	SortField string   // validated field name; empty means default ordering
	SortDesc  bool
	Limit     int
	Offset    int
}

type Filter struct {
	Field string
	Value any
}

// ParseListQuery builds a ListPlan from the request's query parameters.
// Query keys matching declared field names (or created_by) become equality
// filters; unrecognized keys and sort fields are ignored.
func ParseListQuery(c *fiber.Ctx, entity *schema.Entity) *ListPlan {
	plan := &ListPlan{
		Entity: entity,
		Limit:  defaultLimit,
		Offset: defaultOffset,
	}

	for key, val := range c.Queries() {
		switch key {
		case "sort", "limit", "offset":
			continue
		}
		if entity.HasField(key) || key == "created_by" {
			plan.Filters = append(plan.Filters, Filter{Field: key, Value: coerceFilterValue(entity.GetField(key), val)})
		}
	}

	if sortParam := c.Query("sort"); sortParam != "" {
		field := sortParam
		desc := false
		if strings.HasPrefix(sortParam, "-") {
			field = sortParam[1:]
			desc = true
		}
		if entity.HasField(field) || field == "created_date" || field == "updated_date" {
			plan.SortField = field
			plan.SortDesc = desc
		}
	}

	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			plan.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			plan.Offset = n
		}
	}

	return plan
}

// BuildSelectSQL renders the plan as a parameterized SELECT.
func BuildSelectSQL(plan *ListPlan, pb store.ParamBuilder) string {
	entity := plan.Entity

	var where []string
	for _, f := range plan.Filters {
		where = append(where, fmt.Sprintf("%s = %s", f.Field, pb.Add(f.Value)))
	}

	sqlStr := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selectColumns(entity), ", "), entity.TableName)
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}

	if plan.SortField != "" {
		dir := "ASC"
		if plan.SortDesc {
			dir = "DESC"
		}
		sqlStr += fmt.Sprintf(" ORDER BY %s %s", plan.SortField, dir)
	} else {
		sqlStr += " ORDER BY created_date DESC"
	}

	sqlStr += fmt.Sprintf(" LIMIT %s OFFSET %s", pb.Add(plan.Limit), pb.Add(plan.Offset))
	return sqlStr
}

// selectColumns returns the implicit columns plus every declared field, in
// stable order.
func selectColumns(entity *schema.Entity) []string {
	cols := append([]string{}, schema.ImplicitFields...)
	return append(cols, entity.FieldNames()...)
}

// BuildFetchSQL renders the single-row lookup by id.
func BuildFetchSQL(entity *schema.Entity, pb store.ParamBuilder, id string) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE id = %s",
		strings.Join(selectColumns(entity), ", "), entity.TableName, pb.Add(id))
}

// BuildInsertSQL renders an INSERT for the stamped record. Column names are
// the implicit columns plus declared fields present in data.
func BuildInsertSQL(entity *schema.Entity, pb store.ParamBuilder, data map[string]any) string {
	var cols []string
	var placeholders []string

	for _, name := range schema.ImplicitFields {
		cols = append(cols, name)
		placeholders = append(placeholders, pb.Add(data[name]))
	}
	for _, name := range entity.FieldNames() {
		if v, ok := data[name]; ok {
			cols = append(cols, name)
			placeholders = append(placeholders, pb.Add(encodeFieldValue(entity.Fields[name], v)))
		}
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		entity.TableName, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
}

// BuildUpdateSQL renders an UPDATE writing only declared fields present in
// input; id, created_date and created_by are never written through this
// path, and updated_date is stamped server-side. Returns empty SQL when no
// declared field is present.
func BuildUpdateSQL(entity *schema.Entity, pb store.ParamBuilder, id string, input map[string]any, now string) string {
	var sets []string
	for _, name := range entity.FieldNames() {
		if v, ok := input[name]; ok {
			sets = append(sets, fmt.Sprintf("%s = %s", name, pb.Add(encodeFieldValue(entity.Fields[name], v))))
		}
	}
	if len(sets) == 0 {
		return ""
	}

	sets = append(sets, fmt.Sprintf("updated_date = %s", pb.Add(now)))
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = %s",
		entity.TableName, strings.Join(sets, ", "), pb.Add(id))
}

// BuildDeleteSQL renders a DELETE by id.
func BuildDeleteSQL(entity *schema.Entity, pb store.ParamBuilder, id string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE id = %s", entity.TableName, pb.Add(id))
}

// encodeFieldValue converts a JSON input value to its storage
// representation. Structured json fields are serialized; everything else is
// bound as-is.
func encodeFieldValue(f schema.Field, v any) any {
	if f.Type == schema.TypeJSON {
		if v == nil {
			return nil
		}
		switch v.(type) {
		case map[string]any, []any:
			return marshalJSON(v)
		}
	}
	return v
}

// coerceFilterValue converts a query-string filter value to the declared
// field's storage type so equality comparisons behave. created_by (nil
// field) stays a string.
func coerceFilterValue(f *schema.Field, val string) any {
	if f == nil {
		return val
	}
	switch f.Type {
	case schema.TypeNumber:
		if n, err := strconv.ParseFloat(val, 64); err == nil {
			return n
		}
	case schema.TypeBoolean:
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return val
}
