package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"canteen-backend/internal/schema"
	"canteen-backend/internal/store"
)

// EntityHandler serves the standard operations for exactly one entity. One
// instance per registered schema is constructed at startup, closing over its
// immutable definition and the injected store; there is no per-request
// registry lookup.
type EntityHandler struct {
	entity *schema.Entity
	store  *store.Store
}

func NewEntityHandler(entity *schema.Entity, s *store.Store) *EntityHandler {
	return &EntityHandler{entity: entity, store: s}
}

// List handles GET /entities/:name.
func (h *EntityHandler) List(c *fiber.Ctx) error {
	p := getPrincipal(c)

	restrictToOwner, appErr := AuthorizeList(p, h.entity)
	if appErr != nil {
		return respondError(c, appErr)
	}

	plan := ParseListQuery(c, h.entity)
	if restrictToOwner {
		plan.Filters = append(plan.Filters, Filter{Field: "created_by", Value: p.Email})
	}

	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := BuildSelectSQL(plan, pb)
	rows, err := store.QueryRows(c.Context(), h.store.DB, sqlStr, pb.Params()...)
	if err != nil {
		return fmt.Errorf("list %s: %w", h.entity.Name, err)
	}

	projected := ProjectRows(h.entity, rows)
	if projected == nil {
		projected = []map[string]any{}
	}
	return c.JSON(projected)
}

// Get handles GET /entities/:name/:id.
func (h *EntityHandler) Get(c *fiber.Ctx) error {
	p := getPrincipal(c)
	id := c.Params("id")

	row, err := h.fetchRow(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return respondError(c, NotFoundError(h.entity.Name, id))
		}
		return fmt.Errorf("get %s/%s: %w", h.entity.Name, id, err)
	}

	if appErr := Authorize(p, h.entity, schema.ActionRead, row); appErr != nil {
		return respondError(c, appErr)
	}

	return c.JSON(ProjectRow(h.entity, row))
}

// Create handles POST /entities/:name. Writes must be attributable, so this
// path requires a principal even when the schema's create rule is public.
func (h *EntityHandler) Create(c *fiber.Ctx) error {
	p := getPrincipal(c)
	if p == nil {
		return respondError(c, UnauthorizedError("Authentication required"))
	}

	if appErr := Authorize(p, h.entity, schema.ActionCreate, nil); appErr != nil {
		return respondError(c, appErr)
	}

	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}

	if errs := Validate(h.entity, body, false); len(errs) > 0 {
		return respondError(c, ValidationError(errs))
	}

	row, err := h.insertRecord(c.Context(), p, body)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.Status(201).JSON(ProjectRow(h.entity, row))
}

// BulkCreate handles POST /entities/:name/bulk. Administrative batch import
// only, regardless of the entity's declared create rule. Each element is
// validated and stamped independently; failures are reported per item rather
// than aborting the batch.
func (h *EntityHandler) BulkCreate(c *fiber.Ctx) error {
	p := getPrincipal(c)
	if p == nil {
		return respondError(c, UnauthorizedError("Authentication required"))
	}
	if !p.IsAdmin() {
		return respondError(c, ForbiddenError("Bulk create requires admin access"))
	}

	var items []map[string]any
	if err := c.BodyParser(&items); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Request body must be a JSON array"))
	}

	type bulkFailure struct {
		Index  int      `json:"index"`
		Errors []string `json:"errors"`
	}
	created := []map[string]any{}
	failed := []bulkFailure{}

	for i, item := range items {
		if errs := Validate(h.entity, item, false); len(errs) > 0 {
			failed = append(failed, bulkFailure{Index: i, Errors: errs})
			continue
		}
		row, err := h.insertRecord(c.Context(), p, item)
		if err != nil {
			failed = append(failed, bulkFailure{Index: i, Errors: []string{err.Error()}})
			continue
		}
		created = append(created, ProjectRow(h.entity, row))
	}

	return c.Status(201).JSON(fiber.Map{"created": created, "failed": failed})
}

// Update handles PUT /entities/:name/:id. Authorization runs against the
// existing row's created_by; the fetch and the write are separate
// statements, so a concurrent change between them wins last-write.
func (h *EntityHandler) Update(c *fiber.Ctx) error {
	p := getPrincipal(c)
	if p == nil {
		return respondError(c, UnauthorizedError("Authentication required"))
	}

	id := c.Params("id")
	existing, err := h.fetchRow(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return respondError(c, NotFoundError(h.entity.Name, id))
		}
		return fmt.Errorf("fetch %s/%s: %w", h.entity.Name, id, err)
	}

	if appErr := Authorize(p, h.entity, schema.ActionUpdate, existing); appErr != nil {
		return respondError(c, appErr)
	}

	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}

	if errs := Validate(h.entity, body, true); len(errs) > 0 {
		return respondError(c, ValidationError(errs))
	}

	pb := h.store.Dialect.NewParamBuilder()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	sqlStr := BuildUpdateSQL(h.entity, pb, id, body, now)
	if sqlStr == "" {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "No valid fields to update"))
	}

	if _, err := store.Exec(c.Context(), h.store.DB, sqlStr, pb.Params()...); err != nil {
		return h.writeError(c, store.MapError(h.store.Dialect, err))
	}

	row, err := h.fetchRow(c.Context(), id)
	if err != nil {
		return fmt.Errorf("refetch %s/%s: %w", h.entity.Name, id, err)
	}
	return c.JSON(ProjectRow(h.entity, row))
}

// Delete handles DELETE /entities/:name/:id.
func (h *EntityHandler) Delete(c *fiber.Ctx) error {
	p := getPrincipal(c)
	if p == nil {
		return respondError(c, UnauthorizedError("Authentication required"))
	}

	id := c.Params("id")
	existing, err := h.fetchRow(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return respondError(c, NotFoundError(h.entity.Name, id))
		}
		return fmt.Errorf("fetch %s/%s: %w", h.entity.Name, id, err)
	}

	if appErr := Authorize(p, h.entity, schema.ActionDelete, existing); appErr != nil {
		return respondError(c, appErr)
	}

	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := BuildDeleteSQL(h.entity, pb, id)
	if _, err := store.Exec(c.Context(), h.store.DB, sqlStr, pb.Params()...); err != nil {
		return fmt.Errorf("delete %s/%s: %w", h.entity.Name, id, err)
	}

	return c.SendStatus(204)
}

// Schema handles GET /entities/:name/schema. Definitions are not sensitive;
// clients use them for form generation.
func (h *EntityHandler) Schema(c *fiber.Ctx) error {
	return c.JSON(h.entity)
}

// --- helpers ---

func (h *EntityHandler) fetchRow(ctx context.Context, id string) (map[string]any, error) {
	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := BuildFetchSQL(h.entity, pb, id)
	return store.QueryRow(ctx, h.store.DB, sqlStr, pb.Params()...)
}

// insertRecord applies defaults, stamps the engine-owned columns and
// persists. Caller-supplied values for the implicit columns are discarded.
func (h *EntityHandler) insertRecord(ctx context.Context, p *Principal, body map[string]any) (map[string]any, error) {
	data := ApplyDefaults(h.entity, body)

	id := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	data["id"] = id
	data["created_date"] = now
	data["updated_date"] = now
	data["created_by"] = p.Email

	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := BuildInsertSQL(h.entity, pb, data)
	if _, err := store.Exec(ctx, h.store.DB, sqlStr, pb.Params()...); err != nil {
		return nil, store.MapError(h.store.Dialect, err)
	}

	return h.fetchRow(ctx, id)
}

func (h *EntityHandler) writeError(c *fiber.Ctx, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return respondError(c, appErr)
	}
	if errors.Is(err, store.ErrUniqueViolation) {
		return respondError(c, ConflictError("A record with this value already exists"))
	}
	return err
}

func getPrincipal(c *fiber.Ctx) *Principal {
	p, _ := c.Locals("principal").(*Principal)
	return p
}

func respondError(c *fiber.Ctx, appErr *AppError) error {
	// Validation failures keep the original wire shape: a bare error list.
	if appErr.Code == "VALIDATION_FAILED" {
		return c.Status(appErr.Status).JSON(fiber.Map{"errors": appErr.Errors})
	}
	return c.Status(appErr.Status).JSON(ErrorResponse{Error: appErr})
}

// ErrorHandler is the app-wide fiber error handler. Handlers that return an
// *AppError get its status and envelope; anything else is an internal error.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return respondError(c, appErr)
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(ErrorResponse{
			Error: NewAppError("HTTP_ERROR", fiberErr.Code, fiberErr.Message),
		})
	}
	log.Printf("ERROR: unhandled: %v", err)
	return c.Status(500).JSON(ErrorResponse{
		Error: NewAppError("INTERNAL_ERROR", 500, "Internal server error"),
	})
}
