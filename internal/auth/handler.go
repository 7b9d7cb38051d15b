package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"canteen-backend/internal/engine"
	"canteen-backend/internal/store"
)

// Handler serves the authentication endpoints. The users table is an
// ordinary entity table; this handler is the only place that reads the
// hidden password column.
type Handler struct {
	store     *store.Store
	jwtSecret string
}

func NewHandler(s *store.Store, jwtSecret string) *Handler {
	return &Handler{store: s, jwtSecret: jwtSecret}
}

// profileFields are the user columns a caller may change through PUT /me.
var profileFields = []string{
	"full_name", "roll_number", "year", "branch", "phone", "profile_complete", "wallet_balance",
}

// userResponse strips the password column from a users row.
func userResponse(row map[string]any) fiber.Map {
	return fiber.Map{
		"id":               row["id"],
		"email":            row["email"],
		"full_name":        row["full_name"],
		"role":             row["role"],
		"wallet_balance":   numeric(row["wallet_balance"]),
		"profile_complete": boolean(row["profile_complete"]),
		"roll_number":      row["roll_number"],
		"year":             row["year"],
		"branch":           row["branch"],
		"phone":            row["phone"],
	}
}

// Register handles POST /api/auth/register. New accounts always get the
// student role; admins are provisioned by other admins.
func (h *Handler) Register(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}
	if body.Email == "" || body.Password == "" || body.FullName == "" {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Email, password, and full_name are required")
	}
	if len(body.Password) < 6 {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Password must be at least 6 characters")
	}

	ctx := c.Context()
	if _, err := h.findUserByEmail(ctx, body.Email); err == nil {
		return engine.NewAppError("DUPLICATE_USER", 400, "User already exists")
	}

	hash, err := HashPassword(body.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	userID := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		`INSERT INTO users (id, created_date, updated_date, created_by, email, password, full_name, role, wallet_balance, profile_complete)
		 VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		pb.Add(userID), pb.Add(now), pb.Add(now), pb.Add(body.Email),
		pb.Add(body.Email), pb.Add(hash), pb.Add(body.FullName),
		pb.Add("student"), pb.Add(0), pb.Add(false))

	if _, err := store.Exec(ctx, h.store.DB, sqlStr, pb.Params()...); err != nil {
		if errors.Is(store.MapError(h.store.Dialect, err), store.ErrUniqueViolation) {
			return engine.NewAppError("DUPLICATE_USER", 400, "User already exists")
		}
		return fmt.Errorf("insert user: %w", err)
	}

	token, err := GenerateToken(userID, body.Email, h.jwtSecret)
	if err != nil {
		return err
	}

	return c.Status(201).JSON(fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":               userID,
			"email":            body.Email,
			"full_name":        body.FullName,
			"role":             "student",
			"wallet_balance":   0,
			"profile_complete": false,
		},
	})
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}
	if body.Email == "" || body.Password == "" {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Email and password are required")
	}

	user, err := h.findUserByEmail(c.Context(), body.Email)
	if err != nil {
		return engine.UnauthorizedError("Invalid credentials")
	}

	hash, _ := user["password"].(string)
	if !CheckPassword(body.Password, hash) {
		return engine.UnauthorizedError("Invalid credentials")
	}

	userID, _ := user["id"].(string)
	token, err := GenerateToken(userID, body.Email, h.jwtSecret)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"token": token, "user": userResponse(user)})
}

// Me handles GET /api/auth/me.
func (h *Handler) Me(c *fiber.Ctx) error {
	p, _ := c.Locals("principal").(*engine.Principal)
	user, err := h.findUserByID(c.Context(), p.ID)
	if err != nil {
		return engine.NotFoundError("user", p.ID)
	}
	return c.JSON(userResponse(user))
}

// UpdateMe handles PUT /api/auth/me. Only profile fields may change; email,
// role and password have their own flows.
func (h *Handler) UpdateMe(c *fiber.Ctx) error {
	p, _ := c.Locals("principal").(*engine.Principal)

	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}

	pb := h.store.Dialect.NewParamBuilder()
	var sets []string
	for _, field := range profileFields {
		if v, ok := body[field]; ok {
			sets = append(sets, fmt.Sprintf("%s = %s", field, pb.Add(v)))
		}
	}
	if len(sets) == 0 {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "No valid fields to update")
	}

	sets = append(sets, fmt.Sprintf("updated_date = %s", pb.Add(time.Now().UTC().Format(time.RFC3339Nano))))
	sqlStr := fmt.Sprintf("UPDATE users SET %s WHERE id = %s",
		strings.Join(sets, ", "), pb.Add(p.ID))

	if _, err := store.Exec(c.Context(), h.store.DB, sqlStr, pb.Params()...); err != nil {
		return fmt.Errorf("update user %s: %w", p.ID, err)
	}

	user, err := h.findUserByID(c.Context(), p.ID)
	if err != nil {
		return fmt.Errorf("refetch user %s: %w", p.ID, err)
	}
	return c.JSON(userResponse(user))
}

// IsAuthenticated handles GET /api/auth/is-authenticated.
func (h *Handler) IsAuthenticated(c *fiber.Ctx) error {
	p, _ := c.Locals("principal").(*engine.Principal)
	return c.JSON(fiber.Map{"authenticated": true, "user": p})
}

// RegisterRoutes mounts the auth endpoints.
func RegisterRoutes(app *fiber.App, h *Handler, required fiber.Handler) {
	grp := app.Group("/api/auth")
	grp.Post("/register", h.Register)
	grp.Post("/login", h.Login)
	grp.Get("/me", required, h.Me)
	grp.Put("/me", required, h.UpdateMe)
	grp.Get("/is-authenticated", required, h.IsAuthenticated)
}

// --- helpers ---

func (h *Handler) findUserByEmail(ctx context.Context, email string) (map[string]any, error) {
	pb := h.store.Dialect.NewParamBuilder()
	return store.QueryRow(ctx, h.store.DB,
		"SELECT * FROM users WHERE email = "+pb.Add(email), pb.Params()...)
}

func (h *Handler) findUserByID(ctx context.Context, id string) (map[string]any, error) {
	pb := h.store.Dialect.NewParamBuilder()
	return store.QueryRow(ctx, h.store.DB,
		"SELECT * FROM users WHERE id = "+pb.Add(id), pb.Params()...)
}

// numeric undoes the text representation some drivers use for NUMERIC
// columns.
func numeric(v any) any {
	switch n := v.(type) {
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f
		}
		return n
	case int64:
		return float64(n)
	default:
		return v
	}
}

func boolean(v any) any {
	switch b := v.(type) {
	case int64:
		return b != 0
	case float64:
		return b != 0
	default:
		return v
	}
}
