package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"canteen-backend/internal/engine"
	"canteen-backend/internal/store"
)

// Middleware returns the required-auth and optional-auth Fiber handlers.
// Both resolve the bearer token into an engine.Principal stored on the
// request; the optional variant lets anonymous requests through with no
// principal set.
func Middleware(s *store.Store, secret string) (required fiber.Handler, optional fiber.Handler) {
	required = func(c *fiber.Ctx) error {
		p, appErr := resolve(c, s, secret)
		if appErr != nil {
			return c.Status(appErr.Status).JSON(engine.ErrorResponse{Error: appErr})
		}
		c.Locals("principal", p)
		return c.Next()
	}

	optional = func(c *fiber.Ctx) error {
		if c.Get("Authorization") == "" {
			return c.Next()
		}
		if p, appErr := resolve(c, s, secret); appErr == nil {
			c.Locals("principal", p)
		}
		return c.Next()
	}

	return required, optional
}

func resolve(c *fiber.Ctx, s *store.Store, secret string) (*engine.Principal, *engine.AppError) {
	header := c.Get("Authorization")
	if header == "" {
		return nil, engine.UnauthorizedError("Authentication required")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, engine.UnauthorizedError("Invalid auth header format")
	}

	claims, err := ParseToken(parts[1], secret)
	if err != nil {
		return nil, engine.UnauthorizedError("Invalid or expired token")
	}

	p, err := FindPrincipal(c.Context(), s, claims.Subject)
	if err != nil {
		return nil, engine.UnauthorizedError("User not found")
	}
	return p, nil
}

// FindPrincipal loads the principal fields for a user id.
func FindPrincipal(ctx context.Context, s *store.Store, userID string) (*engine.Principal, error) {
	pb := s.Dialect.NewParamBuilder()
	row, err := store.QueryRow(ctx, s.DB,
		"SELECT id, email, role, full_name FROM users WHERE id = "+pb.Add(userID),
		pb.Params()...)
	if err != nil {
		return nil, err
	}

	return &engine.Principal{
		ID:       asString(row["id"]),
		Email:    asString(row["email"]),
		Role:     asString(row["role"]),
		FullName: asString(row["full_name"]),
	}, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
