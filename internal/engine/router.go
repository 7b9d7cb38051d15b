package engine

import (
	"github.com/gofiber/fiber/v2"

	"canteen-backend/internal/schema"
	"canteen-backend/internal/store"
)

// RegisterEntityRoutes constructs one handler per registered entity and
// mounts its operations under /entities/{name}. Reads take the optional-auth
// middleware (public schemas stay reachable anonymously); writes always
// require a resolved principal.
func RegisterEntityRoutes(app *fiber.App, s *store.Store, reg *schema.Registry, required, optional fiber.Handler) {
	for _, entity := range reg.All() {
		h := NewEntityHandler(entity, s)
		grp := app.Group("/entities/" + entity.Name)

		// /schema before /:id so the literal segment wins
		grp.Get("/schema", h.Schema)
		grp.Get("/", optional, h.List)
		grp.Post("/", required, h.Create)
		grp.Post("/bulk", required, h.BulkCreate)
		grp.Get("/:id", optional, h.Get)
		grp.Put("/:id", required, h.Update)
		grp.Delete("/:id", required, h.Delete)
	}
}
