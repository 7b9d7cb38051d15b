package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"canteen-backend/internal/auth"
	"canteen-backend/internal/config"
	"canteen-backend/internal/engine"
	"canteen-backend/internal/integrations"
	"canteen-backend/internal/schema"
	"canteen-backend/internal/storage"
	"canteen-backend/internal/store"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded (port: %d, driver: %s)", cfg.Server.Port, cfg.Database.Driver)

	// 2. Connect to database
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	// 3. Load entity schemas
	registry, err := schema.Load(cfg.EntitiesDir)
	if err != nil {
		log.Fatalf("Failed to load entity schemas: %v", err)
	}
	log.Printf("Loaded %d entity schemas from %s", registry.Len(), cfg.EntitiesDir)

	// 4. Migrate tables
	if err := store.NewMigrator(db).MigrateAll(ctx, registry); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations complete")

	// 5. Seed the initial admin user
	if err := db.SeedAdminUser(ctx); err != nil {
		log.Fatalf("Admin seeding failed: %v", err)
	}

	// 6. HTTP app
	app := fiber.New(fiber.Config{
		AppName:      "canteen-backend",
		ErrorHandler: engine.ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigin,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	required, optional := auth.Middleware(db, cfg.JWTSecret)

	// 7. Auth surface
	auth.RegisterRoutes(app, auth.NewHandler(db, cfg.JWTSecret), required)

	// 8. Integrations: file uploads and email
	localStorage, err := storage.NewLocalStorage(cfg.Storage.LocalPath)
	if err != nil {
		log.Fatalf("Failed to init storage: %v", err)
	}
	mailer := integrations.NewMailer(cfg.SMTP)
	integrations.RegisterRoutes(app, integrations.NewHandler(localStorage, mailer, cfg.Storage.MaxFileSize), required)

	// 9. Generic entity routes, one handler per schema
	engine.RegisterEntityRoutes(app, db, registry, required, optional)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Listening on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
