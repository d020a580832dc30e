package main

import (
	"context"
	"fmt"
	"time"

	"alprofile/internal/common/config"
	"alprofile/internal/common/middleware"
	extruder "alprofile/internal/extruder/handlers"
	"alprofile/internal/extruder/kernel"
	profiles "alprofile/internal/profile/handlers"
	"alprofile/internal/profile/repository"
	"alprofile/internal/profile/service"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/log"
	"github.com/gofiber/fiber/v3/middleware/recover"
)

// ============================================================
// Extruder Service
// ============================================================

func main() {
	cfg := config.Load()
	log.SetLevel(cfg.Level())

	db, err := repository.OpenSQLite(cfg.ProfilesDBPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	repo := repository.New(db)
	if err := repo.Init(context.Background()); err != nil {
		log.Fatalf("init db: %v", err)
	}

	opts := cfg.PipelineOptions()
	extrudeHandler := extruder.NewExtrudeHandler(kernel.NewPlanar(), opts, cfg.ThumbSize)
	profileHandler := profiles.NewProfileHandler(repo, service.NewFileStorage(cfg.ProfilesRoot), extrudeHandler, cfg.ThumbSize)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		BodyLimit:    cfg.BodyLimitMB * 1024 * 1024,
		AppName:      "Profile Extruder",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS(cfg.CORSOrigins))

	// ============================================================
	// Health Check Routes
	// ============================================================

	app.Get("/health/live", extruder.LivenessProbe)
	app.Get("/health/ready", extruder.ReadinessProbe(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return repo.Ping(ctx)
	}))

	// ============================================================
	// API Docs
	// ============================================================

	app.Get("/docs", extruder.SwaggerUI)
	app.Get("/docs/openapi.yaml", extruder.OpenAPISpec)

	// ============================================================
	// API Routes
	// ============================================================

	api := app.Group("/api")
	extrudeHandler.Register(api)
	profileHandler.Register(api)

	// ============================================================
	// Server Start
	// ============================================================

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Infof("Starting Profile Extruder on %s (env: %s, arc_segments=%d, tolerance=%g, holes=%t)",
		addr, cfg.Environment, opts.ArcSegments, opts.Tolerance, opts.Holes)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
