package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/swio-meteo/cyclone-archive/internal/api/http"
	"github.com/swio-meteo/cyclone-archive/internal/archive"
	"github.com/swio-meteo/cyclone-archive/internal/archive/sources"
	"github.com/swio-meteo/cyclone-archive/internal/config"
	"github.com/swio-meteo/cyclone-archive/internal/scheduler"
	"github.com/swio-meteo/cyclone-archive/internal/viewer"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := os.MkdirAll(cfg.ArchiveDir, 0755); err != nil {
		log.Fatalf("failed to create archive directory: %v", err)
	}

	// Shared HTTP client for outbound upstream calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Archive pipeline, enabled only when an upstream is configured.
	var archiver *archive.Archiver
	if cfg.TrajectoryURL != "" {
		trajectory := sources.NewTrajectorySource(httpClient, cfg.TrajectoryURL)
		var satellite archive.ImageFetcher
		if cfg.WMSURL != "" {
			satellite = sources.NewSatelliteSource(httpClient, cfg.WMSURL)
		}
		archiver = archive.New(cfg.ArchiveDir, trajectory, satellite, cfg.Layers, cfg.RegionBBox)
	} else {
		log.Println("INFO: TRAJECTORY_URL not set; running in viewer-only mode")
	}

	sched := scheduler.New(archiver, cfg.FetchInterval, cfg.HTTPTimeout*4)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Viewer core over the local archive.
	source := viewer.ArchiveSource{Dir: cfg.ArchiveDir}
	loader := viewer.NewLoader(source)
	preloader, err := viewer.NewPreloader(source, cfg.ImageCacheSize, cfg.PreloadTimeout)
	if err != nil {
		log.Fatalf("failed to create preloader: %v", err)
	}
	engine := viewer.NewEngine(source, loader, preloader, cfg.HorizonLookback)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize in the background so the server comes up immediately;
	// clients observe progress through /api/v1/state.
	go func() {
		if err := engine.Init(rootCtx); err != nil {
			log.Printf("viewer initialization failed: %v", err)
		}
	}()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "cyclone-archive",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "cyclone-archive",
		})
	})

	// Raw archive files: index, trajectories, satellite images.
	app.Static("/data", cfg.ArchiveDir)

	// API routes.
	httpapi.RegisterRoutes(app, rootCtx, engine, "/data")

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	<-rootCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
