package main

import (
	"log"
	"os"

	"meetclub_go/config"
	"meetclub_go/database"
	"meetclub_go/middleware"
	"meetclub_go/routes"
	"meetclub_go/services"
	"meetclub_go/services/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

func init() {
	// Load configuration
	config.LoadConfig()

	// Initialize logging
	setupLogging()

	// Connect to database
	database.Connect()

	// Start log maintenance scheduler
	logFlushService := services.NewLogFlushService()
	logFlushService.StartLogMaintenanceScheduler()
}

func main() {
	cfg := config.AppConfig

	// Create WebSocket hub first so progress events have somewhere to go
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Shared service graph
	store := services.NewAttendanceStore()
	stats := services.NewStatsService(store)
	writer := services.NewBatchWriter(store, cfg.ImportChunkSize, wsHub)
	archive := services.NewReportArchiveService()
	importer := services.NewImporter(store, writer, archive, cfg.MeetingWeekday)

	gate := services.NewPauseGate(cfg.RateLimitPause, cfg.RateLimitMaxRetries)
	liveView := services.NewLiveView(store, gate, wsHub, services.LiveViewConfig{
		RefreshInterval:     cfg.RefreshInterval,
		DeferredRefreshWait: cfg.DeferredRefreshWait,
		BatchItemDelay:      cfg.BatchItemDelay,
	})
	liveView.Start()
	defer liveView.Stop()

	health := services.NewHealthService("", "")

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Custom middleware
	app.Use(middleware.LoggerMiddleware())
	app.Use(middleware.LogActivityMiddleware())

	// Liveness endpoint; the probing variant lives under /api/health
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "Meet Club Attendance API",
			"version": "1.0.0",
		})
	})

	// API routes
	routes.SetupRoutes(app, routes.Deps{
		Store:    store,
		Stats:    stats,
		Importer: importer,
		LiveView: liveView,
		Health:   health,
		WSHub:    wsHub,
	})

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":  "Route not found",
			"path":   c.Path(),
			"method": c.Method(),
		})
	})

	log.Printf("Server starting on port %s", cfg.Port)
	log.Printf("Environment: %s", cfg.AppEnv)
	log.Printf("Meeting weekday: %s", cfg.MeetingWeekday)

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

// setupLogging configures the logging system
func setupLogging() {
	if err := os.MkdirAll("logs", 0755); err != nil {
		log.Printf("Warning: Could not create logs directory: %v", err)
	}

	logrus.SetFormatter(&logrus.JSONFormatter{})

	if level, err := logrus.ParseLevel(config.AppConfig.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	if config.AppConfig.AppEnv == "development" {
		logrus.SetOutput(os.Stdout)
	} else {
		file, err := os.OpenFile(config.AppConfig.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			logrus.SetOutput(file)
		}
	}
}

// customErrorHandler handles application errors
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	logrus.WithFields(logrus.Fields{
		"error":  err.Error(),
		"path":   c.Path(),
		"method": c.Method(),
		"ip":     c.IP(),
		"status": code,
	}).Error("Request error")

	return c.Status(code).JSON(fiber.Map{
		"error":  message,
		"code":   code,
		"path":   c.Path(),
		"method": c.Method(),
	})
}
