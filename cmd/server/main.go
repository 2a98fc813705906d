package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"salesforecast-backend/internal/audit"
	"salesforecast-backend/internal/auth"
	"salesforecast-backend/internal/config"
	"salesforecast-backend/internal/dashboard"
	"salesforecast-backend/internal/database"
	"salesforecast-backend/internal/forecast"
	"salesforecast-backend/internal/logger"
	"salesforecast-backend/internal/metrics"
	"salesforecast-backend/internal/models"
	"salesforecast-backend/internal/sales"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := logger.Init(cfg.LogLevel, cfg.Env); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	if err := database.Init(cfg); err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer database.Close(database.DB)

	metrics.Init()

	var cache forecast.Cache = forecast.NoopCache{}
	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rc, err := forecast.NewRedisCache(ctx, cfg.Redis)
		cancel()
		if err != nil {
			logger.Warnf("forecast cache disabled: %v", err)
		} else {
			defer rc.Close()
			cache = rc
			logger.Infof("forecast cache using redis at %s", cfg.Redis.Addr)
		}
	}

	salesRepo := sales.NewRepository(database.DB)
	engine := forecast.NewEngine(forecast.EngineOptions{
		Timeout:               cfg.Forecast.Timeout,
		MaxConcurrency:        cfg.Forecast.MaxConcurrency,
		UseObservedRegressors: cfg.Forecast.UseObservedRegressors,
	})
	forecastSvc := forecast.NewService(salesRepo, engine, cache, cfg.Forecast.CacheTTL)

	app := fiber.New(fiber.Config{
		AppName:               "salesforecast-backend",
		DisableStartupMessage: cfg.IsProduction(),
		BodyLimit:             cfg.UploadMaxBytes + 1<<20,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          cfg.Forecast.Timeout + 10*time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var e *fiber.Error
			if errors.As(err, &e) {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			logger.Errorf("unexpected error on %s %s: %v", c.Method(), c.Path(), err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Internal server error",
			})
		},
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(metrics.Middleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowedOrigins(), ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := database.Ping(database.DB); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "degraded",
				"error":  err.Error(),
			})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", metrics.Handler())

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register", auth.RegisterHandler(database.DB))
	api.Post("/auth/token", auth.LoginHandler(cfg, database.DB))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg.JWTSecret))

	protected.Get("/auth/me", auth.MeHandler(database.DB))

	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleAdmin))
	adminRoutes.Get("/users", auth.ListUsersHandler(database.DB))

	// Sales data
	protected.Post("/sales/upload", sales.UploadHandler(cfg, database.DB, salesRepo))
	protected.Get("/sales/options", sales.OptionsHandler(salesRepo))
	protected.Get("/sales/fields/:field", sales.FieldValuesHandler(salesRepo))
	protected.Get("/sales/chart", dashboard.SalesChartHandler(salesRepo))

	// Forecast
	protected.Post("/forecast", forecast.ForecastHandler(forecastSvc))

	// Audit
	protected.Get("/audit-logs", audit.ListAuditLogsHandler(database.DB, auth.UserID))

	go func() {
		logger.Infof("Server running on :%s", cfg.HTTPPort)
		if err := app.Listen(":" + cfg.HTTPPort); err != nil {
			logger.Errorf("fiber server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Errorf("error during shutdown: %v", err)
	}
	logger.Infof("server stopped")
}
