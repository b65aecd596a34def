package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"wenlock/internal/config"
	"wenlock/internal/database"
	"wenlock/internal/handlers"
	"wenlock/internal/middleware"
	"wenlock/internal/repositories"
	"wenlock/internal/services"
	"wenlock/internal/validation"
	"wenlock/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	app, cleanup, err := NewApp(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build application", zap.Error(err))
	}
	defer cleanup()

	// --- Start HTTP Server ---
	logger.Info("starting server",
		zap.String("addr", cfg.Port),
		zap.String("env", cfg.Env),
		zap.String("store", cfg.DatabaseDriver),
	)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.Port); err != nil {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		logger.Error("error during fiber shutdown", zap.Error(err))
	}
	logger.Info("server gracefully stopped")
}

// NewApp wires the store, the optional event bus and the HTTP routes. The
// returned cleanup releases the store and the bus.
func NewApp(cfg config.Config, logger *zap.Logger) (*fiber.App, func(), error) {
	repo, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	opts := []services.Option{
		services.WithLogger(logger),
		services.WithBcryptCost(cfg.BcryptCost),
	}

	closeBus := func() {}
	if cfg.RabbitMQURL != "" {
		mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Exchange: cfg.RabbitMQExchange, Logger: logger})
		if err != nil {
			closeStore()
			return nil, nil, fmt.Errorf("failed to initialize RabbitMQ client: %w", err)
		}
		opts = append(opts, services.WithEventPublisher(mq))
		closeBus = func() {
			if err := mq.Close(); err != nil {
				logger.Warn("failed to close RabbitMQ client", zap.Error(err))
			}
		}
		logger.Info("publishing user events", zap.String("exchange", cfg.RabbitMQExchange))
	}

	userService := services.NewUserService(repo, opts...)
	userHandler := handlers.NewUserHandler(userService, validation.New(), logger)

	app := fiber.New(fiber.Config{
		AppName:               "wenlock",
		DisableStartupMessage: true,
		JSONDecoder:           handlers.StrictJSONDecoder,
		ErrorHandler:          handlers.ErrorHandler(logger),
	})

	// --- Middleware ---
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(middleware.RequestLogger(logger))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"name":    "wenlock user registry",
			"version": "1.0",
			"endpoints": []string{
				"GET /health",
				"GET /users?search=&page=&limit=",
				"POST /users",
				"GET /users/:id",
				"PUT /users/:id",
				"DELETE /users/:id",
			},
		})
	})

	// --- Health Check Endpoint ---
	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		status, code, store := "healthy", fiber.StatusOK, "connected"
		if err := userService.Ping(ctx); err != nil {
			logger.Warn("store ping failed", zap.Error(err))
			status, code, store = "unhealthy", fiber.StatusServiceUnavailable, "unreachable"
		}
		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
			"store":  store,
			"driver": cfg.DatabaseDriver,
		})
	})

	// --- API Routes ---
	userHandler.RegisterRoutes(app)

	cleanup := func() {
		closeBus()
		closeStore()
	}
	return app, cleanup, nil
}

func openStore(cfg config.Config, logger *zap.Logger) (repositories.UserRepository, func(), error) {
	if cfg.DatabaseDriver == database.DriverMemory {
		return repositories.NewMemoryUserRepository(), func() {}, nil
	}

	dsn := cfg.DatabaseDSN
	if cfg.DatabaseDriver == database.DriverSQLite && dsn == "" {
		dsn = database.SQLiteMemoryDSN("wenlock")
	}

	level := gormlogger.Error
	if cfg.IsDevelopment() {
		level = gormlogger.Warn
	}
	db, err := database.Open(cfg.DatabaseDriver, dsn, level)
	if err != nil {
		return nil, nil, err
	}

	closeStore := func() {
		if err := database.Close(db); err != nil {
			logger.Warn("failed to close database", zap.Error(err))
		}
	}
	return repositories.NewGORMUserRepository(db), closeStore, nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
