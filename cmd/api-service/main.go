package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/cuongbtq/tolkbooking/internal/api/handler"
	"github.com/cuongbtq/tolkbooking/internal/api/router"
	"github.com/cuongbtq/tolkbooking/internal/app"
	"github.com/cuongbtq/tolkbooking/internal/config"
	"github.com/cuongbtq/tolkbooking/internal/worker"
	"github.com/cuongbtq/tolkbooking/shared/postgresql"
	"github.com/cuongbtq/tolkbooking/shared/rabbitmq"
	"github.com/cuongbtq/tolkbooking/shared/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := app.InitLogger(&cfg.Logging, "booking-api-service")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := app.InitPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	appLogger.Info("Database connection established")

	redisClient, err := app.InitRedis(&cfg.Redis, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	rabbitClient, err := app.InitRabbitMQ(&cfg.RabbitMQ, false, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	appLogger.Info("RabbitMQ connection established")

	core, err := app.NewCore(context.Background(), cfg, dbClient.GetDB(), app.LanguageCache(redisClient), appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize booking core: %w", err)
	}

	r := initRouter(cfg.App.Environment, appLogger.Logger, core, dbClient, redisClient, rabbitClient)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down server",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		return fmt.Errorf("server failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(environment string, logger *slog.Logger, core *app.Core, db *postgresql.Client, rdb *redis.Client, rabbit *rabbitmq.Client) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	checks := map[string]handler.HealthCheck{
		"postgres": db.HealthCheck,
		"rabbitmq": func(ctx context.Context) error {
			if !rabbit.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		},
	}
	if rdb != nil {
		checks["redis"] = rdb.Ping
	}

	return router.SetupRouter(&handler.Dependencies{
		Logger:       logger,
		Bookings:     core.Orchestrator,
		Users:        core.Store,
		Jobs:         core.Engine,
		Commands:     worker.NewProducer(rabbit, logger),
		HealthChecks: checks,
	})
}
