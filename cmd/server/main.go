package main

import (
	"context"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/config"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/database"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/logging"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/metrics"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/routes"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.SetGlobal(logging.New(cfg.LogLevel, cfg.IsDevelopment(), os.Stdout))

	// 2. Connect to Postgres and Redis
	if cfg.DBUrl == "" {
		log.Fatal().Msg("DB_URL is required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.ConnectDB(ctx, cfg.DBUrl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	rdb, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	// 3. Setup Fiber
	app := fiber.New(fiber.Config{DisableStartupMessage: !cfg.IsDevelopment()})

	// Middleware
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.AllowedOrigins}))
	app.Use(logger.New())
	app.Use(recover.New())
	if cfg.EnableMetrics {
		app.Use(metrics.Middleware())
	}

	// Routes
	if err := routes.RegisterRoutes(ctx, app, cfg, db, rdb); err != nil {
		log.Fatal().Err(err).Msg("failed to register routes")
	}

	// 4. Start Server
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.AppEnv).Msg("server starting")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("server stopped")
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				log.Info().Msg("shutting down http server")
				return app.ShutdownWithContext(ctx)
			},
			"hub": func(context.Context) error {
				cancel()
				return nil
			},
		},
	)

	exitCode := <-wait
	log.Info().Int("code", exitCode).Msg("server exited")
	db.Close()
	_ = rdb.Close()
	os.Exit(exitCode)
}
