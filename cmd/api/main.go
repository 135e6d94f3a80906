package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/elimu-api/internal/config"
	"github.com/noah-isme/elimu-api/internal/database"
	"github.com/noah-isme/elimu-api/internal/handler"
	"github.com/noah-isme/elimu-api/internal/middleware"
	"github.com/noah-isme/elimu-api/internal/repository"
	"github.com/noah-isme/elimu-api/internal/router"
	"github.com/noah-isme/elimu-api/internal/service"
	cloud "github.com/noah-isme/elimu-api/pkg/cloudinary"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if !cfg.IsProduction() {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate database")
		}
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Drain()
	}

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create cloudinary client")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	courseRepo := repository.NewCourseRepository(db)
	userRepo := repository.NewUserRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)

	rosterService := service.NewRosterService(courseRepo, userRepo, enrollmentRepo, service.RosterConfig{
		DefaultLimit: cfg.RosterDefaultLimit,
		MaxLimit:     cfg.RosterMaxLimit,
	}, logger)
	uploadService := service.NewUploadService(uploader, cfg.CloudinaryUploadFolder, validate, logger)
	realtimeService := service.NewRealtimeService(redisClient, cfg.RealtimeChannel, natsConn, validate, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	realtimeService.Start(ctx)

	errorPolicy := handler.ErrorPolicy{ExposeDetails: cfg.ExposeErrorDetails}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    110 * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:           &logger,
		CORSOrigins:      cfg.CORSOrigins,
		ObservedPrefixes: []string{"/api/v1/instructor", "/api/v1/upload"},
	})
	router.Register(app, cfg, router.Dependencies{
		RosterHandler:   handler.NewRosterHandler(rosterService, errorPolicy, logger),
		UploadHandler:   handler.NewUploadHandler(uploadService, errorPolicy, logger),
		RealtimeHandler: handler.NewRealtimeHandler(realtimeService, logger),
		HealthChecks:    healthChecks(db, redisClient),
		JWTMiddleware:   middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	logger.Info().Str("addr", cfg.HTTPAddress()).Str("env", cfg.AppEnv).Msg("server started")

	waitForShutdown(ctx, app, logger)
}

func healthChecks(db *gorm.DB, redisClient *redis.Client) []handler.Dependency {
	checks := []handler.Dependency{{
		Name: "database",
		Check: func(ctx context.Context) error {
			conn, err := db.DB()
			if err != nil {
				return err
			}
			return conn.PingContext(ctx)
		},
	}}
	if redisClient != nil {
		checks = append(checks, handler.Dependency{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		})
	}
	return checks
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
