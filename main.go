package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"realestate-token-api/config"
	"realestate-token-api/database"
	"realestate-token-api/handlers"
	"realestate-token-api/middleware"
	"realestate-token-api/seed"
	"realestate-token-api/services"
	"realestate-token-api/utils"

	"github.com/go-co-op/gocron/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := newLogger(cfg.IsDevelopment())
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database, cfg.IsDevelopment())
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer database.Close(db)

	var events services.EventPublisher = services.NopPublisher{}
	if cfg.Redis.Addr != "" {
		rdb, err := services.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer rdb.Close()
		events = services.NewRedisPublisher(rdb)
		logger.Info("Publishing events to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	var images services.ImageStore
	switch cfg.Storage.Driver {
	case "r2":
		images, err = utils.NewObjectStore(ctx, cfg.Storage)
	default:
		images, err = utils.NewLocalStore(cfg.Storage.UploadDir, "/uploads")
	}
	if err != nil {
		logger.Fatal("Failed to initialize image storage", zap.Error(err))
	}

	userService := services.NewUserService(db, images, events)
	tokenService := services.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	authService := services.NewAuthService(userService, tokenService)
	propertyService := services.NewPropertyService(db, images)
	investmentService := services.NewInvestmentService(db, events)
	transactionService := services.NewTransactionService(db, events)
	accrualService := services.NewAccrualService(db, investmentService, cfg.Accrual.Interval)

	if cfg.SeedFile != "" {
		fixtures, err := seed.Load(cfg.SeedFile)
		if err != nil {
			logger.Fatal("Failed to load seed file", zap.Error(err))
		}
		if err := seed.Apply(ctx, db, fixtures, seed.Deps{}); err != nil {
			logger.Fatal("Failed to apply seed", zap.Error(err))
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      "realestate-token-api",
		BodyLimit:    12 * 1024 * 1024,
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(middleware.RequestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	if cfg.Storage.Driver == "local" {
		app.Static("/uploads", cfg.Storage.UploadDir)
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("Failed to get sql.DB", zap.Error(err))
	}
	handlers.SetupHealthRoutes(app, sqlDB)

	if cfg.Auth.ServiceToken != "" {
		handlers.SetupInternalRoutes(app, cfg.Auth.ServiceToken, investmentService, accrualService)
	}

	api := app.Group("/api", middleware.Authenticate(authService))
	handlers.SetupAuthRoutes(api, authService)
	handlers.SetupUserRoutes(api, userService)
	handlers.SetupPropertyRoutes(api, propertyService)
	handlers.SetupInvestmentRoutes(api, investmentService)
	handlers.SetupTransactionRoutes(api, transactionService)

	var sched gocron.Scheduler
	if cfg.Accrual.Enabled {
		sched, err = accrualService.StartAccrualScheduler()
		if err != nil {
			logger.Fatal("Failed to start accrual scheduler", zap.Error(err))
		}
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("Server error", zap.Error(err))
			stop()
		}
	}()

	logger.Info("Server running",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.Strings("allowed_origins", cfg.AllowedOrigins),
		zap.Bool("accrual", cfg.Accrual.Enabled),
		zap.Bool("internal_routes", cfg.Auth.ServiceToken != ""))

	<-ctx.Done()
	logger.Info("Shutting down server...")

	if sched != nil {
		if err := sched.Shutdown(); err != nil {
			logger.Warn("Scheduler shutdown failed", zap.Error(err))
		}
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("Server shutdown failed", zap.Error(err))
	}
}

func newLogger(development bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if development {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
