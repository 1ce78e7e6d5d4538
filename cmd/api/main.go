package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"studyforge/internal/bootstrap"
	"studyforge/internal/config"
	"studyforge/internal/handler"
	"studyforge/internal/logger"
	"studyforge/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	appLogger := logger.Get()
	defer logger.Sync()

	ctx := context.Background()
	comps, err := bootstrap.Build(ctx, cfg, bootstrap.Options{Cache: true, Persistence: true}, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to build generation pipeline", zap.Error(err))
	}
	defer comps.Close()
	appLogger.Info("Generation pipeline initialized", zap.Strings("providers", comps.Catalog.IDs()))

	generationHandler := handler.NewGenerationHandler(comps.Service, handler.GenerationHandlerConfig{
		Requests: comps.Requests,
		Cache:    comps.Cache,
		Logger:   appLogger.Named("http"),
	})

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
		BodyLimit:    handler.DefaultMaxUploadBytes + 1<<20,
		ErrorHandler: middleware.ErrorHandler(),
	})

	app.Use(recover.New())
	app.Use(middleware.RequestLogger(appLogger.Named("http")))
	app.Use(cors.New(cors.Config{AllowOrigins: "*", AllowMethods: "GET,POST,OPTIONS", AllowHeaders: "Origin,Content-Type,Accept,Authorization", MaxAge: 300}))

	if cfg.Auth.JWTSecret == "" {
		appLogger.Warn("auth.jwt_secret is empty, generation routes are unauthenticated")
	}
	generationHandler.RegisterRoutes(app.Group("/api"), middleware.Protected(cfg.Auth.JWTSecret))

	go func() {
		appLogger.Info("Starting server", zap.Int("port", cfg.Server.Port), zap.String("env", cfg.Logger.Env))
		if err := app.Listen(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
			appLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	appLogger.Info("Server exited gracefully")
}
