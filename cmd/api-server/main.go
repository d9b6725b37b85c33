// Package main is the read-aloud API server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"read-aloud-api/internal/application/capture"
	"read-aloud-api/internal/application/ingestion"
	"read-aloud-api/internal/application/reading"
	"read-aloud-api/internal/config"
	"read-aloud-api/internal/infrastructure/persistence/postgres"
	"read-aloud-api/internal/infrastructure/persistence/redis"
	"read-aloud-api/internal/infrastructure/storage"
	"read-aloud-api/internal/infrastructure/tts"
	"read-aloud-api/internal/infrastructure/vision"
	"read-aloud-api/internal/interfaces/http/handler"
	"read-aloud-api/internal/interfaces/http/router"
	"read-aloud-api/pkg/logger"
	"read-aloud-api/pkg/tracer"
)

// Version is injected at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Info("starting api-server",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	shutdownTracer, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() {
		if err := shutdownTracer(ctx); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// Backends.
	pg, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatal(ctx, "failed to connect postgres", err)
	}
	defer pg.Close()
	if err := pg.Migrate(); err != nil {
		logger.Fatal(ctx, "failed to migrate schema", err)
	}

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to connect redis", err)
	}
	defer redisClient.Close()

	store, err := storage.New(ctx, &cfg.Storage)
	if err != nil {
		logger.Fatal(ctx, "failed to init artifact store", err)
	}

	// Providers.
	primary, err := vision.NewGoogleVisionProvider(ctx, &cfg.Vision)
	if err != nil {
		logger.Fatal(ctx, "failed to init vision provider", err)
	}
	defer primary.Close()

	var fallback vision.Provider
	var cover ingestion.CoverAnalyzer
	if cfg.Vision.GeminiAPIKey != "" {
		gemini, err := vision.NewGeminiProvider(ctx, &cfg.Vision)
		if err != nil {
			logger.Fatal(ctx, "failed to init gemini provider", err)
		}
		defer gemini.Close()
		fallback = gemini
		cover = gemini
	} else {
		log.Warn("gemini api key not configured, vision fallback and cover analysis disabled")
		cover = defaultCover{}
	}
	detector := vision.NewService(primary, fallback, cfg.Vision.Timeout)

	synth := tts.NewElevenLabsClient(&cfg.TTS)

	// Repositories.
	books := postgres.NewBookRepository(pg)
	pages := postgres.NewPageRepository(pg)
	blocks := postgres.NewBlockRepository(pg)
	sessions := postgres.NewSessionRepository(pg)
	users := postgres.NewUserRepository(pg)
	txManager := postgres.NewTxManager(pg)

	progressCache := redis.NewProgressCache(redisClient)
	synthLock := redis.NewSynthLock(redisClient)

	// Application services.
	pipeline := ingestion.NewPipeline(books, pages, blocks, sessions, txManager, store, detector, cover, progressCache)
	captureSvc := capture.NewCoordinator(books, sessions, pages, store, progressCache, pipeline, cfg.Capture, cfg.App.BaseURL)
	readingSvc := reading.NewService(books, pages, blocks, users, store, detector, synth, synthLock, cfg.TTS)

	// HTTP surface.
	r := router.New(cfg, router.Handlers{
		Health:  handler.NewHealthHandler(pg, redisClient),
		Book:    handler.NewBookHandler(captureSvc, readingSvc),
		Session: handler.NewSessionHandler(captureSvc),
		Block:   handler.NewBlockHandler(readingSvc),
		Speech:  handler.NewSpeechHandler(readingSvc),
		Object:  handler.NewObjectHandler(store),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}

// defaultCover stands in when no cover analyzer is configured.
type defaultCover struct{}

func (defaultCover) AnalyzeCover(context.Context, []byte) (vision.CoverInfo, error) {
	return vision.CoverInfo{Title: "Unknown Book", Category: "General"}, nil
}
