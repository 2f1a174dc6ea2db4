// Package main is the entrypoint for the ZenLearn reaction server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/priyadarshi7/ZenLearn/internal/ai"
	"github.com/priyadarshi7/ZenLearn/internal/api"
	"github.com/priyadarshi7/ZenLearn/internal/api/handler"
	mw "github.com/priyadarshi7/ZenLearn/internal/api/middleware"
	"github.com/priyadarshi7/ZenLearn/internal/api/response"
	"github.com/priyadarshi7/ZenLearn/internal/artifact"
	"github.com/priyadarshi7/ZenLearn/internal/cache"
	"github.com/priyadarshi7/ZenLearn/internal/config"
	"github.com/priyadarshi7/ZenLearn/internal/elevenlabs"
	"github.com/priyadarshi7/ZenLearn/internal/events"
	"github.com/priyadarshi7/ZenLearn/internal/proxy"
	"github.com/priyadarshi7/ZenLearn/internal/reaction"
	"github.com/priyadarshi7/ZenLearn/internal/store"
	"github.com/priyadarshi7/ZenLearn/internal/tracker"
)

const shutdownTimeout = 30 * time.Second

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func main() {
	slog.SetDefault(newLogger(os.Stdout, "production", "info"))

	if err := run(os.Args[1:]); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// newLogger returns a colored text logger in development and JSON elsewhere.
func newLogger(w io.Writer, env, level string) *slog.Logger {
	lvl, ok := logLevels[level]
	if !ok {
		lvl = slog.LevelInfo
	}
	if env == "development" {
		return slog.New(tint.NewHandler(w, &tint.Options{Level: lvl, TimeFormat: time.Kitchen}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// loadEnvFile applies a dotenv file. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func run(args []string) error {
	flags := pflag.NewFlagSet("zenlearn", pflag.ContinueOnError)
	envFile := flags.StringP("env", "e", ".env", "Env file path")
	logLevel := flags.StringP("log-level", "l", "", "Log level override (debug, info, warn, error)")
	migrationsDir := flags.String("migrations", "migrations", "Directory of SQL migrations")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	if err := loadEnvFile(*envFile); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	if *logLevel != "" {
		os.Setenv("LOG_LEVEL", *logLevel)
	}

	// 1. Load config: fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg.Server.Env, cfg.Server.LogLevel))
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"stt_provider", cfg.AI.STTProvider,
		"llm_provider", cfg.AI.LLMProvider,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Job store: Postgres when configured, process memory otherwise
	var jobStore store.Store
	if cfg.Database.URL != "" {
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		slog.Info("database connected")

		if err := store.RunMigrations(cfg.Database.URL, *migrationsDir); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		slog.Info("database migrations applied")
		jobStore = store.NewPostgresStore(pool)
	} else {
		jobStore = store.NewMemoryStore()
		slog.Warn("DATABASE_URL not set, jobs are kept in memory")
	}

	// 3. Redis cache: optional
	var statusCache cache.Cache
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("create redis cache: %w", err)
		}
		defer redisCache.Close()

		if err := redisCache.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		slog.Info("redis connected")
		statusCache = redisCache
	}

	// 4. Outbound clients and providers
	aiClient, err := proxy.NewHTTPClient(cfg.Proxy.Addr, 0)
	if err != nil {
		return fmt.Errorf("create outbound client: %w", err)
	}
	ttsClient, err := proxy.NewHTTPClient(cfg.Proxy.Addr, cfg.TTS.ElevenLabs.Timeout)
	if err != nil {
		return fmt.Errorf("create outbound client: %w", err)
	}

	transcriber, err := ai.NewTranscriber(cfg.AI, aiClient)
	if err != nil {
		return fmt.Errorf("create transcriber: %w", err)
	}
	generator, err := ai.NewGenerator(ctx, cfg.AI, aiClient)
	if err != nil {
		return fmt.Errorf("create generator: %w", err)
	}
	if closer, ok := generator.(io.Closer); ok {
		defer closer.Close()
	}
	synthesizer := elevenlabs.NewClient(cfg.TTS.ElevenLabs, ttsClient)
	slog.Info("AI providers initialized",
		"transcriber", transcriber.Name(),
		"generator", generator.Name(),
		"synthesizer", synthesizer.Name(),
	)

	// 5. Tracker
	artifacts, err := artifact.NewStore(cfg.Storage.UploadDir, cfg.Storage.ReactionsDir)
	if err != nil {
		return fmt.Errorf("create artifact store: %w", err)
	}
	prompt, err := reaction.NewPrompt(cfg.AI.PromptTemplate)
	if err != nil {
		return fmt.Errorf("REACTION_PROMPT: %w", err)
	}
	bus := events.NewBus()
	pipeline := tracker.NewPipeline(tracker.PipelineConfig{
		Transcriber:     transcriber,
		Generator:       generator,
		Synthesizer:     synthesizer,
		Artifacts:       artifacts,
		Prompt:          prompt,
		FallbackEmotion: cfg.AI.FallbackEmotion,
		StageTimeout:    cfg.Tracker.StageTimeout,
	})
	jobs := tracker.New(tracker.Config{
		Workers:   cfg.Tracker.Workers,
		QueueSize: cfg.Tracker.QueueSize,
		StatusTTL: cfg.Tracker.StatusTTL,
	}, jobStore, statusCache, bus, artifacts, pipeline)

	// 6. Build router with dependencies
	auth := mw.NewAuth(cfg.Server.APIKeyHashes)
	if !auth.Enabled() {
		slog.Warn("API_KEY_HASHES not set, authentication disabled")
	}
	rateLimit := mw.NewRateLimit(statusCache, cfg.Server.RateLimitPerMinute)

	router := api.NewRouter(api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:       healthHandler(jobStore, statusCache),
		UploadHandler:       handler.NewUploadHandler(jobs, cfg.Server.MaxUploadBytes),
		StatusHandler:       handler.NewStatusHandler(jobs),
		StatusStreamHandler: handler.NewStatusStreamHandler(jobs, bus),
		ReactionsHandler:    handler.NewReactionsHandler(artifacts),
		ProcessHandler:      handler.NewProcessHandler(jobs, cfg.Server.MaxUploadBytes),
	})

	// 7. Start HTTP server and workers
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	g := new(errgroup.Group)
	g.Go(func() error {
		return jobs.Run(workerCtx)
	})

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	var serveErr error
	select {
	case err := <-errCh:
		serveErr = fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout: stop intake first, then the workers.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("server shutdown: %w", err)
	}

	stopWorkers()
	if err := g.Wait(); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("tracker: %w", err)
	}

	if serveErr != nil {
		return serveErr
	}
	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler reports store and cache connectivity. It always answers 200;
// a nil cache is reported as disabled.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"store": "ok",
			"cache": "disabled",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["store"] = "degraded"
		}
		if c != nil {
			checks["cache"] = "ok"
			if err := c.Ping(r.Context()); err != nil {
				checks["cache"] = "degraded"
			}
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
