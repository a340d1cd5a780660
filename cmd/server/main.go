package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stemsi/earlyreg-backend/internal/config"
	"github.com/stemsi/earlyreg-backend/internal/database"
	"github.com/stemsi/earlyreg-backend/internal/enrollment"
	"github.com/stemsi/earlyreg-backend/internal/handler"
	"github.com/stemsi/earlyreg-backend/internal/logger"
	"github.com/stemsi/earlyreg-backend/internal/metrics"
	"github.com/stemsi/earlyreg-backend/internal/repository"
	"github.com/stemsi/earlyreg-backend/internal/router"
	"github.com/stemsi/earlyreg-backend/internal/rules"
	"github.com/stemsi/earlyreg-backend/internal/service"
	"github.com/stemsi/earlyreg-backend/internal/store"
	"github.com/stemsi/earlyreg-backend/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("storage", cfg.StorageDriver).
		Str("commit_mode", cfg.CommitMode).
		Msg("Starting early registration backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Open Storage ──────────────────────────────────────────────────
	var gateway repository.Gateway
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.MaxDBConns, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()

		pg := repository.NewPostgresGateway(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare PostgreSQL schema")
		}
		gateway = pg
	case config.StorageCSV:
		gateway = repository.NewCSVGateway(cfg.DataDir)
	default:
		log.Fatal().Str("driver", cfg.StorageDriver).Msg("Unknown storage driver")
	}

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Load Enrollment State ────────────────────────────────────────
	m := metrics.New(prometheus.DefaultRegisterer)

	entityStore := store.New(gateway, log, store.WithStrictLoad(cfg.LoadStrict))
	report, err := entityStore.LoadAll(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load enrollment state")
	}
	m.SetLoaded(string(repository.CollectionStudents), report.Students)
	m.SetLoaded(string(repository.CollectionSubjects), report.Subjects)
	m.SetLoaded(string(repository.CollectionRegistrations), report.Registrations)

	// ─── Initialize Engine ─────────────────────────────────────────────
	clock := rules.SystemClock{}
	evaluator := rules.NewEvaluator(entityStore, clock)
	eventRepo := repository.NewEventRepository(rdb)

	mode := enrollment.MemoryFirst
	if cfg.CommitMode == config.CommitDurableFirst {
		mode = enrollment.DurableFirst
	}
	committer := enrollment.NewCommitter(entityStore, evaluator, gateway, log,
		enrollment.WithCommitMode(mode),
		enrollment.WithRetry(cfg.PersistMaxAttempts, 50*time.Millisecond),
		enrollment.WithMetrics(m),
		enrollment.WithNotifier(eventRepo),
	)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, repository.NewSessionRepository(rdb), entityStore, clock)
	studentService := service.NewStudentService(entityStore, clock)
	subjectService := service.NewSubjectService(entityStore, evaluator, log)
	registrationService := service.NewRegistrationService(committer)

	// ─── Initialize Handlers ──────────────────────────────────────────
	redisPing := handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	handlers := &router.Handlers{
		Auth:          handler.NewAuthHandler(authService, studentService),
		StudentPortal: handler.NewStudentPortalHandler(subjectService, registrationService),
		Subject:       handler.NewSubjectHandler(subjectService),
		WS:            handler.NewWSHandler(eventRepo, subjectService, log, cfg.AllowedOrigins),
		System:        handler.NewSystemHandler(redisPing, entityStore, log),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg, prometheus.DefaultGatherer, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// In-flight registrations finish (and persist) before Shutdown returns.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
