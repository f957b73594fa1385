package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/intervia/proctor-backend/internal/collaborator"
	"github.com/intervia/proctor-backend/internal/config"
	"github.com/intervia/proctor-backend/internal/database"
	"github.com/intervia/proctor-backend/internal/handler"
	"github.com/intervia/proctor-backend/internal/logger"
	"github.com/intervia/proctor-backend/internal/proctor"
	"github.com/intervia/proctor-backend/internal/repository"
	"github.com/intervia/proctor-backend/internal/router"
	"github.com/intervia/proctor-backend/internal/service"
	"github.com/intervia/proctor-backend/internal/validator"
	"github.com/intervia/proctor-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Intervia Proctor Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	candidateRepo := repository.NewCandidateRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	accessCodeRepo := repository.NewAccessCodeRepository(pool)
	domainRepo := repository.NewDomainRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	violationRepo := repository.NewViolationRepository(pool)
	monitorRepo := repository.NewMonitorRepository(pool, rdb)

	// ─── Initialize Collaborators ─────────────────────────────────────
	gateway := collaborator.NewStoreGateway(sessionRepo, answerRepo, violationRepo, rdb, log)
	questions := collaborator.NewQuestionSource(questionRepo)
	executor := collaborator.NewSandboxExecutor(cfg.SandboxURL, cfg.SandboxTimeout, log)
	aiValidator := collaborator.NewAIValidator(cfg.ValidatorURL, cfg.ValidatorTimeout, log)

	// ─── Initialize Session Registry ──────────────────────────────────
	registry := proctor.NewRegistry(proctor.Deps{
		Gateway:          gateway,
		Questions:        questions,
		Executor:         executor,
		Validator:        aiValidator,
		Clock:            proctor.WallClock{},
		Policy:           cfg.Proctor,
		ValidatorTimeout: cfg.ValidatorTimeout,
		Log:              log,
	})

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb, candidateRepo, accessCodeRepo, adminRepo)
	interviewService := service.NewInterviewService(registry, sessionRepo, answerRepo, violationRepo, domainRepo)
	monitorService := service.NewMonitorService(monitorRepo)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		Interview: handler.NewInterviewHandler(interviewService),
		Monitor:   handler.NewMonitorHandler(interviewService, monitorService, log),
		WS:        handler.NewWSHandler(rdb, interviewService, cfg.Proctor, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	violationWorker := worker.NewViolationWorker(violationRepo, rdb, log)
	answerWorker := worker.NewAnswerWorker(answerRepo, rdb, log)

	go violationWorker.Start(workerCtx)
	go answerWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Finalize every in-flight session so no candidate loses work.
	registry.Shutdown(shutdownCtx)

	// 3. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
