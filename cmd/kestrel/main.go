// Kestrel - Credit decisioning in a single binary.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/auth"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/config"
	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/events"
	"github.com/opensource-finance/kestrel/internal/features"
	"github.com/opensource-finance/kestrel/internal/observability"
	"github.com/opensource-finance/kestrel/internal/oracle"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/scheduler"
	"github.com/opensource-finance/kestrel/internal/scoring"
	"github.com/opensource-finance/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	configPath := flag.String("config", os.Getenv("KESTREL_CONFIG"), "path to YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kestrel: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.Logging)

	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"oracle", cfg.Oracle.Backend,
		"events", cfg.Events.Type,
	)

	if err := run(cfg); err != nil {
		slog.Error("kestrel stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *domain.Config) error {
	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	shutdownTracing := observability.InitTracing(cfg.Tracing.Enabled, cfg.Tracing.ServiceName)
	defer shutdownTracing(context.Background())

	var (
		metrics        *observability.Metrics
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		provider, handler, err := observability.InitMetrics()
		if err != nil {
			return fmt.Errorf("initialize metrics: %w", err)
		}
		defer provider.Shutdown(context.Background())

		if metrics, err = observability.NewMetrics(provider); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		metricsHandler = handler
	}

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("initialize repository: %w", err)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("initialize cache: %w", err)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("initialize event bus: %w", err)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Vocabulary and oracle are loaded once and shared
	vocab, err := features.LoadVocabulary(cfg.Scoring.VocabularyFile)
	if err != nil {
		return err
	}

	model, err := oracle.New(cfg.Oracle, busImpl)
	if err != nil {
		return err
	}
	defer oracle.Close(model)

	if cfg.Oracle.Serve {
		sub, err := oracle.Serve(ctx, busImpl, model)
		if err != nil {
			return fmt.Errorf("serve oracle: %w", err)
		}
		defer sub.Unsubscribe()
		slog.Info("answering remote oracle requests", "topic", domain.TopicOraclePredict)
	}

	engine, err := decision.NewEngine(model, nil, cfg.Scoring)
	if err != nil {
		return err
	}
	minScore, maxScore := engine.ScoreRange()
	slog.Info("decision engine initialized",
		"min_score", minScore,
		"max_score", maxScore,
		"rules", len(engine.Rules()),
	)

	publisher, err := events.New(cfg.Events, busImpl)
	if err != nil {
		return err
	}
	defer publisher.Close()

	svc, err := scoring.NewService(scoring.Options{
		Normalizer: features.NewNormalizer(vocab),
		Engine:     engine,
		Cache:      cacheImpl,
		Repository: repo,
		Bus:        busImpl,
		Publisher:  publisher,
		Metrics:    metrics,
		ResultTTL:  cfg.Decisions.ResultTTL,
	})
	if err != nil {
		return err
	}

	store, err := auth.NewStore(cfg.Auth)
	if err != nil {
		return err
	}
	throttle := auth.NewThrottle(cacheImpl, cfg.Auth.MaxAttempts, cfg.Auth.AttemptWindow)
	authn := auth.NewAuthenticator(store, throttle, repo)
	slog.Info("credential store initialized", "users", len(store.Users()))

	// Async decisions
	var asyncWorker *worker.Worker
	if cfg.Decisions.WorkerEnabled {
		asyncWorker = worker.NewWorker(busImpl, svc)
		if err := asyncWorker.Start(worker.Config{}); err != nil {
			return fmt.Errorf("start worker: %w", err)
		}
	}

	// Audit retention
	sched := scheduler.NewScheduler(ctx, repo, cfg.Audit)
	if err := sched.Register(cfg.Audit.PurgeCron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	// Initialize Server
	srv := api.NewServer(cfg.Server, api.Dependencies{
		Service:       svc,
		Authenticator: authn,
		Users:         store,
		Repository:    repo,
		Cache:         cacheImpl,
		Metrics:       metricsHandler,
	}, Version)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Drain queued decisions after the API stops accepting them
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	slog.Info("kestrel shutdown complete")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  +-------------------------------------------+")
	fmt.Println("  |               KESTREL                     |")
	fmt.Println("  |      Credit Decisioning Engine            |")
	fmt.Println("  +-------------------------------------------+")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Oracle:   %s\n", cfg.Oracle.Backend)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /decisions                - Decide an application")
	fmt.Println("    POST /decisions/async          - Queue an application")
	fmt.Println("    GET  /decisions/{id}           - Get a decision record")
	fmt.Println("    POST /decisions/{id}/override  - Officer override of a Review")
	fmt.Println("    GET  /vocabulary               - Accepted categorical values")
	fmt.Println("    POST /auth/verify              - Verify credentials")
	fmt.Println("    GET  /users                    - List users (admin)")
	fmt.Println("    GET  /audit                    - Audit trail (admin)")
	fmt.Println("    GET  /health                   - Health check")
	fmt.Println("    GET  /metrics                  - Prometheus metrics")
	fmt.Println()
}
