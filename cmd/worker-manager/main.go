// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"loangenius/internal/common/aws"
	"loangenius/internal/common/camunda"
	"loangenius/internal/common/config"
	"loangenius/internal/common/database"
	"loangenius/internal/common/logger"
	"loangenius/internal/common/observability"
	"loangenius/internal/common/partner"
	"loangenius/internal/common/retry"
	"loangenius/internal/loan/submission"
	"loangenius/pkg/registry"

	rl "loangenius/internal/workers/loan/record-loan-lead"
)

// connectPolicy covers the wait for Postgres and Redis containers to accept
// connections.
var connectPolicy = retry.Policy{
	MaxAttempts: 15,
	BaseDelay:   2 * time.Second,
	MaxDelay:    30 * time.Second,
}

func connect(ctx context.Context, zapLog *zap.Logger, name string, op func(ctx context.Context) error) error {
	_, err := retry.Do(ctx, connectPolicy, func(ctx context.Context, _ int) error {
		return op(ctx)
	}, retry.WithOnRetry(func(attempt int, delay time.Duration, err error) {
		zapLog.Warn(name+" failed, retrying...",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("nextRetryIn", delay),
		)
	}))
	return err
}

func main() {
	registryPath := flag.String("registry", registry.DefaultPath, "path to the activity registry")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}
	if err := config.ValidateForWorkers(cfg); err != nil {
		zap.NewExample().Fatal("invalid worker configuration", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...", zap.String("version", cfg.App.Version))

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := registry.LoadRegistry(*registryPath)
	if err != nil {
		zapLog.Fatal("activity registry load failed", zap.Error(err))
	}
	if err := reg.Validate(); err != nil {
		zapLog.Fatal("activity registry is invalid", zap.Error(err))
	}

	// --- Zeebe ---
	zeebe, err := camunda.NewClientWithConfig(ctx, camunda.ConfigFrom(cfg.Camunda), log)
	if err != nil {
		zapLog.Fatal("zeebe client failed", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		zapLog.Fatal("postgres open failed", zap.Error(err))
	}
	defer pg.Close()
	if err := connect(ctx, zapLog, "PostgreSQL connection", pg.Ping); err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("postgres schema failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Redis ---
	redis, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		zapLog.Fatal("redis open failed", zap.Error(err))
	}
	defer redis.Close()
	if err := connect(ctx, zapLog, "Redis connection", redis.Ping); err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	zapLog.Info("Redis connected successfully")

	// --- Partner backend ---
	partnerClient := partner.NewClientFromConfig(cfg.Partner, log)
	orchestrator := submission.NewOrchestrator(partnerClient, submission.Options{
		MaxAttempts:    cfg.Submission.MaxAttempts,
		BaseDelay:      config.GetDuration(cfg.Submission.BaseDelay),
		MaxDelay:       config.GetDuration(cfg.Submission.MaxDelay),
		AttemptTimeout: cfg.Submission.AttemptTimeoutDuration(),
		Observability:  obs,
		Logger:         log,
	})

	// --- Lead events (optional) ---
	var leadEvents rl.Publisher
	if cfg.Notify.LeadEventsEnabled() {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notify.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		leadEvents = snsClient
		zapLog.Info("Lead events enabled", zap.String("topic", cfg.Notify.LeadTopicARN))
	}

	handlers, err := buildHandlers(deps{
		cfg:        cfg,
		reg:        reg,
		db:         pg.DB,
		submitter:  orchestrator,
		leadEvents: leadEvents,
		obs:        obs,
		log:        log,
	})
	if err != nil {
		zapLog.Fatal("failed to create handlers", zap.Error(err))
	}

	pool := camunda.NewPool(zeebe.GetClient(), log)
	for taskType, handler := range handlers {
		pool.Start(taskType, config.GetWorkerConfig(cfg, taskType), handler)
	}
	zapLog.Info("Workers registered", zap.Strings("taskTypes", pool.Running()))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", nil)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		failures := map[string]string{}
		if err := pg.Ping(checkCtx); err != nil {
			failures["postgres"] = err.Error()
		}
		if err := redis.Ping(checkCtx); err != nil {
			failures["redis"] = err.Error()
		}
		if err := zeebe.HealthCheck(checkCtx); err != nil {
			failures["zeebe"] = err.Error()
		}
		if len(failures) > 0 {
			writeStatus(w, http.StatusServiceUnavailable, "not ready", failures)
			return
		}
		writeStatus(w, http.StatusOK, "ready", nil)
	})
	if cfg.Metrics.Enabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	srv := &http.Server{Addr: cfg.Metrics.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, code int, status string, failures map[string]string) {
	body := map[string]interface{}{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	}
	if len(failures) > 0 {
		body["failures"] = failures
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
