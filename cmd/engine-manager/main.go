// cmd/engine-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"grant-engine/internal/backend"
	"grant-engine/internal/cache"
	"grant-engine/internal/common/config"
	"grant-engine/internal/common/database"
	"grant-engine/internal/common/errors"
	"grant-engine/internal/common/logger"
	"grant-engine/internal/common/observability"
	"grant-engine/internal/corpus"
	"grant-engine/internal/engine"
	"grant-engine/internal/store"
	"grant-engine/pkg/registry"

	agr "grant-engine/internal/operations/analyze-grant-requirements"
	asp "grant-engine/internal/operations/analyze-success-patterns"
	ce "grant-engine/internal/operations/check-eligibility"
	gag "grant-engine/internal/operations/generate-application-guidance"
	vc "grant-engine/internal/operations/validate-compliance"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("info", "console")
		fallback.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting engine manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		// Test the connection
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Persistence layer ---
	resultStore := store.New(pg.DB, log)
	if err := resultStore.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("analysis result schema setup failed", zap.Error(err))
	}

	var resultCache *cache.Cache
	if cfg.Analysis.EnableCaching {
		resultCache = cache.New(redis.Client, cfg.Analysis.CacheTTL(), log)
		zapLog.Info("Result cache enabled", zap.Duration("ttl", cfg.Analysis.CacheTTL()))
	} else {
		zapLog.Info("Result cache disabled by configuration")
	}

	// --- Operation registry ---
	reg, err := registry.LoadRegistry(cfg.Registry.Path)
	if err != nil {
		zapLog.Fatal("operation registry load failed",
			zap.String("path", cfg.Registry.Path), zap.Error(err))
	}
	zapLog.Info("Operation registry loaded",
		zap.String("version", reg.Version),
		zap.Int("operations", len(reg.Operations)),
	)

	// --- Compliance rule sets ---
	ruleSets, err := vc.LoadRuleSets(cfg.Rules.Path)
	if err != nil {
		zapLog.Fatal("rule set load failed", zap.String("path", cfg.Rules.Path), zap.Error(err))
	}
	zapLog.Info("Compliance rule sets loaded", zap.Int("count", len(ruleSets)))

	// --- Backend + corpus clients ---
	backendClient := backend.NewClient(&cfg.Backend, log)
	if backendClient.Enabled() {
		zapLog.Info("Text analysis backend enabled", zap.String("baseURL", cfg.Backend.BaseURL))
	} else {
		zapLog.Info("Text analysis backend disabled, deep analysis falls back to local inference")
	}

	corpusResolver := corpus.NewResolver(pg.DB, esClient.Client, log)

	// --- Operation handlers ---
	extractorConfig := agr.LoadConfig()
	extractorConfig.MinTextLength = cfg.Analysis.MinGrantTextLength

	minerConfig := asp.LoadConfig()
	minerConfig.MinSampleSize = cfg.Analysis.MinSampleSize

	handlers := &engine.Handlers{
		Requirements: agr.NewHandler(extractorConfig, backendClient, log),
		Eligibility:  ce.NewHandler(ce.LoadConfig(), log),
		Compliance:   vc.NewHandler(vc.LoadConfig(), ruleSets, log),
		Patterns:     asp.NewHandler(minerConfig, corpusResolver, log),
		Guidance:     gag.NewHandler(gag.LoadConfig(), resultStore, log),
	}

	eng := engine.New(reg, resultCache, resultStore, handlers, obs, log)
	zapLog.Info("All 5 analysis operations registered successfully")

	// --- Analysis, Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/analyze/{operation}", func(w http.ResponseWriter, r *http.Request) {
		operation := r.PathValue("operation")

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, errors.NewInvalidInputError("payload", "unreadable request body"))
			return
		}

		envelope, err := eng.Dispatch(r.Context(), operation, payload)
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(envelope)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := map[string]string{"postgres": "up", "redis": "up"}
		if err := pg.Ping(pingCtx); err != nil {
			checks["postgres"] = "down"
			status = http.StatusServiceUnavailable
		}
		if err := redis.Ping(pingCtx); err != nil {
			checks["redis"] = "down"
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(checks)
	})
	mux.Handle("/metrics", promhttp.Handler())

	// The profiler registers on the default mux, not this one.
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.MetricsPort),
		Handler: mux,
	}

	go func() {
		zapLog.Info("Analysis/Health/Metrics server listening", zap.Int("port", cfg.App.MetricsPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Analysis/Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping engine...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	zapLog.Info("Engine manager stopped gracefully")
}

// writeError maps the structured error taxonomy to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	stdErr := errors.Normalize(err)

	status := http.StatusInternalServerError
	switch stdErr.Code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeIncompleteProfile:
		status = http.StatusBadRequest
	case errors.ErrCodeUnsupportedOperation, errors.ErrCodeRuleSetNotFound, errors.ErrCodeAnalysisNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeBackendTimeout:
		status = http.StatusGatewayTimeout
	case errors.ErrCodeBackendUnavailable:
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":     stdErr.Message,
		"errorCode": string(stdErr.Code),
		"retryable": stdErr.Retryable,
	})
}
