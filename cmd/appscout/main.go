package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/appscout/appscout/internal/config"
	"github.com/appscout/appscout/internal/db"
	dbRedis "github.com/appscout/appscout/internal/db/redis"
	"github.com/appscout/appscout/internal/domain"
	logpkg "github.com/appscout/appscout/internal/logger"
	"github.com/appscout/appscout/internal/metrics"
	catalogrepo "github.com/appscout/appscout/internal/repository/catalog"
	"github.com/appscout/appscout/internal/repository/embcache"
	chiTransport "github.com/appscout/appscout/internal/transport/chi"
	openaiProvider "github.com/appscout/appscout/internal/transport/openai"
	fusionuc "github.com/appscout/appscout/internal/usecase/fusion"
	healthuc "github.com/appscout/appscout/internal/usecase/health"
	intentuc "github.com/appscout/appscout/internal/usecase/intent"
	recommenduc "github.com/appscout/appscout/internal/usecase/recommend"
	rerankuc "github.com/appscout/appscout/internal/usecase/rerank"
	retrievaluc "github.com/appscout/appscout/internal/usecase/retrieval"
	"github.com/appscout/appscout/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting appscout API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create catalog store", zap.Error(err))
	}
	defer store.Close()

	// Wait for the catalog store to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Catalog store not ready", zap.Error(err))
	}
	logger.Info("Connected to catalog store")

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	if err := ensureIndex(ctx, store, cfg, logger); err != nil {
		logger.Fatal("Failed to ensure catalog index", zap.Error(err))
	}

	embedder, embedderHealth := buildEmbedder(cfg, store, logger)
	completer := openaiProvider.NewCompleter(&openaiProvider.CompleterConfig{
		APIKey:      cfg.Completion.APIKey,
		BaseURL:     cfg.Completion.BaseURL,
		Model:       cfg.Completion.Model,
		Temperature: cfg.Completion.Temperature,
		MaxTokens:   cfg.Completion.MaxTokens,
		Provider:    cfg.Completion.Provider,
		Logger:      logger,
	})
	logger.Info("Providers created",
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.String("completion_model", cfg.Completion.Model),
	)

	catalog := catalogrepo.New(store)

	// Pipeline stages
	p := cfg.Pipeline
	intentSvc := intentuc.New(completer, logger)
	vectorRet := retrievaluc.NewVector(embedder, catalog, cfg.Embedding.Dimensions, p.MinSimilarity, logger)
	keywordRet := retrievaluc.NewKeyword(catalog, retrievaluc.KeywordConfig{
		MinScore:           p.MinKeywordScore,
		CategoryMultiplier: p.CategoryMultiplier,
		SubstringPenalty:   p.SubstringPenalty,
		RatingBonus:        p.KeywordRatingBonus,
		ScanCap:            cfg.Catalog.ScanFallbackCap,
	}, logger)
	fuser := fusionuc.New(fusionuc.Config{
		RRFK:            p.RRFK,
		MagnitudeWeight: p.MagnitudeWeight,
		DiversityBoost:  p.DiversityBoost,
		RatingWeight:    p.RatingWeight,
	})
	reranker := rerankuc.New(completer, rerankuc.Config{
		TopN:            p.RerankTopN,
		BatchSize:       p.RerankBatchSize,
		Timeout:         time.Duration(p.RerankTimeoutSec) * time.Second,
		RetrievalWeight: p.RetrievalWeight,
		LLMWeight:       p.LLMWeight,
		ConfidenceBonus: p.ConfidenceBonus,
		HighConfidence:  p.HighConfidence,
		MinConfidence:   p.MinConfidence,
		BreakerFailures: uint32(cfg.Completion.BreakerFailures),
		BreakerReset:    time.Duration(cfg.Completion.BreakerResetSec) * time.Second,
	}, logger)

	searchSvc := recommenduc.New(intentSvc, vectorRet, keywordRet, fuser, reranker, recommenduc.Config{
		MaxQueryLen:      p.MaxQueryLen,
		MaxLimit:         p.MaxLimit,
		RetrieveLimit:    p.RetrieveLimit,
		IntentTimeout:    time.Duration(p.IntentTimeoutSec) * time.Second,
		RetrievalTimeout: time.Duration(p.RetrievalTimeoutSec) * time.Second,
	}, logger)

	healthSvc := healthuc.New(store, embedderHealth, completer)

	server := chiTransport.NewServer(searchSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Mount(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// ensureIndex creates the FT index over item hashes if it does not exist.
// The ingestion pipeline writes the hashes; the API owns the index schema.
func ensureIndex(ctx context.Context, store db.Store, cfg config.Config, logger *zap.Logger) error {
	exists, err := store.IndexExists(ctx, catalogrepo.IndexName)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}

	def := catalogrepo.IndexDefinition(
		cfg.Embedding.Dimensions,
		cfg.Catalog.HNSWM,
		cfg.Catalog.HNSWEFConstruct,
	)
	if err := store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	logger.Info("Created catalog index",
		zap.String("index", catalogrepo.IndexName),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)
	return nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached. The base
// provider doubles as the health check since the cache layer has none.
func buildEmbedder(cfg config.Config, store db.Store, logger *zap.Logger) (domain.Embedder, healthuc.ProviderChecker) {
	base := openaiProvider.NewEmbedder(&openaiProvider.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	ttl := time.Duration(cfg.Embedding.CacheTTLMin) * time.Minute
	return embcache.New(base, store, ttl, metrics.EmbeddingCacheTotal, logger), base
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
