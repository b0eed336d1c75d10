package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/appscout/appscout/internal/domain"
	"github.com/appscout/appscout/internal/metrics"
)

// Config holds request validation bounds and stage timeouts.
type Config struct {
	MaxQueryLen      int
	MaxLimit         int
	RetrieveLimit    int // per-retriever candidate cap
	IntentTimeout    time.Duration
	RetrievalTimeout time.Duration
}

// Metadata is the diagnostic block attached to every search response.
// Degraded distinguishes "no matches" from "pipeline limped home": an
// empty result list with Degraded false is a genuine zero-match outcome.
type Metadata struct {
	ElapsedMS       int64            `json:"elapsed_ms"`
	StageMS         map[string]int64 `json:"stage_ms"`
	Degraded        bool             `json:"degraded"`
	DegradedStages  []string         `json:"degraded_stages,omitempty"`
	CandidateCounts map[string]int   `json:"candidate_counts"`
}

// Response is the search pipeline output.
type Response struct {
	Results  []domain.RankedResult `json:"results"`
	Metadata Metadata              `json:"metadata"`
}

// Service orchestrates the search pipeline: intent analysis, parallel
// vector and keyword retrieval, rank fusion, and model reranking.
type Service struct {
	intent   IntentAnalyzer
	vector   Retriever
	keyword  Retriever
	fuser    Fuser
	reranker Reranker
	cfg      Config
	logger   *zap.Logger
}

// New creates the orchestrator.
func New(intent IntentAnalyzer, vector, keyword Retriever, fuser Fuser, reranker Reranker, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		intent:   intent,
		vector:   vector,
		keyword:  keyword,
		fuser:    fuser,
		reranker: reranker,
		cfg:      cfg,
		logger:   logger,
	}
}

// retrievalOutcome carries one retriever's results across the join.
type retrievalOutcome struct {
	candidates []domain.Candidate
	degraded   bool
	err        error
}

// Search validates the request and drives the pipeline. A hard error is
// returned only for invalid input, an embedding dimension mismatch, or
// a catalog outage that starved both retrievers; every other failure
// degrades in place and is reported through the metadata.
func (s *Service) Search(ctx context.Context, query string, limit int, user domain.UserContext) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrInvalidQuery
	}
	if len(query) > s.cfg.MaxQueryLen {
		return nil, fmt.Errorf("%w: %d characters, max %d", domain.ErrQueryTooLong, len(query), s.cfg.MaxQueryLen)
	}
	if limit < 1 || limit > s.cfg.MaxLimit {
		return nil, fmt.Errorf("%w: %d, allowed 1-%d", domain.ErrLimitOutOfRange, limit, s.cfg.MaxLimit)
	}

	start := time.Now()
	meta := Metadata{
		StageMS:         make(map[string]int64, 4),
		CandidateCounts: make(map[string]int, 4),
	}
	markDegraded := func(stage string) {
		meta.Degraded = true
		meta.DegradedStages = append(meta.DegradedStages, stage)
	}

	// Intent.
	intent := s.runIntent(ctx, query, &meta)
	if intent.Degraded {
		markDegraded("intent")
	}

	// Retrieval, both signals concurrently.
	vecOut, kwOut := s.runRetrieval(ctx, intent, &meta)
	if vecOut.err != nil && errors.Is(vecOut.err, domain.ErrVectorDimMismatch) {
		return nil, vecOut.err
	}
	if vecOut.err != nil && kwOut.err != nil {
		return nil, fmt.Errorf("%w: vector: %v; keyword: %v", domain.ErrCatalogUnavailable, vecOut.err, kwOut.err)
	}
	if vecOut.err != nil || vecOut.degraded {
		markDegraded("vector")
		if vecOut.err != nil {
			s.logger.Warn("vector retrieval failed, continuing on keywords", zap.Error(vecOut.err))
		}
	}
	if kwOut.err != nil || kwOut.degraded {
		markDegraded("keyword")
		if kwOut.err != nil {
			s.logger.Warn("keyword retrieval failed, continuing on vectors", zap.Error(kwOut.err))
		}
	}
	meta.CandidateCounts["vector"] = len(vecOut.candidates)
	meta.CandidateCounts["keyword"] = len(kwOut.candidates)

	// Fusion.
	fuseStart := time.Now()
	fused := s.fuser.Fuse(vecOut.candidates, kwOut.candidates)
	observeStage("fusion", fuseStart, &meta)
	meta.CandidateCounts["fused"] = len(fused)

	// Rerank.
	rerankStart := time.Now()
	results, rerankDegraded := s.reranker.Rerank(ctx, query, user, fused)
	observeStage("rerank", rerankStart, &meta)
	if rerankDegraded {
		markDegraded("rerank")
	}
	if len(results) > limit {
		results = results[:limit]
	}
	meta.CandidateCounts["final"] = len(results)
	meta.ElapsedMS = time.Since(start).Milliseconds()

	s.logger.Info("search completed",
		zap.Int("results", len(results)),
		zap.Bool("degraded", meta.Degraded),
		zap.Int64("elapsed_ms", meta.ElapsedMS))
	return &Response{Results: results, Metadata: meta}, nil
}

func (s *Service) runIntent(ctx context.Context, query string, meta *Metadata) domain.QueryIntent {
	ictx, cancel := context.WithTimeout(ctx, s.cfg.IntentTimeout)
	defer cancel()

	stageStart := time.Now()
	intent := s.intent.Analyze(ictx, query)
	observeStage("intent", stageStart, meta)
	return intent
}

func (s *Service) runRetrieval(ctx context.Context, intent domain.QueryIntent, meta *Metadata) (vecOut, kwOut retrievalOutcome) {
	rctx, cancel := context.WithTimeout(ctx, s.cfg.RetrievalTimeout)
	defer cancel()

	stageStart := time.Now()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		vecOut.candidates, vecOut.degraded, vecOut.err = s.vector.Retrieve(rctx, intent, s.cfg.RetrieveLimit)
	}()
	go func() {
		defer wg.Done()
		kwOut.candidates, kwOut.degraded, kwOut.err = s.keyword.Retrieve(rctx, intent, s.cfg.RetrieveLimit)
	}()
	wg.Wait()
	observeStage("retrieval", stageStart, meta)
	return vecOut, kwOut
}

func observeStage(stage string, start time.Time, meta *Metadata) {
	elapsed := time.Since(start)
	meta.StageMS[stage] = elapsed.Milliseconds()
	metrics.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}
