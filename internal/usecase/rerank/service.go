package rerank

import (
	"context"
	"sort"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/appscout/appscout/internal/domain"
	"github.com/appscout/appscout/internal/llmjson"
	"github.com/appscout/appscout/internal/metrics"
)

// Config holds the reranker's scoring weights and batching knobs.
// RetrievalWeight and LLMWeight must sum to 1.
type Config struct {
	TopN            int           // candidates eligible for model judgment
	BatchSize       int           // candidates per model call
	Timeout         time.Duration // hard per-batch deadline
	RetrievalWeight float64
	LLMWeight       float64
	ConfidenceBonus float64 // added when confidence exceeds HighConfidence
	HighConfidence  float64
	MinConfidence   float64 // results below this are dropped, not demoted

	BreakerFailures uint32        // consecutive failures before the breaker opens
	BreakerReset    time.Duration // open-state duration before a probe
}

// judgment is one model verdict for one candidate.
type judgment struct {
	ItemID      string  `json:"item_id"`
	Relevance   float64 `json:"relevance_score"`
	OneLiner    string  `json:"personalized_oneliner"`
	Explanation string  `json:"match_explanation"`
	Confidence  float64 `json:"confidence"`
}

// Service refines an already-ordered candidate list with model relevance
// judgments. Every failure mode of the model call (timeout, open
// breaker, unparseable output) lands on the heuristic fallback; the
// caller always receives one scored entry per eligible candidate, minus
// only the explicit confidence-threshold exclusions.
type Service struct {
	completer Completer
	breaker   *gobreaker.CircuitBreaker[string]
	cfg       Config
	logger    *zap.Logger
}

// New creates a reranker. The circuit breaker opens after a few
// consecutive model failures so a dead provider costs one failed call
// per window instead of one per batch.
func New(completer Completer, cfg Config, logger *zap.Logger) *Service {
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 3
	}
	if cfg.BreakerReset == 0 {
		cfg.BreakerReset = 30 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "rerank-completer",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerReset,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &Service{completer: completer, breaker: breaker, cfg: cfg, logger: logger}
}

// Rerank judges the top candidates in batches and blends each model
// relevance score with the retrieval score into a final ranking. The
// bool reports degraded mode: at least one batch was scored by the
// heuristic fallback.
func (s *Service) Rerank(ctx context.Context, query string, user domain.UserContext, candidates []domain.Candidate) ([]domain.RankedResult, bool) {
	if len(candidates) == 0 {
		return nil, false
	}

	top := candidates
	if len(top) > s.cfg.TopN {
		top = top[:s.cfg.TopN]
	}
	maxFused := top[0].FusedScore
	for _, c := range top[1:] {
		if c.FusedScore > maxFused {
			maxFused = c.FusedScore
		}
	}

	degraded := false
	results := make([]domain.RankedResult, 0, len(top))

	for start := 0; start < len(top); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(top) {
			end = len(top)
		}
		batch := top[start:end]

		judgments, ok := s.judgeBatch(ctx, query, user, batch)
		if !ok {
			degraded = true
			metrics.StageDegradedTotal.WithLabelValues("rerank").Inc()
		}

		for _, c := range batch {
			norm := normalize(c.FusedScore, maxFused)
			j, found := judgments[c.ItemID]
			if !found {
				j = fallbackJudgment(c, query, norm)
			}
			results = append(results, s.score(c, j, norm))
		}
	}

	results = s.dropLowConfidence(results)

	sort.Slice(results, func(i, j int) bool {
		if results[i].FinalScore != results[j].FinalScore {
			return results[i].FinalScore > results[j].FinalScore
		}
		return results[i].ItemID < results[j].ItemID
	})
	for i := range results {
		results[i].Rank = i + 1
	}

	metrics.CandidatesReturned.WithLabelValues("rerank").Observe(float64(len(results)))
	return results, degraded
}

// judgeBatch runs one model call for a batch. The returned map is keyed
// by item id; ok is false when the whole batch must fall back, and
// individual candidates the model skipped are simply absent.
func (s *Service) judgeBatch(ctx context.Context, query string, user domain.UserContext, batch []domain.Candidate) (map[string]judgment, bool) {
	bctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	raw, err := s.breaker.Execute(func() (string, error) {
		return s.completer.Complete(bctx, systemPrompt, buildBatchPrompt(query, user, batch))
	})
	if err != nil {
		s.logger.Warn("rerank batch call failed, using heuristic scores",
			zap.Int("batch_size", len(batch)), zap.Error(err))
		return nil, false
	}

	var parsed []judgment
	if err := llmjson.Decode(raw, &parsed); err != nil {
		s.logger.Warn("rerank batch response unparseable, using heuristic scores",
			zap.Int("batch_size", len(batch)), zap.Error(err))
		return nil, false
	}

	known := make(map[string]bool, len(batch))
	for _, c := range batch {
		known[c.ItemID] = true
	}
	out := make(map[string]judgment, len(parsed))
	for _, j := range parsed {
		if !known[j.ItemID] {
			continue
		}
		j.Relevance = clamp(j.Relevance, 0, 10)
		j.Confidence = clamp(j.Confidence, 0, 1)
		out[j.ItemID] = j
	}
	return out, true
}

// score blends retrieval and model signal into the final score.
func (s *Service) score(c domain.Candidate, j judgment, normRetrieval float64) domain.RankedResult {
	final := s.cfg.RetrievalWeight*normRetrieval + s.cfg.LLMWeight*(j.Relevance/10)
	if j.Confidence > s.cfg.HighConfidence {
		final += s.cfg.ConfidenceBonus
	}
	return domain.RankedResult{
		ItemID:            c.ItemID,
		Title:             c.Title,
		FinalScore:        final,
		Explanation:       j.Explanation,
		PersonalizedPitch: j.OneLiner,
		Confidence:        j.Confidence,
	}
}

// dropLowConfidence removes results under the acceptance threshold.
// Precision over recall: a low-confidence judgment is excluded outright.
func (s *Service) dropLowConfidence(results []domain.RankedResult) []domain.RankedResult {
	kept := results[:0]
	for _, r := range results {
		if r.Confidence < s.cfg.MinConfidence {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

func normalize(score, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return score / max
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
