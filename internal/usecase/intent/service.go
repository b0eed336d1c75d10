package intent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/appscout/appscout/internal/domain"
	"github.com/appscout/appscout/internal/llmjson"
	"github.com/appscout/appscout/internal/metrics"
)

const (
	minTerms = 3
	maxTerms = 5
)

const systemPrompt = `You analyze a user's description of an app they need.
Respond with a single JSON object, no markdown, with fields:
"main_topic" (string), "key_concepts" (3-5 short strings),
"search_focus" (3-5 lowercase keywords for matching app descriptions),
"semantic_query" (one sentence rephrasing the need for semantic search),
"confidence" (0-1).`

// Service turns a raw query into a structured intent. A model failure never
// escapes this component; the local heuristic always yields a usable intent.
type Service struct {
	completer Completer
	logger    *zap.Logger
}

// New creates an intent analyzer.
func New(completer Completer, logger *zap.Logger) *Service {
	return &Service{completer: completer, logger: logger}
}

type intentResponse struct {
	MainTopic     string   `json:"main_topic"`
	KeyConcepts   []string `json:"key_concepts"`
	SearchFocus   []string `json:"search_focus"`
	SemanticQuery string   `json:"semantic_query"`
	Confidence    float64  `json:"confidence"`
}

// Analyze derives a QueryIntent from the raw query. The returned intent is
// flagged Degraded when the heuristic path produced it.
func (s *Service) Analyze(ctx context.Context, query string) domain.QueryIntent {
	raw, err := s.completer.Complete(ctx, systemPrompt, fmt.Sprintf("User need: %q", query))
	if err != nil {
		s.logger.Warn("intent model call failed, using heuristic", zap.Error(err))
		metrics.StageDegradedTotal.WithLabelValues("intent").Inc()
		return FallbackIntent(query)
	}

	var resp intentResponse
	if err := llmjson.Decode(raw, &resp); err != nil {
		s.logger.Warn("intent response unparseable, using heuristic", zap.Error(err))
		metrics.StageDegradedTotal.WithLabelValues("intent").Inc()
		return FallbackIntent(query)
	}

	return s.sanitize(query, resp)
}

// sanitize normalizes a model response into a well-formed intent, topping up
// short term lists from the heuristic tokenizer.
func (s *Service) sanitize(query string, resp intentResponse) domain.QueryIntent {
	intent := domain.QueryIntent{
		MainTopic:     strings.TrimSpace(resp.MainTopic),
		KeyConcepts:   normalizeTerms(resp.KeyConcepts),
		SearchFocus:   normalizeTerms(resp.SearchFocus),
		SemanticQuery: strings.TrimSpace(resp.SemanticQuery),
		Confidence:    clamp01(resp.Confidence),
	}

	heuristic := contentTokens(query)
	intent.KeyConcepts = topUp(intent.KeyConcepts, heuristic)
	intent.SearchFocus = topUp(intent.SearchFocus, heuristic)

	if intent.SemanticQuery == "" {
		intent.SemanticQuery = query
	}
	if intent.MainTopic == "" && len(intent.KeyConcepts) > 0 {
		intent.MainTopic = intent.KeyConcepts[0]
	}

	return intent
}

// FallbackIntent builds an intent without the model: longest content tokens
// become concepts and focus terms, the raw query is the semantic query.
func FallbackIntent(query string) domain.QueryIntent {
	tokens := contentTokens(query)

	terms := tokens
	if len(terms) > maxTerms {
		terms = terms[:maxTerms]
	}

	mainTopic := ""
	if len(terms) > 0 {
		mainTopic = terms[0]
	}

	return domain.QueryIntent{
		MainTopic:     mainTopic,
		KeyConcepts:   terms,
		SearchFocus:   terms,
		SemanticQuery: query,
		Degraded:      true,
	}
}

// contentTokens tokenizes the query, drops stop words, dedupes, and orders
// longest-first (original order breaks length ties, keeping output stable).
func contentTokens(query string) []string {
	fields := strings.Fields(strings.ToLower(query))

	seen := make(map[string]bool, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tok := strings.Trim(f, ".,!?;:\"'()[]")
		if len(tok) < 2 || stopWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		tokens = append(tokens, tok)
	}

	sort.SliceStable(tokens, func(i, j int) bool {
		return len(tokens[i]) > len(tokens[j])
	})
	return tokens
}

// normalizeTerms lowercases, trims, dedupes, and caps a model term list.
func normalizeTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == maxTerms {
			break
		}
	}
	return out
}

// topUp pads terms to the minimum length from the extras list.
func topUp(terms, extras []string) []string {
	if len(terms) >= minTerms {
		return terms
	}
	present := make(map[string]bool, len(terms))
	for _, t := range terms {
		present[t] = true
	}
	for _, e := range extras {
		if len(terms) >= minTerms {
			break
		}
		if present[e] {
			continue
		}
		terms = append(terms, e)
		present[e] = true
	}
	return terms
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
