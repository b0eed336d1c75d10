package intent

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type mockCompleter struct {
	response string
	err      error
	calls    int
}

func (m *mockCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	m.calls++
	return m.response, m.err
}

func TestAnalyze_ModelPath(t *testing.T) {
	completer := &mockCompleter{response: `{
		"main_topic": "plant care",
		"key_concepts": ["plant care", "watering schedule", "gardening"],
		"search_focus": ["plant", "care", "watering"],
		"semantic_query": "an app that helps keep houseplants alive",
		"confidence": 0.9
	}`}
	svc := New(completer, zap.NewNop())

	got := svc.Analyze(context.Background(), "app to take care of my plants")

	if got.Degraded {
		t.Fatal("model path must not be degraded")
	}
	if got.MainTopic != "plant care" {
		t.Errorf("unexpected main topic: %q", got.MainTopic)
	}
	if len(got.SearchFocus) != 3 || got.SearchFocus[0] != "plant" {
		t.Errorf("unexpected search focus: %v", got.SearchFocus)
	}
	if got.SemanticQuery != "an app that helps keep houseplants alive" {
		t.Errorf("unexpected semantic query: %q", got.SemanticQuery)
	}
	if got.Confidence != 0.9 {
		t.Errorf("unexpected confidence: %g", got.Confidence)
	}
}

func TestAnalyze_FencedResponse(t *testing.T) {
	completer := &mockCompleter{response: "```json\n" + `{
		"main_topic": "budgeting",
		"key_concepts": ["budget", "expenses", "savings"],
		"search_focus": ["budget", "expense", "money"],
		"semantic_query": "track my spending",
		"confidence": 0.8
	}` + "\n```"}
	svc := New(completer, zap.NewNop())

	got := svc.Analyze(context.Background(), "track my spending")
	if got.Degraded {
		t.Fatal("fenced JSON must still parse")
	}
	if got.MainTopic != "budgeting" {
		t.Errorf("unexpected main topic: %q", got.MainTopic)
	}
}

func TestAnalyze_ModelErrorFallsBack(t *testing.T) {
	completer := &mockCompleter{err: errors.New("timeout")}
	svc := New(completer, zap.NewNop())

	got := svc.Analyze(context.Background(), "app to take care of my plants")

	if !got.Degraded {
		t.Fatal("expected degraded intent")
	}
	if got.SemanticQuery != "app to take care of my plants" {
		t.Errorf("fallback must keep the raw query: %q", got.SemanticQuery)
	}
	if len(got.KeyConcepts) == 0 {
		t.Fatal("fallback must still produce concepts")
	}
}

func TestAnalyze_UnparseableFallsBack(t *testing.T) {
	completer := &mockCompleter{response: "I'm sorry, I can't help with that."}
	svc := New(completer, zap.NewNop())

	got := svc.Analyze(context.Background(), "track my spending")
	if !got.Degraded {
		t.Fatal("expected degraded intent for unparseable output")
	}
}

func TestAnalyze_TopsUpShortLists(t *testing.T) {
	completer := &mockCompleter{response: `{
		"main_topic": "meditation",
		"key_concepts": ["meditation"],
		"search_focus": ["meditation"],
		"semantic_query": "calm my mind",
		"confidence": 0.7
	}`}
	svc := New(completer, zap.NewNop())

	got := svc.Analyze(context.Background(), "something for meditation breathing sleep")

	if len(got.KeyConcepts) < 3 {
		t.Errorf("expected concepts topped up to 3, got %v", got.KeyConcepts)
	}
	if len(got.SearchFocus) < 3 {
		t.Errorf("expected focus topped up to 3, got %v", got.SearchFocus)
	}
}

func TestAnalyze_ClampsConfidence(t *testing.T) {
	completer := &mockCompleter{response: `{
		"main_topic": "fitness",
		"key_concepts": ["workout", "running", "training"],
		"search_focus": ["workout", "running", "fitness"],
		"semantic_query": "fitness tracking",
		"confidence": 3.5
	}`}
	svc := New(completer, zap.NewNop())

	got := svc.Analyze(context.Background(), "fitness app")
	if got.Confidence != 1 {
		t.Errorf("expected confidence clamped to 1, got %g", got.Confidence)
	}
}

func TestFallbackIntent_DropsStopWords(t *testing.T) {
	got := FallbackIntent("an app to help me with my budget and expenses")

	for _, term := range got.SearchFocus {
		if stopWords[term] {
			t.Errorf("stop word %q leaked into search focus", term)
		}
	}

	found := false
	for _, term := range got.SearchFocus {
		if term == "expenses" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected 'expenses' in focus, got %v", got.SearchFocus)
	}
}

func TestFallbackIntent_LongestTokensFirst(t *testing.T) {
	got := FallbackIntent("ai photography editing")
	if len(got.KeyConcepts) == 0 || got.KeyConcepts[0] != "photography" {
		t.Errorf("expected longest token first, got %v", got.KeyConcepts)
	}
}

func TestFallbackIntent_EmptyQuery(t *testing.T) {
	got := FallbackIntent("")
	if !got.Degraded {
		t.Fatal("expected degraded")
	}
	if len(got.KeyConcepts) != 0 {
		t.Errorf("expected no concepts, got %v", got.KeyConcepts)
	}
}
