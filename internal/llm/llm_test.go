package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"meal-scheduler/internal/query"
	"meal-scheduler/internal/shared"
)

type stubGenerator struct {
	response string
	err      error
	prompts  []string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (ContentResponse, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return ContentResponse{}, s.err
	}
	return ContentResponse{
		Content: s.response,
		Usage:   shared.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, Model: "stub"},
	}, nil
}

func TestQueryEnhancerDecodesResponse(t *testing.T) {
	gen := &stubGenerator{response: `{
		"clarified_intent": "A 3-day balanced mediterranean plan",
		"duration_days": 3,
		"diets": ["mediterranean"],
		"preferences": ["healthy"],
		"exclusions": [],
		"calories": 0,
		"meals_per_day": 3
	}`}

	enhancer := NewQueryEnhancer(gen)
	got, err := enhancer.Enhance(context.Background(), "something healthy", query.ParsedQuery{Days: 3, MealsPerDay: 3})
	if err != nil {
		t.Fatal(err)
	}
	if got.ClarifiedIntent != "A 3-day balanced mediterranean plan" {
		t.Errorf("clarified intent: %q", got.ClarifiedIntent)
	}
	if len(got.Diets) != 1 || got.Diets[0] != "mediterranean" {
		t.Errorf("diets: %v", got.Diets)
	}
}

func TestQueryEnhancerStripsMarkdownFences(t *testing.T) {
	gen := &stubGenerator{response: "```json\n{\"clarified_intent\": \"ok\", \"diets\": []}\n```"}
	enhancer := NewQueryEnhancer(gen)

	got, err := enhancer.Enhance(context.Background(), "q", query.ParsedQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if got.ClarifiedIntent != "ok" {
		t.Errorf("fenced JSON not decoded: %+v", got)
	}
}

func TestQueryEnhancerPropagatesBackendError(t *testing.T) {
	enhancer := NewQueryEnhancer(&stubGenerator{err: errors.New("offline")})
	if _, err := enhancer.Enhance(context.Background(), "q", query.ParsedQuery{}); err == nil {
		t.Error("expected error from failing backend")
	}
}

func TestFormatInstructionsFallsBackOnFailure(t *testing.T) {
	raw := []string{"Step 1: chop.", "Step 2: cook."}

	got := FormatInstructions(context.Background(), &stubGenerator{err: errors.New("offline")}, raw)
	if len(got) != 2 || got[0] != raw[0] {
		t.Errorf("failure should return input unchanged, got %v", got)
	}

	got = FormatInstructions(context.Background(), nil, raw)
	if len(got) != 2 {
		t.Errorf("nil generator should return input unchanged, got %v", got)
	}
}

func TestFormatInstructionsUsesCleanedSteps(t *testing.T) {
	gen := &stubGenerator{response: `{"steps": ["Chop the onions.", "Cook until soft."]}`}
	got := FormatInstructions(context.Background(), gen, []string{"Step 1 chop the onions, step 2 cook until soft"})
	if len(got) != 2 || got[0] != "Chop the onions." {
		t.Errorf("cleaned steps not used: %v", got)
	}
}

type recordedMeta struct {
	metas []shared.AgentMeta
}

func (r *recordedMeta) Record(meta shared.AgentMeta) error {
	r.metas = append(r.metas, meta)
	return nil
}

func TestInstrumentedGeneratorRecordsUsage(t *testing.T) {
	recorder := &recordedMeta{}
	gen := NewInstrumentedGenerator(&stubGenerator{response: "ok"}, recorder, "reranker")

	if _, err := gen.GenerateContent(context.Background(), "prompt"); err != nil {
		t.Fatal(err)
	}
	if len(recorder.metas) != 1 {
		t.Fatalf("expected 1 recorded call, got %d", len(recorder.metas))
	}
	meta := recorder.metas[0]
	if meta.AgentName != "reranker" || meta.Usage.TotalTokens != 15 {
		t.Errorf("unexpected meta %+v", meta)
	}
}

func TestInstrumentedGeneratorSkipsRecordingOnError(t *testing.T) {
	recorder := &recordedMeta{}
	gen := NewInstrumentedGenerator(&stubGenerator{err: errors.New("down")}, recorder, "reranker")

	if _, err := gen.GenerateContent(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error")
	}
	if len(recorder.metas) != 0 {
		t.Errorf("failed calls must not be recorded, got %d", len(recorder.metas))
	}
}

func TestGroqClientParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header: %q", got)
		}
		fmt.Fprint(w, `{
			"choices": [{"message": {"content": "{\"ok\": true}"}}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 8, "total_tokens": 28}
		}`)
	}))
	defer server.Close()

	client := NewGroqClient("test-key").(*groqClient)
	client.apiURL = server.URL

	resp, err := client.GenerateContent(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != `{"ok": true}` {
		t.Errorf("content: %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 28 || resp.Usage.Model != groqModel {
		t.Errorf("usage: %+v", resp.Usage)
	}
}

func TestGroqClientErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewGroqClient("k").(*groqClient)
	client.apiURL = server.URL

	if _, err := client.GenerateContent(context.Background(), "hello"); err == nil {
		t.Error("expected error on non-200 status")
	}
}
