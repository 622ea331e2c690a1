package rerank

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"meal-scheduler/internal/llm"
	"meal-scheduler/internal/recipe"
)

type stubGenerator struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (llm.ContentResponse, error) {
	s.calls++
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return llm.ContentResponse{}, s.err
	}
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return llm.ContentResponse{Content: resp}, nil
}

func testSlot(id string, candidateIDs ...string) Slot {
	slot := Slot{
		SlotID:     id,
		MealType:   "lunch",
		FallbackID: candidateIDs[0],
		Scores:     map[string]float64{},
	}
	for i, cid := range candidateIDs {
		slot.Candidates = append(slot.Candidates, recipe.Recipe{
			ID:          cid,
			Title:       "Recipe " + cid,
			Ingredients: []string{"rice (1 cup)", "beans"},
			DishTypes:   []string{"lunch"},
		})
		slot.Scores[cid] = float64(len(candidateIDs) - i)
	}
	return slot
}

func enabledConfig() Config {
	return Config{Enabled: true}
}

func TestRerankGuardsFallBack(t *testing.T) {
	gen := &stubGenerator{responses: []string{`{}`}}
	ctx := context.Background()

	// Disabled configuration.
	r := New(gen, Config{Enabled: false})
	got := r.Rerank(ctx, "q", testSlot("d1-lunch", "a", "b"), Constraints{}, History{})
	if got.ChosenID != "a" || got.Reasons != nil {
		t.Errorf("disabled: got %+v", got)
	}

	// Nil backend.
	r = New(nil, enabledConfig())
	got = r.Rerank(ctx, "q", testSlot("d1-lunch", "a", "b"), Constraints{}, History{})
	if got.ChosenID != "a" {
		t.Errorf("nil backend: got %+v", got)
	}

	// Fewer than two candidates.
	r = New(gen, enabledConfig())
	got = r.Rerank(ctx, "q", testSlot("d1-lunch", "a"), Constraints{}, History{})
	if got.ChosenID != "a" {
		t.Errorf("single candidate: got %+v", got)
	}
	if gen.calls != 0 {
		t.Errorf("guards must not reach the backend, got %d calls", gen.calls)
	}
}

func TestRerankUsesSelectedID(t *testing.T) {
	gen := &stubGenerator{responses: []string{
		`{"selected_id": "b", "backup_id": "a", "reasons": ["better macro fit", "less repetition"], "confidence": 0.8}`,
	}}
	r := New(gen, enabledConfig())

	got := r.Rerank(context.Background(), "q", testSlot("d1-lunch", "a", "b"), Constraints{}, History{})
	if got.ChosenID != "b" {
		t.Errorf("chosen: got %q, want b", got.ChosenID)
	}
	if len(got.Reasons) != 2 || got.Reasons[0] != "better macro fit" {
		t.Errorf("reasons: %v", got.Reasons)
	}
}

func TestRerankValidationChain(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
		reasons  bool
	}{
		{"InvalidSelectedUsesBackup", `{"selected_id": "zzz", "backup_id": "b", "reasons": ["r"]}`, "b", true},
		{"BothInvalidUsesFallback", `{"selected_id": "zzz", "backup_id": "yyy", "reasons": ["r"]}`, "a", false},
		{"NullBackup", `{"selected_id": "nope", "backup_id": null}`, "a", false},
		{"MalformedJSON", `this is not json at all`, "a", false},
		{"MarkdownFenced", "```json\n{\"selected_id\": \"b\"}\n```", "b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{responses: []string{tt.response}}
			r := New(gen, enabledConfig())
			got := r.Rerank(context.Background(), "q", testSlot("d1-lunch", "a", "b"), Constraints{}, History{})
			if got.ChosenID != tt.want {
				t.Errorf("chosen: got %q, want %q", got.ChosenID, tt.want)
			}
			if tt.reasons != (len(got.Reasons) > 0) {
				t.Errorf("reasons presence: got %v", got.Reasons)
			}
		})
	}
}

func TestRerankLenientDecoding(t *testing.T) {
	// Non-string reasons are dropped, extra keys ignored, reasons capped.
	gen := &stubGenerator{responses: []string{
		`{"selected_id": "b", "reasons": ["one", 2, null, "two", "three", "four", "five"], "confidence": "high", "extra": true}`,
	}}
	r := New(gen, enabledConfig())

	got := r.Rerank(context.Background(), "q", testSlot("d1-lunch", "a", "b"), Constraints{}, History{})
	if got.ChosenID != "b" {
		t.Fatalf("chosen: got %q", got.ChosenID)
	}
	if len(got.Reasons) != 4 {
		t.Errorf("expected reasons capped at 4, got %v", got.Reasons)
	}
	for _, reason := range got.Reasons {
		if strings.TrimSpace(reason) == "" {
			t.Errorf("blank reason survived: %v", got.Reasons)
		}
	}
}

func TestRerankBackendFailureFallsBack(t *testing.T) {
	gen := &stubGenerator{err: errors.New("timeout")}
	r := New(gen, enabledConfig())

	got := r.Rerank(context.Background(), "q", testSlot("d1-lunch", "a", "b"), Constraints{}, History{})
	if got.ChosenID != "a" || got.Reasons != nil {
		t.Errorf("failure must yield fallback with no reasons: %+v", got)
	}
}

func TestRerankCachesResponses(t *testing.T) {
	gen := &stubGenerator{responses: []string{`{"selected_id": "b"}`}}
	r := New(gen, enabledConfig())
	ctx := context.Background()

	slot := testSlot("d1-lunch", "a", "b")
	first := r.Rerank(ctx, "q", slot, Constraints{}, History{})
	second := r.Rerank(ctx, "q", slot, Constraints{}, History{})
	if first.ChosenID != "b" || second.ChosenID != "b" {
		t.Errorf("results differ: %+v vs %+v", first, second)
	}
	if gen.calls != 1 {
		t.Errorf("expected 1 backend call with warm cache, got %d", gen.calls)
	}

	// A different candidate set is a different key.
	r.Rerank(ctx, "q", testSlot("d1-lunch", "a", "c"), Constraints{}, History{})
	if gen.calls != 2 {
		t.Errorf("expected cache miss for new candidates, got %d calls", gen.calls)
	}
}

func TestRerankTrimsToTopK(t *testing.T) {
	gen := &stubGenerator{responses: []string{`{"selected_id": "d"}`}}
	r := New(gen, Config{Enabled: true, TopK: 3})

	// "d" ranks fourth and is trimmed away, so the response id is invalid.
	got := r.Rerank(context.Background(), "q", testSlot("d1-lunch", "a", "b", "c", "d"), Constraints{}, History{})
	if got.ChosenID != "a" {
		t.Errorf("id outside top-K must fall back, got %q", got.ChosenID)
	}
	if !strings.Contains(gen.prompts[0], `"id":"c"`) || strings.Contains(gen.prompts[0], `"id":"d"`) {
		t.Error("prompt should contain exactly the top-K candidates")
	}
}

func TestRerankBatch(t *testing.T) {
	gen := &stubGenerator{responses: []string{`{
		"selections": [
			{"slot_id": "d1-lunch", "selected_id": "b", "reasons": ["variety"]},
			{"slot_id": "d1-dinner", "selected_id": "zzz", "backup_id": "y"}
		]
	}`}}
	r := New(gen, enabledConfig())

	slots := []Slot{
		testSlot("d1-lunch", "a", "b"),
		testSlot("d1-dinner", "x", "y"),
		testSlot("d1-breakfast", "m", "n"),
	}
	got := r.RerankBatch(context.Background(), "q", slots, Constraints{}, History{})

	if gen.calls != 1 {
		t.Fatalf("expected a single batched call, got %d", gen.calls)
	}
	if got["d1-lunch"].ChosenID != "b" {
		t.Errorf("lunch: %+v", got["d1-lunch"])
	}
	// Invalid selected id falls through to backup.
	if got["d1-dinner"].ChosenID != "y" {
		t.Errorf("dinner: %+v", got["d1-dinner"])
	}
	// A slot missing from the response keeps its deterministic winner.
	if got["d1-breakfast"].ChosenID != "m" {
		t.Errorf("breakfast: %+v", got["d1-breakfast"])
	}
}

func TestRerankBatchFailureIsIndependentPerSlot(t *testing.T) {
	gen := &stubGenerator{err: errors.New("backend unreachable")}
	r := New(gen, enabledConfig())

	slots := []Slot{
		testSlot("d1-lunch", "a", "b"),
		testSlot("d1-dinner", "x", "y"),
	}
	got := r.RerankBatch(context.Background(), "q", slots, Constraints{}, History{})
	if got["d1-lunch"].ChosenID != "a" || got["d1-dinner"].ChosenID != "x" {
		t.Errorf("each slot must fall back to its own winner: %+v", got)
	}
}

func TestNormalizeScore(t *testing.T) {
	slot := testSlot("s", "a", "b", "c")
	slot.Scores = map[string]float64{"a": 4.0, "b": 2.0, "c": 0.0}

	if got := normalizeScore(4.0, slot); got != 100 {
		t.Errorf("max: got %v", got)
	}
	if got := normalizeScore(0.0, slot); got != 0 {
		t.Errorf("min: got %v", got)
	}
	if got := normalizeScore(2.0, slot); got != 50 {
		t.Errorf("mid: got %v", got)
	}

	// Degenerate case: identical scores.
	slot.Scores = map[string]float64{"a": 1.5, "b": 1.5, "c": 1.5}
	if got := normalizeScore(1.5, slot); got != 50 {
		t.Errorf("degenerate: got %v, want 50", got)
	}
}

func TestKeyIngredientsCondensed(t *testing.T) {
	got := keyIngredients([]string{
		"Potatoes (3 medium)", "Olive Oil (1 tbsp)", "salt", "pepper", "garlic", "onion", "thyme", "bay leaf",
	})
	if len(got) != 6 {
		t.Fatalf("expected 6 key ingredients, got %d", len(got))
	}
	if got[0] != "Potatoes" {
		t.Errorf("measure not stripped: %q", got[0])
	}
}

func TestParseModeValidation(t *testing.T) {
	for _, valid := range []string{"per_meal", "per_day", "per_plan", ""} {
		if _, ok := ParseMode(valid); !ok {
			t.Errorf("%q should be valid", valid)
		}
	}
	mode, ok := ParseMode("per_universe")
	if ok || mode != ModePerMeal {
		t.Errorf("invalid mode should fall back to per_meal, got %q (%v)", mode, ok)
	}
}

func TestRerankHistoryIsBounded(t *testing.T) {
	var titles []string
	for i := 0; i < 30; i++ {
		titles = append(titles, fmt.Sprintf("Recipe %02d", i))
	}
	gen := &stubGenerator{responses: []string{`{"selected_id": "b"}`}}
	r := New(gen, enabledConfig())

	r.Rerank(context.Background(), "q", testSlot("d1-lunch", "a", "b"), Constraints{}, History{RecentTitles: titles})
	prompt := gen.prompts[0]
	if strings.Contains(prompt, "Recipe 00") {
		t.Error("oldest history entries should be trimmed")
	}
	if !strings.Contains(prompt, "Recipe 29") {
		t.Error("newest history entries should survive")
	}
}
