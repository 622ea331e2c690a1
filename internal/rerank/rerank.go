// Package rerank asks an LLM backend to pick among the top-ranked candidates
// for a meal slot. The deterministic winner is always the fallback: a missing
// backend, a timeout, a malformed response or an id outside the candidate set
// all resolve to it. Responses are cached by content hash.
package rerank

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"meal-scheduler/internal/cache"
	"meal-scheduler/internal/llm"
	"meal-scheduler/internal/recipe"
)

// Mode selects how rerank calls are batched across the plan.
type Mode string

const (
	// ModePerMeal issues one remote call per meal slot.
	ModePerMeal Mode = "per_meal"
	// ModePerDay issues one batched call covering all slots of a day.
	ModePerDay Mode = "per_day"
	// ModePerPlan issues one batched call covering the entire plan.
	ModePerPlan Mode = "per_plan"
)

// ParseMode validates a mode string, falling back to per_meal.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModePerMeal, ModePerDay, ModePerPlan:
		return Mode(s), true
	case "":
		return ModePerMeal, true
	}
	return ModePerMeal, false
}

const (
	defaultTopK     = 3
	defaultCacheTTL = 24 * time.Hour
	defaultTimeout  = 15 * time.Second

	maxReasons         = 4
	maxKeyIngredients  = 6
	maxHistoryTitles   = 12
	maxHistoryTokens   = 20
	maxHistoryCuisines = 12
)

// Config is the reranker's tuning surface. Zero values select safe defaults.
type Config struct {
	Enabled  bool
	TopK     int
	Mode     Mode
	CacheTTL time.Duration
	Timeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = defaultTopK
	}
	if c.Mode == "" {
		c.Mode = ModePerMeal
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = defaultCacheTTL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

// Constraints are the hard requirements the remote backend must honor.
type Constraints struct {
	Diets           []string `json:"diets"`
	Exclude         []string `json:"exclude"`
	MaxReadyMinutes int      `json:"max_ready_minutes,omitempty"`
}

// History summarizes recent selections so the backend can avoid repetition.
// The payload builder bounds each list.
type History struct {
	RecentTitles      []string `json:"recent_titles"`
	RecentIngredients []string `json:"recent_ingredients"`
	RecentCuisines    []string `json:"recent_cuisines"`
}

func (h History) bounded() History {
	return History{
		RecentTitles:      tail(h.RecentTitles, maxHistoryTitles),
		RecentIngredients: tail(h.RecentIngredients, maxHistoryTokens),
		RecentCuisines:    tail(h.RecentCuisines, maxHistoryCuisines),
	}
}

func tail(values []string, limit int) []string {
	if len(values) <= limit {
		return values
	}
	return values[len(values)-limit:]
}

// Slot is one meal position to decide: the ranked candidates, their raw
// scores and the deterministic winner to fall back to.
type Slot struct {
	SlotID     string
	MealType   string
	FallbackID string
	Candidates []recipe.Recipe
	Scores     map[string]float64
}

// Decision is the remote response schema for a single slot.
type Decision struct {
	SelectedID string   `json:"selected_id"`
	BackupID   string   `json:"backup_id"`
	Reasons    []string `json:"reasons"`
	Confidence float64  `json:"confidence"`
}

// SlotSelection is one entry of a batched remote response.
type SlotSelection struct {
	SlotID string `json:"slot_id"`
	Decision
}

// BatchDecision is the remote response schema for a batched call.
type BatchDecision struct {
	Selections []SlotSelection `json:"selections"`
}

// Result is what a rerank resolves to for one slot: a candidate id that is
// guaranteed valid, plus optional reasons when the remote choice was used.
type Result struct {
	ChosenID string
	Reasons  []string
}

// Reranker drives the remote calls. Safe for concurrent use.
type Reranker struct {
	generator llm.TextGenerator
	cfg       Config
	single    *cache.Store[Decision]
	batch     *cache.Store[BatchDecision]
}

// New creates a Reranker. generator may be nil, which leaves the feature
// disabled regardless of cfg.Enabled.
func New(generator llm.TextGenerator, cfg Config) *Reranker {
	return &Reranker{
		generator: generator,
		cfg:       cfg.withDefaults(),
		single:    cache.New[Decision](),
		batch:     cache.New[BatchDecision](),
	}
}

// Enabled reports whether rerank calls will actually reach a backend.
func (r *Reranker) Enabled() bool {
	return r != nil && r.cfg.Enabled && r.generator != nil
}

// Mode returns the configured batching mode.
func (r *Reranker) Mode() Mode {
	if r == nil {
		return ModePerMeal
	}
	return r.cfg.Mode
}

// Rerank decides a single slot. It never fails: any problem resolves to the
// slot's fallback id with no reasons.
func (r *Reranker) Rerank(ctx context.Context, query string, slot Slot, constraints Constraints, history History) Result {
	fallback := Result{ChosenID: slot.FallbackID}
	if !r.Enabled() || len(slot.Candidates) < 2 {
		return fallback
	}

	slot = r.trimToTopK(slot)
	history = history.bounded()

	key := r.cacheKey(query, []Slot{slot}, constraints, history)
	if cached, ok := r.single.Get(key); ok {
		return resolve(cached, slot)
	}

	prompt := buildSinglePrompt(buildPayload(query, slot, constraints, history))
	content, err := r.call(ctx, prompt)
	if err != nil {
		log.Printf("rerank call for slot %s failed: %v", slot.SlotID, err)
		return fallback
	}

	decision, err := parseDecision(content)
	if err != nil {
		log.Printf("rerank response for slot %s unusable: %v", slot.SlotID, err)
		return fallback
	}

	r.single.Set(key, decision, r.cfg.CacheTTL)
	return resolve(decision, slot)
}

// RerankBatch decides many slots with one remote call, keyed by slot id.
// When the batch fails, every slot independently resolves to its own
// fallback.
func (r *Reranker) RerankBatch(ctx context.Context, query string, slots []Slot, constraints Constraints, history History) map[string]Result {
	results := make(map[string]Result, len(slots))
	for _, slot := range slots {
		results[slot.SlotID] = Result{ChosenID: slot.FallbackID}
	}
	if !r.Enabled() || len(slots) == 0 {
		return results
	}

	trimmed := make([]Slot, 0, len(slots))
	for _, slot := range slots {
		trimmed = append(trimmed, r.trimToTopK(slot))
	}
	history = history.bounded()

	key := r.cacheKey(query, trimmed, constraints, history)
	batch, ok := r.batch.Get(key)
	if !ok {
		prompt := buildBatchPrompt(query, trimmed, constraints, history)
		content, err := r.call(ctx, prompt)
		if err != nil {
			log.Printf("batched rerank failed, %d slots falling back: %v", len(slots), err)
			return results
		}
		batch, err = parseBatchDecision(content)
		if err != nil {
			log.Printf("batched rerank response unusable, %d slots falling back: %v", len(slots), err)
			return results
		}
		r.batch.Set(key, batch, r.cfg.CacheTTL)
	}

	bySlot := make(map[string]Decision, len(batch.Selections))
	for _, sel := range batch.Selections {
		bySlot[sel.SlotID] = sel.Decision
	}
	for _, slot := range trimmed {
		if decision, found := bySlot[slot.SlotID]; found {
			results[slot.SlotID] = resolve(decision, slot)
		}
	}
	return results
}

func (r *Reranker) trimToTopK(slot Slot) Slot {
	if len(slot.Candidates) > r.cfg.TopK {
		slot.Candidates = slot.Candidates[:r.cfg.TopK]
	}
	return slot
}

func (r *Reranker) call(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	resp, err := r.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// resolve validates a decision against the slot's candidate set: selected id
// first, then backup id, then the deterministic fallback.
func resolve(decision Decision, slot Slot) Result {
	valid := make(map[string]struct{}, len(slot.Candidates))
	for _, c := range slot.Candidates {
		valid[c.ID] = struct{}{}
	}

	if _, ok := valid[decision.SelectedID]; ok {
		return Result{ChosenID: decision.SelectedID, Reasons: decision.Reasons}
	}
	if _, ok := valid[decision.BackupID]; ok {
		return Result{ChosenID: decision.BackupID, Reasons: decision.Reasons}
	}
	return Result{ChosenID: slot.FallbackID}
}

// cacheKey hashes the canonical JSON of everything that shaped the request.
func (r *Reranker) cacheKey(query string, slots []Slot, constraints Constraints, history History) string {
	type slotKey struct {
		SlotID       string   `json:"slot_id"`
		CandidateIDs []string `json:"candidate_ids"`
	}
	keySlots := make([]slotKey, 0, len(slots))
	for _, slot := range slots {
		ids := make([]string, 0, len(slot.Candidates))
		for _, c := range slot.Candidates {
			ids = append(ids, c.ID)
		}
		keySlots = append(keySlots, slotKey{SlotID: slot.SlotID, CandidateIDs: ids})
	}

	blob, err := json.Marshal(struct {
		Query       string      `json:"query"`
		Slots       []slotKey   `json:"slots"`
		Constraints Constraints `json:"constraints"`
		History     History     `json:"history"`
	}{query, keySlots, constraints, history})
	if err != nil {
		return fmt.Sprintf("unkeyed:%s", query)
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}

// parseDecision decodes a remote response leniently: wrong-typed fields are
// dropped rather than failing the whole decision.
func parseDecision(content string) (Decision, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(extractJSON(content)), &raw); err != nil {
		return Decision{}, fmt.Errorf("decoding decision: %w", err)
	}
	return decisionFromRaw(raw), nil
}

func parseBatchDecision(content string) (BatchDecision, error) {
	var envelope struct {
		Selections []map[string]json.RawMessage `json:"selections"`
	}
	if err := json.Unmarshal([]byte(extractJSON(content)), &envelope); err != nil {
		return BatchDecision{}, fmt.Errorf("decoding batch decision: %w", err)
	}

	var out BatchDecision
	for _, raw := range envelope.Selections {
		sel := SlotSelection{Decision: decisionFromRaw(raw)}
		if id, ok := rawString(raw["slot_id"]); ok {
			sel.SlotID = id
		}
		out.Selections = append(out.Selections, sel)
	}
	return out, nil
}

func decisionFromRaw(raw map[string]json.RawMessage) Decision {
	var d Decision
	if s, ok := rawString(raw["selected_id"]); ok {
		d.SelectedID = s
	}
	if s, ok := rawString(raw["backup_id"]); ok {
		d.BackupID = s
	}
	if data, ok := raw["confidence"]; ok {
		json.Unmarshal(data, &d.Confidence)
	}
	if data, ok := raw["reasons"]; ok {
		var items []json.RawMessage
		if json.Unmarshal(data, &items) == nil {
			for _, item := range items {
				if len(d.Reasons) == maxReasons {
					break
				}
				if s, ok := rawString(item); ok && strings.TrimSpace(s) != "" {
					d.Reasons = append(d.Reasons, s)
				}
			}
		}
	}
	return d
}

func rawString(data json.RawMessage) (string, bool) {
	if data == nil {
		return "", false
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", false
	}
	return s, true
}

// extractJSON trims markdown fences and prose around the response object.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if start := strings.Index(content, "{"); start >= 0 {
		if end := strings.LastIndex(content, "}"); end > start {
			return content[start : end+1]
		}
	}
	return content
}
