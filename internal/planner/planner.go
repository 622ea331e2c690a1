// Package planner assembles multi-day meal schedules. Selection is greedy
// per slot: hard-filtered candidates are ranked by deterministic score minus
// macro penalty, an optional LLM reranker may override the winner within the
// top-K, and cross-slot state feeds diversity and macro feedback into later
// slots.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"meal-scheduler/internal/query"
	"meal-scheduler/internal/recipe"
	"meal-scheduler/internal/rerank"
	"meal-scheduler/internal/scoring"
	"meal-scheduler/internal/source"
)

// CandidateProvider supplies hard-filtered recipe candidates.
type CandidateProvider interface {
	GetCandidates(ctx context.Context, filters source.Filters, allowed []string) ([]recipe.Recipe, error)
}

// SlotReranker decides slots through a remote backend. Implemented by
// rerank.Reranker; a nil value disables the feature.
type SlotReranker interface {
	Enabled() bool
	Mode() rerank.Mode
	Rerank(ctx context.Context, query string, slot rerank.Slot, constraints rerank.Constraints, history rerank.History) rerank.Result
	RerankBatch(ctx context.Context, query string, slots []rerank.Slot, constraints rerank.Constraints, history rerank.History) map[string]rerank.Result
}

// PlanStore persists generated plans. Implemented by Repository.
type PlanStore interface {
	Save(ctx context.Context, planID string, rawQuery string, planData []byte) error
}

// Planner generates meal plans.
type Planner struct {
	parser   *query.Parser
	sources  CandidateProvider
	reranker SlotReranker
	store    PlanStore

	now   func() time.Time
	newID func() string
}

// New creates a Planner. reranker and store may be nil.
func New(parser *query.Parser, sources CandidateProvider, reranker SlotReranker, store PlanStore) *Planner {
	return &Planner{
		parser:   parser,
		sources:  sources,
		reranker: reranker,
		store:    store,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// slotRef is one (day, meal category) position.
type slotRef struct {
	day      int
	mealType string
}

func (s slotRef) id() string {
	return fmt.Sprintf("day%d-%s", s.day, s.mealType)
}

// slotOutcome is the deterministic result of working one slot: the ranked
// pool, the winner, and any degradations recorded on the way.
type slotOutcome struct {
	ref          slotRef
	pick         *recipe.Recipe
	ranked       []recipe.Recipe
	scores       map[string]float64
	fallbackNote string
	warning      string
}

// GeneratePlan parses rawQuery and assembles the full schedule. It fails
// only on diet conflicts and on total candidate-source failure; every other
// problem degrades into warnings or fallbacks inside the plan.
func (p *Planner) GeneratePlan(ctx context.Context, rawQuery string) (*MealPlanResponse, error) {
	parsed := p.parser.Parse(ctx, rawQuery)
	if err := query.ValidateConflicts(parsed); err != nil {
		return nil, err
	}

	mealTypes := []string{"breakfast", "lunch", "dinner"}
	if parsed.MealsPerDay > 3 {
		mealTypes = append(mealTypes, "snack")
	}

	constraints := rerank.Constraints{Diets: parsed.Diets, Exclude: parsed.Exclude}
	if threshold, ok := scoring.QuickThreshold(parsed.Preferences); ok {
		constraints.MaxReadyMinutes = threshold
	}

	state := newSelectionState()
	builder := &planBuilder{parsed: parsed, startDate: p.now()}

	batched := p.reranker != nil && p.reranker.Enabled() && p.reranker.Mode() != rerank.ModePerMeal
	var err error
	if batched {
		err = p.generateBatched(ctx, rawQuery, parsed, mealTypes, constraints, state, builder)
	} else {
		err = p.generatePerMeal(ctx, rawQuery, parsed, mealTypes, constraints, state, builder)
	}
	if err != nil {
		return nil, err
	}

	resp := builder.response(p.newID(), p.now())
	p.persist(ctx, rawQuery, resp)
	return resp, nil
}

// generatePerMeal commits each slot as soon as it is decided, reranking
// (when enabled) one slot at a time.
func (p *Planner) generatePerMeal(ctx context.Context, rawQuery string, parsed query.ParsedQuery, mealTypes []string, constraints rerank.Constraints, state *selectionState, builder *planBuilder) error {
	for day := 1; day <= parsed.Days; day++ {
		for _, mealType := range mealTypes {
			outcome, err := p.selectSlot(ctx, state, parsed, slotRef{day, mealType})
			if err != nil {
				return err
			}
			builder.note(outcome)
			if outcome.pick == nil {
				continue
			}

			pick, reasons := *outcome.pick, []string(nil)
			if p.reranker != nil && p.reranker.Enabled() {
				result := p.reranker.Rerank(ctx, rawQuery, outcome.rerankSlot(), constraints, state.history)
				if chosen := findByID(outcome.ranked, result.ChosenID); chosen != nil {
					pick, reasons = *chosen, result.Reasons
				}
			}

			state.commit(pick)
			builder.addMeal(day, mealType, pick, reasons)
		}
		state.endDay()
	}
	return nil
}

// generateBatched defers commits across a scope (one day or the whole plan),
// decides the scope with one remote call, then replays the slots against the
// real state with the remote choices applied.
func (p *Planner) generateBatched(ctx context.Context, rawQuery string, parsed query.ParsedQuery, mealTypes []string, constraints rerank.Constraints, state *selectionState, builder *planBuilder) error {
	var scopes [][]slotRef
	if p.reranker.Mode() == rerank.ModePerPlan {
		var all []slotRef
		for day := 1; day <= parsed.Days; day++ {
			for _, mealType := range mealTypes {
				all = append(all, slotRef{day, mealType})
			}
		}
		scopes = [][]slotRef{all}
	} else {
		for day := 1; day <= parsed.Days; day++ {
			var dayScope []slotRef
			for _, mealType := range mealTypes {
				dayScope = append(dayScope, slotRef{day, mealType})
			}
			scopes = append(scopes, dayScope)
		}
	}

	for _, scope := range scopes {
		// Provisional pass on a clone: deterministic winners only.
		shadow := state.clone()
		shadowDay := scope[0].day
		var slots []rerank.Slot
		historySnapshot := state.history
		for _, ref := range scope {
			if ref.day != shadowDay {
				shadow.endDay()
				shadowDay = ref.day
			}
			outcome, err := p.selectSlot(ctx, shadow, parsed, ref)
			if err != nil {
				return err
			}
			if outcome.pick != nil {
				shadow.commit(*outcome.pick)
				slots = append(slots, outcome.rerankSlot())
			}
		}

		results := p.reranker.RerankBatch(ctx, rawQuery, slots, constraints, historySnapshot)

		// Replay against the real state, forcing remote choices where they
		// are still available.
		currentDay := scope[0].day
		for _, ref := range scope {
			if ref.day != currentDay {
				state.endDay()
				currentDay = ref.day
			}
			outcome, err := p.selectSlot(ctx, state, parsed, ref)
			if err != nil {
				return err
			}
			builder.note(outcome)
			if outcome.pick == nil {
				continue
			}

			pick, reasons := *outcome.pick, []string(nil)
			if result, ok := results[ref.id()]; ok {
				if chosen := findByID(outcome.ranked, result.ChosenID); chosen != nil {
					pick, reasons = *chosen, result.Reasons
				}
			}
			state.commit(pick)
			builder.addMeal(ref.day, ref.mealType, pick, reasons)
		}
		state.endDay()
	}
	return nil
}

// selectSlot runs the deterministic part of one slot: fetch, time filter,
// fallback tiers, rank. It does not commit.
func (p *Planner) selectSlot(ctx context.Context, state *selectionState, parsed query.ParsedQuery, ref slotRef) (slotOutcome, error) {
	outcome := slotOutcome{ref: ref}

	candidates, err := p.sources.GetCandidates(ctx, source.Filters{
		Diets:    parsed.Diets,
		Exclude:  parsed.Exclude,
		MealType: ref.mealType,
	}, nil)
	if err != nil {
		return outcome, fmt.Errorf("fetching candidates for %s: %w", ref.id(), err)
	}

	// Soft time limit: drop too-slow recipes, but relax rather than empty
	// the slot.
	if threshold, ok := scoring.QuickThreshold(parsed.Preferences); ok {
		var quick []recipe.Recipe
		for _, r := range candidates {
			if r.ReadyInMinutes <= threshold {
				quick = append(quick, r)
			}
		}
		switch {
		case len(quick) > 0:
			candidates = quick
		case len(candidates) > 0:
			outcome.warning = fmt.Sprintf("time limit of %d minutes relaxed for %s", threshold, ref.id())
		}
	}

	// Fallback tiers: never-used first, then anything outside the last two
	// days, then the full filtered set.
	pool := excludeIDs(candidates, state.usedGlobal)
	if len(pool) == 0 {
		pool = excludeIDs(candidates, state.recentIDs())
		if len(pool) > 0 {
			outcome.fallbackNote = fmt.Sprintf("%s: reused a recipe from an earlier day", ref.id())
		} else if len(candidates) > 0 {
			pool = candidates
			outcome.fallbackNote = fmt.Sprintf("%s: reused a recent recipe", ref.id())
		}
	}

	if len(pool) == 0 {
		outcome.warning = fmt.Sprintf("no candidates for %s", ref.id())
		return outcome, nil
	}

	outcome.scores = make(map[string]float64, len(pool))
	scoringCtx := state.scoringContext()
	for _, r := range pool {
		outcome.scores[r.ID] = scoring.Score(r, parsed.Preferences, scoringCtx) -
			scoring.MacroPenalty(state.dayMacros, r.Nutrition)
	}

	outcome.ranked = append([]recipe.Recipe(nil), pool...)
	sort.Slice(outcome.ranked, func(i, j int) bool {
		a, b := outcome.ranked[i], outcome.ranked[j]
		if outcome.scores[a.ID] != outcome.scores[b.ID] {
			return outcome.scores[a.ID] > outcome.scores[b.ID]
		}
		return a.ID < b.ID
	})
	outcome.pick = &outcome.ranked[0]
	return outcome, nil
}

func (o slotOutcome) rerankSlot() rerank.Slot {
	return rerank.Slot{
		SlotID:     o.ref.id(),
		MealType:   o.ref.mealType,
		FallbackID: o.pick.ID,
		Candidates: o.ranked,
		Scores:     o.scores,
	}
}

func (p *Planner) persist(ctx context.Context, rawQuery string, resp *MealPlanResponse) {
	if p.store == nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		log.Printf("failed to encode plan %s: %v", resp.MealPlanID, err)
		return
	}
	if err := p.store.Save(ctx, resp.MealPlanID, rawQuery, data); err != nil {
		log.Printf("failed to persist plan %s: %v", resp.MealPlanID, err)
	}
}

func excludeIDs(candidates []recipe.Recipe, used map[string]struct{}) []recipe.Recipe {
	var out []recipe.Recipe
	for _, r := range candidates {
		if _, ok := used[r.ID]; !ok {
			out = append(out, r)
		}
	}
	return out
}

func findByID(candidates []recipe.Recipe, id string) *recipe.Recipe {
	if id == "" {
		return nil
	}
	for i := range candidates {
		if candidates[i].ID == id {
			return &candidates[i]
		}
	}
	return nil
}
