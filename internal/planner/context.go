package planner

import (
	"meal-scheduler/internal/recipe"
	"meal-scheduler/internal/rerank"
	"meal-scheduler/internal/scoring"
)

// selectionState is the mutable cross-slot state threaded through the
// selection loop. Later slots depend on what earlier slots committed.
type selectionState struct {
	usedGlobal map[string]struct{}
	usedToday  map[string]struct{}

	// Previous day's accumulators feed the diversity penalty; today's are
	// rolled forward at each day boundary.
	prevIngredientTokens  map[string]struct{}
	prevDishTypes         map[string]struct{}
	todayIngredientTokens map[string]struct{}
	todayDishTypes        map[string]struct{}

	dayMacros recipe.NutritionalInfo

	// recentDays holds the ids used in the last two completed days, oldest
	// first, for the middle fallback tier.
	recentDays []map[string]struct{}

	history rerank.History
}

func newSelectionState() *selectionState {
	return &selectionState{
		usedGlobal:            make(map[string]struct{}),
		usedToday:             make(map[string]struct{}),
		prevIngredientTokens:  make(map[string]struct{}),
		prevDishTypes:         make(map[string]struct{}),
		todayIngredientTokens: make(map[string]struct{}),
		todayDishTypes:        make(map[string]struct{}),
	}
}

func (s *selectionState) scoringContext() scoring.Context {
	return scoring.Context{
		RecentIngredientTokens: s.prevIngredientTokens,
		RecentDishTypes:        s.prevDishTypes,
	}
}

// commit records a selected recipe in every accumulator.
func (s *selectionState) commit(r recipe.Recipe) {
	s.usedGlobal[r.ID] = struct{}{}
	s.usedToday[r.ID] = struct{}{}

	for token := range scoring.IngredientTokens(r.Ingredients) {
		s.todayIngredientTokens[token] = struct{}{}
	}
	for _, dt := range r.DishTypes {
		s.todayDishTypes[dt] = struct{}{}
	}
	s.dayMacros = s.dayMacros.Add(r.Nutrition)

	s.history.RecentTitles = append(s.history.RecentTitles, r.Title)
	for _, ing := range r.Ingredients {
		s.history.RecentIngredients = append(s.history.RecentIngredients, ing)
	}
	for _, dt := range r.DishTypes {
		if !contains(s.history.RecentCuisines, dt) {
			s.history.RecentCuisines = append(s.history.RecentCuisines, dt)
		}
	}
}

// clone deep-copies the state so a batched rerank scope can run a
// provisional pass without touching the real accumulators.
func (s *selectionState) clone() *selectionState {
	out := &selectionState{
		usedGlobal:            copySet(s.usedGlobal),
		usedToday:             copySet(s.usedToday),
		prevIngredientTokens:  copySet(s.prevIngredientTokens),
		prevDishTypes:         copySet(s.prevDishTypes),
		todayIngredientTokens: copySet(s.todayIngredientTokens),
		todayDishTypes:        copySet(s.todayDishTypes),
		dayMacros:             s.dayMacros,
		history: rerank.History{
			RecentTitles:      append([]string(nil), s.history.RecentTitles...),
			RecentIngredients: append([]string(nil), s.history.RecentIngredients...),
			RecentCuisines:    append([]string(nil), s.history.RecentCuisines...),
		},
	}
	for _, day := range s.recentDays {
		out.recentDays = append(out.recentDays, copySet(day))
	}
	return out
}

func copySet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}

// endDay rolls today's accumulators into previous-day context and trims the
// recent-day history to the last two days.
func (s *selectionState) endDay() {
	s.prevIngredientTokens = s.todayIngredientTokens
	s.prevDishTypes = s.todayDishTypes
	s.todayIngredientTokens = make(map[string]struct{})
	s.todayDishTypes = make(map[string]struct{})

	s.recentDays = append(s.recentDays, s.usedToday)
	if len(s.recentDays) > 2 {
		s.recentDays = s.recentDays[len(s.recentDays)-2:]
	}
	s.usedToday = make(map[string]struct{})
	s.dayMacros = recipe.NutritionalInfo{}
}

// recentIDs merges today's used ids with the last two days'.
func (s *selectionState) recentIDs() map[string]struct{} {
	out := make(map[string]struct{}, len(s.usedToday))
	for id := range s.usedToday {
		out[id] = struct{}{}
	}
	for _, day := range s.recentDays {
		for id := range day {
			out[id] = struct{}{}
		}
	}
	return out
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
