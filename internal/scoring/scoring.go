// Package scoring holds the deterministic ranking functions of the planner:
// a preference scorer and a macro balance evaluator. Both are pure; given the
// same inputs they return bit-identical results.
package scoring

import (
	"regexp"
	"strconv"
	"strings"

	"meal-scheduler/internal/recipe"
)

const (
	PreferenceQuick       = "quick"
	PreferenceHighProtein = "high-protein"
	PreferenceLowCarb     = "low-carb"
	PreferenceBudget      = "budget-friendly"

	// A bare "quick" preference implies this threshold in minutes.
	defaultQuickMinutes = 20
)

var (
	nonAlphaRe   = regexp.MustCompile(`[^a-zA-Z]+`)
	underMinutes = regexp.MustCompile(`under-(\d+)-minutes`)
)

// Context carries the recency state used for diversity penalties: the
// ingredient tokens and dish types of the previous day's selections.
type Context struct {
	RecentIngredientTokens map[string]struct{}
	RecentDishTypes        map[string]struct{}
}

// Score rates a recipe against the soft preferences and recency context.
// Higher is better. Missing nutrition fields count as zero; no input can make
// it fail.
func Score(r recipe.Recipe, preferences []string, ctx Context) float64 {
	score := 0.0

	searchText := strings.ToLower(strings.Join([]string{
		r.Title,
		strings.Join(r.Ingredients, " "),
		strings.Join(r.DishTypes, " "),
		strings.Join(r.Diets, " "),
	}, " "))

	// Soft boost for each preference keyword present in the recipe text.
	for _, pref := range preferences {
		norm := strings.ToLower(strings.ReplaceAll(pref, "-", " "))
		if norm != "" && strings.Contains(searchText, norm) {
			score += 1.0
		}
	}

	// Macro alignment: reward protein, penalize carbs.
	if hasPreference(preferences, PreferenceHighProtein) {
		score += min(2.5, float64(r.Nutrition.Protein)/20.0)
	}
	if hasPreference(preferences, PreferenceLowCarb) {
		score -= min(2.5, float64(r.Nutrition.Carbs)/20.0)
	}

	// Time alignment: penalize recipes slower than the quick threshold.
	if threshold, ok := QuickThreshold(preferences); ok && r.ReadyInMinutes > 0 {
		if r.ReadyInMinutes > threshold {
			score -= float64(r.ReadyInMinutes-threshold) / 10.0
		}
	}

	// Budget alignment: fewer ingredients roughly implies lower cost.
	if hasPreference(preferences, PreferenceBudget) {
		score += max(0, 6-float64(len(r.Ingredients))) * 0.2
	}

	// Diversity penalty: ingredient overlap with the previous day.
	if len(ctx.RecentIngredientTokens) > 0 {
		tokens := IngredientTokens(r.Ingredients)
		if len(tokens) > 0 {
			overlap := 0
			for token := range tokens {
				if _, ok := ctx.RecentIngredientTokens[token]; ok {
					overlap++
				}
			}
			score -= float64(overlap) / float64(len(tokens)) * 2.0
		}
	}

	// Diversity penalty: dish types repeated day-to-day.
	if len(ctx.RecentDishTypes) > 0 {
		for _, dt := range r.DishTypes {
			if _, ok := ctx.RecentDishTypes[dt]; ok {
				score -= 0.5
			}
		}
	}

	return score
}

// IngredientTokens normalizes ingredient strings into a set of lowercase
// alphabetic tokens of length >= 3, the unit used for overlap checks.
func IngredientTokens(ingredients []string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, ingredient := range ingredients {
		for _, token := range nonAlphaRe.Split(strings.ToLower(ingredient), -1) {
			if len(token) >= 3 {
				tokens[token] = struct{}{}
			}
		}
	}
	return tokens
}

// QuickThreshold returns the quick-cook threshold in minutes if the
// preferences request one. An explicit "under-N-minutes" wins over the bare
// "quick" default.
func QuickThreshold(preferences []string) (int, bool) {
	for _, pref := range preferences {
		if m := underMinutes.FindStringSubmatch(pref); m != nil {
			minutes, _ := strconv.Atoi(m[1])
			return minutes, true
		}
	}
	if hasPreference(preferences, PreferenceQuick) {
		return defaultQuickMinutes, true
	}
	return 0, false
}

func hasPreference(preferences []string, want string) bool {
	for _, p := range preferences {
		if p == want {
			return true
		}
	}
	return false
}
