package nutrition

import (
	"context"
	"math"

	"meal-scheduler/internal/recipe"
)

// CalculateRecipeNutrition estimates a recipe's macro totals by resolving
// each ingredient through the lookup. Ingredients without a usable gram
// estimate default to 100g. Returns nil when no ingredient resolved at all,
// so callers can fall back to placeholder values.
func CalculateRecipeNutrition(ctx context.Context, ingredients []string, lookup Lookup) *recipe.NutritionalInfo {
	if len(ingredients) == 0 || lookup == nil {
		return nil
	}

	var calories, protein, carbs, fat float64
	missing := 0
	for _, item := range ingredients {
		name, grams, hasGrams := ParseIngredient(item)
		nutrients, err := lookup.NutrientsPer100g(ctx, name)
		if err != nil || nutrients == nil {
			missing++
			continue
		}
		weight := 100.0
		if hasGrams {
			weight = grams
		}
		factor := weight / 100.0
		calories += nutrients.Calories * factor
		protein += nutrients.Protein * factor
		carbs += nutrients.Carbs * factor
		fat += nutrients.Fat * factor
	}

	if missing == len(ingredients) {
		return nil
	}

	return &recipe.NutritionalInfo{
		Calories: int(math.Round(calories)),
		Protein:  int(math.Round(protein)),
		Carbs:    int(math.Round(carbs)),
		Fat:      int(math.Round(fat)),
	}
}
