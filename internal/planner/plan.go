package planner

import (
	"time"

	"meal-scheduler/internal/recipe"
)

// Meal is one committed slot of a daily plan.
type Meal struct {
	MealType         string                 `json:"meal_type"`
	RecipeName       string                 `json:"recipe_name"`
	Description      string                 `json:"description"`
	Ingredients      []string               `json:"ingredients"`
	NutritionalInfo  recipe.NutritionalInfo `json:"nutritional_info"`
	PreparationTime  string                 `json:"preparation_time"`
	Instructions     []string               `json:"instructions"`
	Source           string                 `json:"source"`
	SelectionReasons []string               `json:"selection_reasons,omitempty"`
}

// DailyPlan holds the ordered meals of one day.
type DailyPlan struct {
	Day   int    `json:"day"`
	Date  string `json:"date"`
	Meals []Meal `json:"meals"`
}

// Summary aggregates plan-level stats and any degradations applied along the
// way.
type Summary struct {
	TotalMeals        int      `json:"total_meals"`
	DietaryCompliance []string `json:"dietary_compliance"`
	Preferences       []string `json:"preferences"`
	EstimatedCost     string   `json:"estimated_cost"`
	AvgPrepTime       string   `json:"avg_prep_time"`
	Warnings          []string `json:"warnings,omitempty"`
	AppliedFallbacks  []string `json:"applied_fallbacks,omitempty"`
}

// MealPlanResponse is the full generated schedule returned to API and bot
// callers.
type MealPlanResponse struct {
	MealPlanID      string      `json:"meal_plan_id"`
	DurationDays    int         `json:"duration_days"`
	GeneratedAt     time.Time   `json:"generated_at"`
	ClarifiedIntent string      `json:"clarified_intent,omitempty"`
	MealPlan        []DailyPlan `json:"meal_plan"`
	Summary         Summary     `json:"summary"`
}
