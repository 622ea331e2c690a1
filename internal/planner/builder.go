package planner

import (
	"fmt"
	"sort"
	"time"

	"meal-scheduler/internal/query"
	"meal-scheduler/internal/recipe"
)

// planBuilder accumulates committed meals and degradation notes into the
// response shape.
type planBuilder struct {
	parsed    query.ParsedQuery
	startDate time.Time

	days          map[int]*DailyPlan
	totalMeals    int
	totalPrepMins int
	warnings      []string
	fallbacks     []string
}

func (b *planBuilder) day(dayNum int) *DailyPlan {
	if b.days == nil {
		b.days = make(map[int]*DailyPlan)
	}
	if d, ok := b.days[dayNum]; ok {
		return d
	}
	d := &DailyPlan{
		Day:  dayNum,
		Date: b.startDate.AddDate(0, 0, dayNum).Format("2006-01-02"),
	}
	b.days[dayNum] = d
	return d
}

func (b *planBuilder) note(outcome slotOutcome) {
	if outcome.warning != "" {
		b.warnings = append(b.warnings, outcome.warning)
	}
	if outcome.fallbackNote != "" {
		b.fallbacks = append(b.fallbacks, outcome.fallbackNote)
	}
}

func (b *planBuilder) addMeal(dayNum int, mealType string, r recipe.Recipe, reasons []string) {
	d := b.day(dayNum)
	d.Meals = append(d.Meals, Meal{
		MealType:         mealType,
		RecipeName:       r.Title,
		Description:      fmt.Sprintf("A delicious %s.", mealType),
		Ingredients:      r.Ingredients,
		NutritionalInfo:  r.Nutrition,
		PreparationTime:  fmt.Sprintf("%d mins", r.ReadyInMinutes),
		Instructions:     r.Instructions,
		Source:           r.SourceAPI,
		SelectionReasons: reasons,
	})
	b.totalMeals++
	b.totalPrepMins += r.ReadyInMinutes
}

func (b *planBuilder) response(planID string, generatedAt time.Time) *MealPlanResponse {
	plan := make([]DailyPlan, 0, b.parsed.Days)
	for dayNum := 1; dayNum <= b.parsed.Days; dayNum++ {
		plan = append(plan, *b.day(dayNum))
	}

	avgPrep := "0 mins"
	if b.totalMeals > 0 {
		avgPrep = fmt.Sprintf("%d mins", b.totalPrepMins/b.totalMeals)
	}

	compliance := make([]string, 0, len(b.parsed.Diets)+len(b.parsed.Exclude))
	seen := make(map[string]struct{})
	for _, v := range append(append([]string(nil), b.parsed.Diets...), b.parsed.Exclude...) {
		if _, dup := seen[v]; !dup {
			seen[v] = struct{}{}
			compliance = append(compliance, v)
		}
	}
	sort.Strings(compliance)

	return &MealPlanResponse{
		MealPlanID:      planID,
		DurationDays:    b.parsed.Days,
		GeneratedAt:     generatedAt,
		ClarifiedIntent: b.parsed.ClarifiedIntent,
		MealPlan:        plan,
		Summary: Summary{
			TotalMeals:        b.totalMeals,
			DietaryCompliance: compliance,
			Preferences:       b.parsed.Preferences,
			EstimatedCost:     fmt.Sprintf("$%d-%d", b.totalMeals*3, b.totalMeals*5),
			AvgPrepTime:       avgPrep,
			Warnings:          b.warnings,
			AppliedFallbacks:  b.fallbacks,
		},
	}
}
