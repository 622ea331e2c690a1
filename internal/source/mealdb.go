package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"meal-scheduler/internal/nutrition"
	"meal-scheduler/internal/recipe"
)

const (
	// DefaultMealDBBaseURL is the free tier of TheMealDB API.
	DefaultMealDBBaseURL = "https://www.themealdb.com/api/json/v1/1"

	// mealDBMaxRecipes caps how many meals a single retrieval gathers.
	mealDBMaxRecipes = 10
	// mealDBDetailLimit caps detail lookups per category listing; the free
	// API only returns summaries from filter.php.
	mealDBDetailLimit = 3
)

// mealDBCategories maps meal types to TheMealDB category names.
var mealDBCategories = map[string]string{
	"breakfast":  "Breakfast",
	"dessert":    "Dessert",
	"starter":    "Starter",
	"side":       "Side",
	"seafood":    "Seafood",
	"vegetarian": "Vegetarian",
	"vegan":      "Vegan",
}

// mealDBMeal is the detail record returned by lookup.php and search.php.
// Ingredients arrive as twenty numbered string pairs.
type mealDBMeal map[string]string

// MealDB fetches candidates from TheMealDB. The free API cannot filter by
// diet or exclusion, so it gathers a broad set and filters in memory.
type MealDB struct {
	baseURL    string
	httpClient *http.Client
}

// NewMealDB creates a TheMealDB source. An empty baseURL selects the public
// API.
func NewMealDB(baseURL string) *MealDB {
	if baseURL == "" {
		baseURL = DefaultMealDBBaseURL
	}
	return &MealDB{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

func (m *MealDB) Name() string { return "mealdb" }

// GetCandidates gathers meals by category or search, deduplicates them, and
// keeps only those satisfying the filters.
func (m *MealDB) GetCandidates(ctx context.Context, filters Filters) ([]recipe.Recipe, error) {
	var fetched []mealDBMeal

	if filters.MealType != "" {
		if cat, ok := mealDBCategories[strings.ToLower(filters.MealType)]; ok {
			listed, err := m.filterByCategory(ctx, cat)
			if err != nil {
				return nil, err
			}
			fetched = append(fetched, m.fetchDetails(ctx, listed)...)
		} else {
			found, err := m.search(ctx, filters.MealType)
			if err != nil {
				return nil, err
			}
			fetched = append(fetched, found...)
		}
	}

	// Diet categories help when the meal type alone found too little.
	if len(fetched) < mealDBMaxRecipes {
		for _, diet := range filters.Diets {
			if len(fetched) >= mealDBMaxRecipes {
				break
			}
			cat := ""
			switch {
			case strings.Contains(strings.ToLower(diet), "vegan"):
				cat = "Vegan"
			case strings.Contains(strings.ToLower(diet), "vegetarian"):
				cat = "Vegetarian"
			}
			if cat == "" {
				continue
			}
			listed, err := m.filterByCategory(ctx, cat)
			if err != nil {
				continue
			}
			fetched = append(fetched, m.fetchDetails(ctx, listed)...)
		}
	}

	// Broad searches as a last resort so a vague query still gets variety.
	if len(fetched) == 0 {
		for _, term := range []string{"a", "b"} {
			found, err := m.search(ctx, term)
			if err != nil {
				return nil, err
			}
			fetched = append(fetched, found...)
			if len(fetched) >= mealDBMaxRecipes {
				break
			}
		}
	}

	if len(fetched) > mealDBMaxRecipes {
		fetched = fetched[:mealDBMaxRecipes]
	}

	seen := make(map[string]struct{})
	var out []recipe.Recipe
	for _, meal := range fetched {
		id := meal["idMeal"]
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if !m.satisfiesConstraints(meal, filters) {
			continue
		}
		out = append(out, m.adapt(meal))
	}
	return out, nil
}

func (m *MealDB) filterByCategory(ctx context.Context, category string) ([]mealDBMeal, error) {
	return m.fetchMeals(ctx, fmt.Sprintf("%s/filter.php?c=%s", m.baseURL, url.QueryEscape(category)))
}

func (m *MealDB) search(ctx context.Context, query string) ([]mealDBMeal, error) {
	return m.fetchMeals(ctx, fmt.Sprintf("%s/search.php?s=%s", m.baseURL, url.QueryEscape(query)))
}

// fetchDetails resolves category listing summaries into full meal records.
func (m *MealDB) fetchDetails(ctx context.Context, listed []mealDBMeal) []mealDBMeal {
	var detailed []mealDBMeal
	for i, summary := range listed {
		if i >= mealDBDetailLimit {
			break
		}
		meals, err := m.fetchMeals(ctx, fmt.Sprintf("%s/lookup.php?i=%s", m.baseURL, url.QueryEscape(summary["idMeal"])))
		if err != nil {
			continue
		}
		detailed = append(detailed, meals...)
	}
	return detailed
}

func (m *MealDB) fetchMeals(ctx context.Context, rawURL string) ([]mealDBMeal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mealdb api error: status %d", resp.StatusCode)
	}

	var payload struct {
		Meals []mealDBMeal `json:"meals"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return payload.Meals, nil
}

// satisfiesConstraints applies exclusions and diet checks against the meal's
// name, category, tags and ingredients. TheMealDB tagging is loose; vegan
// and vegetarian are honored strictly, other diets pass on best effort.
func (m *MealDB) satisfiesConstraints(meal mealDBMeal, filters Filters) bool {
	var b strings.Builder
	b.WriteString(strings.ToLower(meal["strMeal"]))
	b.WriteString(" ")
	b.WriteString(strings.ToLower(meal["strCategory"]))
	b.WriteString(" ")
	b.WriteString(strings.ToLower(meal["strTags"]))
	for i := 1; i <= 20; i++ {
		ing := meal[fmt.Sprintf("strIngredient%d", i)]
		if ing != "" {
			b.WriteString(" ")
			b.WriteString(strings.ToLower(ing))
		}
	}
	text := b.String()

	for _, ex := range filters.Exclude {
		if strings.Contains(text, strings.ToLower(ex)) {
			return false
		}
	}

	vegan := strings.Contains(text, "vegan")
	vegetarian := vegan || strings.Contains(text, "vegetarian")
	for _, diet := range filters.Diets {
		switch strings.ToLower(diet) {
		case "vegan":
			if !vegan {
				return false
			}
		case "vegetarian":
			if !vegetarian {
				return false
			}
		}
	}
	return true
}

// adapt converts a meal record to the canonical model. TheMealDB carries no
// nutrition data, so a neutral placeholder profile is used; prep time is
// estimated from the instruction text.
func (m *MealDB) adapt(meal mealDBMeal) recipe.Recipe {
	var ingredients []string
	for i := 1; i <= 20; i++ {
		ing := strings.TrimSpace(meal[fmt.Sprintf("strIngredient%d", i)])
		if ing == "" {
			continue
		}
		if measure := strings.TrimSpace(meal[fmt.Sprintf("strMeasure%d", i)]); measure != "" {
			ing = fmt.Sprintf("%s (%s)", ing, measure)
		}
		ingredients = append(ingredients, ing)
	}

	var steps []string
	for _, line := range strings.FieldsFunc(meal["strInstructions"], func(r rune) bool {
		return r == '\r' || r == '\n'
	}) {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			steps = append(steps, trimmed)
		}
	}

	dishType := meal["strCategory"]
	if dishType == "" {
		dishType = "Main Course"
	}

	return recipe.Recipe{
		ID:             "mealdb_" + meal["idMeal"],
		Title:          meal["strMeal"],
		ReadyInMinutes: nutrition.EstimatePrepTime(ingredients, meal["strInstructions"]),
		Servings:       2,
		Image:          meal["strMealThumb"],
		DishTypes:      []string{dishType},
		Ingredients:    ingredients,
		Instructions:   steps,
		Nutrition: recipe.NutritionalInfo{
			Calories: 500,
			Protein:  20,
			Carbs:    50,
			Fat:      20,
		},
		SourceAPI: "mealdb",
	}
}
