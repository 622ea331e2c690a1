package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"meal-scheduler/internal/query"
	"meal-scheduler/internal/recipe"
)

// recipeID tolerates both the numeric IDs of Spoonacular exports and the
// string IDs of clipped recipes.
type recipeID string

func (id *recipeID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = recipeID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = recipeID(n.String())
	return nil
}

func (id recipeID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}

// spoonacularRecipe mirrors the subset of the Spoonacular export format the
// local catalog uses.
type spoonacularRecipe struct {
	ID                  recipeID `json:"id"`
	Title               string   `json:"title"`
	ReadyInMinutes      int      `json:"readyInMinutes"`
	Servings            int      `json:"servings"`
	Image               string   `json:"image"`
	Diets               []string `json:"diets"`
	DishTypes           []string `json:"dishTypes"`
	ExtendedIngredients []struct {
		Original string `json:"original"`
	} `json:"extendedIngredients"`
	AnalyzedInstructions []struct {
		Steps []struct {
			Step string `json:"step"`
		} `json:"steps"`
	} `json:"analyzedInstructions"`
	Nutrition struct {
		Nutrients []struct {
			Name   string  `json:"name"`
			Amount float64 `json:"amount"`
		} `json:"nutrients"`
	} `json:"nutrition"`
	SourceAPI string `json:"sourceApi,omitempty"`
}

// Local serves recipes from a Spoonacular-format JSON catalog on disk, plus
// an optional sidecar file of clipped recipes that Append grows over time.
type Local struct {
	mu          sync.Mutex
	recipes     []spoonacularRecipe
	clippedPath string
}

// NewLocal loads the catalog at catalogPath and, if clippedPath names an
// existing file, the clipped sidecar as well. A missing or malformed catalog
// is logged and treated as empty rather than failing construction.
func NewLocal(catalogPath, clippedPath string) *Local {
	l := &Local{clippedPath: clippedPath}
	l.recipes = loadCatalog(catalogPath)
	if clippedPath != "" {
		l.recipes = append(l.recipes, loadCatalog(clippedPath)...)
	}
	return l
}

func loadCatalog(path string) []spoonacularRecipe {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("reading catalog %s: %v", path, err)
		}
		return nil
	}
	var recipes []spoonacularRecipe
	if err := json.Unmarshal(data, &recipes); err != nil {
		log.Printf("decoding catalog %s: %v", path, err)
		return nil
	}
	return recipes
}

func (l *Local) Name() string { return "local" }

// GetCandidates filters the catalog by the hard constraints and adapts the
// survivors to the canonical model.
func (l *Local) GetCandidates(_ context.Context, filters Filters) ([]recipe.Recipe, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []recipe.Recipe
	for _, r := range l.recipes {
		if !matchesAllDiets(r.Diets, filters.Diets) {
			continue
		}
		if containsExcluded(r, filters.Exclude) {
			continue
		}
		if filters.MealType != "" && !matchesMealType(r.DishTypes, filters.MealType) {
			continue
		}
		out = append(out, adaptSpoonacular(r))
	}
	return out, nil
}

// Append persists a clipped recipe to the sidecar file and makes it available
// to subsequent lookups.
func (l *Local) Append(r recipe.Recipe) error {
	if l.clippedPath == "" {
		return fmt.Errorf("no clipped recipes path configured")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := toSpoonacular(r)
	clipped := append(loadCatalog(l.clippedPath), entry)

	data, err := json.MarshalIndent(clipped, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding clipped recipes: %w", err)
	}
	if err := os.WriteFile(l.clippedPath, data, 0o644); err != nil {
		return fmt.Errorf("writing clipped recipes: %w", err)
	}

	l.recipes = append(l.recipes, entry)
	return nil
}

func matchesAllDiets(recipeDiets, wanted []string) bool {
	for _, diet := range wanted {
		if !matchesDiet(recipeDiets, diet) {
			return false
		}
	}
	return true
}

// matchesDiet normalizes hyphens to spaces on both sides so "gluten-free"
// matches Spoonacular's "gluten free". Vegan recipes satisfy a vegetarian
// request.
func matchesDiet(recipeDiets []string, wanted string) bool {
	req := strings.ReplaceAll(strings.ToLower(wanted), "-", " ")
	vegan := false
	for _, d := range recipeDiets {
		norm := strings.ReplaceAll(strings.ToLower(d), "-", " ")
		if norm == req {
			return true
		}
		if norm == "vegan" {
			vegan = true
		}
	}
	return req == "vegetarian" && vegan
}

func matchesMealType(dishTypes []string, mealType string) bool {
	want := strings.ToLower(mealType)
	for _, dt := range dishTypes {
		if strings.ToLower(dt) == want {
			return true
		}
	}
	return false
}

// containsExcluded checks the title and ingredient lines against each
// exclusion and its known synonyms.
func containsExcluded(r spoonacularRecipe, exclude []string) bool {
	var b strings.Builder
	b.WriteString(strings.ToLower(r.Title))
	for _, ing := range r.ExtendedIngredients {
		b.WriteString(" ")
		b.WriteString(strings.ToLower(ing.Original))
	}
	text := b.String()

	for _, ex := range exclude {
		words := append([]string{ex}, query.IngredientSynonyms[ex]...)
		for _, w := range words {
			if strings.Contains(text, strings.ToLower(w)) {
				return true
			}
		}
	}
	return false
}

func adaptSpoonacular(r spoonacularRecipe) recipe.Recipe {
	nutrients := make(map[string]float64, len(r.Nutrition.Nutrients))
	for _, n := range r.Nutrition.Nutrients {
		nutrients[n.Name] = n.Amount
	}

	ingredients := make([]string, 0, len(r.ExtendedIngredients))
	for _, ing := range r.ExtendedIngredients {
		ingredients = append(ingredients, ing.Original)
	}

	var steps []string
	for _, section := range r.AnalyzedInstructions {
		for _, step := range section.Steps {
			if step.Step != "" {
				steps = append(steps, step.Step)
			}
		}
	}

	sourceAPI := r.SourceAPI
	if sourceAPI == "" {
		sourceAPI = "local"
	}

	return recipe.Recipe{
		ID:             string(r.ID),
		Title:          r.Title,
		ReadyInMinutes: r.ReadyInMinutes,
		Servings:       max(r.Servings, 1),
		Image:          r.Image,
		Diets:          r.Diets,
		DishTypes:      r.DishTypes,
		Ingredients:    ingredients,
		Instructions:   steps,
		Nutrition: recipe.NutritionalInfo{
			Calories: int(nutrients["Calories"]),
			Protein:  int(nutrients["Protein"]),
			Carbs:    int(nutrients["Carbohydrates"]),
			Fat:      int(nutrients["Fat"]),
		},
		SourceAPI: sourceAPI,
	}
}

func toSpoonacular(r recipe.Recipe) spoonacularRecipe {
	var out spoonacularRecipe
	out.ID = recipeID(r.ID)
	out.Title = r.Title
	out.ReadyInMinutes = r.ReadyInMinutes
	out.Servings = r.Servings
	out.Image = r.Image
	out.Diets = r.Diets
	out.DishTypes = r.DishTypes
	out.SourceAPI = r.SourceAPI

	for _, ing := range r.Ingredients {
		out.ExtendedIngredients = append(out.ExtendedIngredients, struct {
			Original string `json:"original"`
		}{Original: ing})
	}

	if len(r.Instructions) > 0 {
		section := struct {
			Steps []struct {
				Step string `json:"step"`
			} `json:"steps"`
		}{}
		for _, step := range r.Instructions {
			section.Steps = append(section.Steps, struct {
				Step string `json:"step"`
			}{Step: step})
		}
		out.AnalyzedInstructions = append(out.AnalyzedInstructions, section)
	}

	out.Nutrition.Nutrients = []struct {
		Name   string  `json:"name"`
		Amount float64 `json:"amount"`
	}{
		{Name: "Calories", Amount: float64(r.Nutrition.Calories)},
		{Name: "Protein", Amount: float64(r.Nutrition.Protein)},
		{Name: "Carbohydrates", Amount: float64(r.Nutrition.Carbs)},
		{Name: "Fat", Amount: float64(r.Nutrition.Fat)},
	}
	return out
}
