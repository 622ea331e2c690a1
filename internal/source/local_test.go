package source

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"meal-scheduler/internal/recipe"
)

const testCatalog = `[
	{
		"id": 101,
		"title": "Tofu Scramble",
		"readyInMinutes": 15,
		"servings": 2,
		"diets": ["vegan", "gluten free"],
		"dishTypes": ["breakfast"],
		"extendedIngredients": [
			{"original": "200g firm tofu"},
			{"original": "1 tbsp olive oil"}
		],
		"analyzedInstructions": [
			{"steps": [{"step": "Crumble tofu."}, {"step": "Fry until golden."}]}
		],
		"nutrition": {"nutrients": [
			{"name": "Calories", "amount": 320},
			{"name": "Protein", "amount": 22},
			{"name": "Carbohydrates", "amount": 8},
			{"name": "Fat", "amount": 20}
		]}
	},
	{
		"id": 102,
		"title": "Chicken Parmesan",
		"readyInMinutes": 45,
		"servings": 4,
		"diets": [],
		"dishTypes": ["lunch", "main course", "dinner"],
		"extendedIngredients": [
			{"original": "2 chicken breasts"},
			{"original": "100g parmesan cheese"}
		],
		"nutrition": {"nutrients": [
			{"name": "Calories", "amount": 650},
			{"name": "Protein", "amount": 48},
			{"name": "Carbohydrates", "amount": 30},
			{"name": "Fat", "amount": 35}
		]}
	},
	{
		"id": 103,
		"title": "Caprese Salad",
		"readyInMinutes": 10,
		"servings": 2,
		"diets": ["vegetarian"],
		"dishTypes": ["lunch", "salad"],
		"extendedIngredients": [
			{"original": "fresh mozzarella cheese"},
			{"original": "2 tomatoes"}
		],
		"nutrition": {"nutrients": [
			{"name": "Calories", "amount": 280},
			{"name": "Protein", "amount": 14},
			{"name": "Carbohydrates", "amount": 10},
			{"name": "Fat", "amount": 22}
		]}
	}
]`

func writeCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recipes.json")
	if err := os.WriteFile(path, []byte(testCatalog), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLocalDietFiltering(t *testing.T) {
	local := NewLocal(writeCatalog(t), "")
	ctx := context.Background()

	// Vegan recipes satisfy a vegetarian request.
	got, err := local.GetCandidates(ctx, Filters{Diets: []string{"vegetarian"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("vegetarian: expected 2 recipes, got %d", len(got))
	}

	// Hyphen normalization: "gluten-free" matches catalog "gluten free".
	got, err = local.GetCandidates(ctx, Filters{Diets: []string{"gluten-free"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Title != "Tofu Scramble" {
		t.Errorf("gluten-free: unexpected result %+v", got)
	}
}

func TestLocalExclusionsUseSynonyms(t *testing.T) {
	local := NewLocal(writeCatalog(t), "")

	// "dairy" expands to mozzarella, parmesan etc. through the synonym table.
	got, err := local.GetCandidates(context.Background(), Filters{Exclude: []string{"dairy"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Title != "Tofu Scramble" {
		titles := make([]string, len(got))
		for i, r := range got {
			titles[i] = r.Title
		}
		t.Errorf("dairy exclusion: expected only Tofu Scramble, got %v", titles)
	}
}

func TestLocalMealTypeFilter(t *testing.T) {
	local := NewLocal(writeCatalog(t), "")

	got, err := local.GetCandidates(context.Background(), Filters{MealType: "breakfast"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "101" {
		t.Errorf("breakfast filter: unexpected result %+v", got)
	}
}

func TestLocalAdaptsNutritionAndInstructions(t *testing.T) {
	local := NewLocal(writeCatalog(t), "")

	got, err := local.GetCandidates(context.Background(), Filters{MealType: "breakfast"})
	if err != nil {
		t.Fatal(err)
	}
	r := got[0]
	if r.Nutrition.Calories != 320 || r.Nutrition.Protein != 22 || r.Nutrition.Carbs != 8 || r.Nutrition.Fat != 20 {
		t.Errorf("nutrition not adapted: %+v", r.Nutrition)
	}
	if len(r.Instructions) != 2 || r.Instructions[0] != "Crumble tofu." {
		t.Errorf("instructions not adapted: %v", r.Instructions)
	}
	if r.SourceAPI != "local" {
		t.Errorf("source api: got %q", r.SourceAPI)
	}
}

func TestLocalMissingCatalogIsEmpty(t *testing.T) {
	local := NewLocal(filepath.Join(t.TempDir(), "nope.json"), "")
	got, err := local.GetCandidates(context.Background(), Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %d recipes", len(got))
	}
}

func TestLocalAppendPersistsClippedRecipe(t *testing.T) {
	dir := t.TempDir()
	clippedPath := filepath.Join(dir, "clipped.json")
	local := NewLocal(writeCatalog(t), clippedPath)

	clipped := recipe.Recipe{
		ID:             "clipped_abc",
		Title:          "Lentil Curry",
		ReadyInMinutes: 40,
		Servings:       4,
		Diets:          []string{"vegan"},
		DishTypes:      []string{"dinner"},
		Ingredients:    []string{"1 cup red lentils", "1 can coconut milk"},
		Instructions:   []string{"Simmer lentils.", "Add coconut milk."},
		Nutrition:      recipe.NutritionalInfo{Calories: 420, Protein: 18, Carbs: 55, Fat: 14},
		SourceAPI:      "clipped",
	}
	if err := local.Append(clipped); err != nil {
		t.Fatal(err)
	}

	// Visible to the same instance.
	got, err := local.GetCandidates(context.Background(), Filters{MealType: "dinner"})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, r := range got {
		if r.ID == "clipped_abc" {
			found = true
			if r.Nutrition.Calories != 420 {
				t.Errorf("clipped nutrition lost: %+v", r.Nutrition)
			}
		}
	}
	if !found {
		t.Error("clipped recipe not visible after Append")
	}

	// Persisted in the sidecar file and loaded by a fresh instance.
	data, err := os.ReadFile(clippedPath)
	if err != nil {
		t.Fatal(err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("sidecar not valid JSON: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("expected 1 clipped recipe on disk, got %d", len(raw))
	}

	reloaded := NewLocal(writeCatalog(t), clippedPath)
	got, err = reloaded.GetCandidates(context.Background(), Filters{MealType: "dinner"})
	if err != nil {
		t.Fatal(err)
	}
	found = false
	for _, r := range got {
		if r.ID == "clipped_abc" && r.SourceAPI == "clipped" {
			found = true
		}
	}
	if !found {
		t.Error("clipped recipe not reloaded from sidecar")
	}
}
