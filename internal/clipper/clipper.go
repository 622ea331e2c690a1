// Package clipper imports recipes from web pages into the local catalog.
package clipper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"meal-scheduler/internal/llm"
	"meal-scheduler/internal/nutrition"
	"meal-scheduler/internal/recipe"
	"meal-scheduler/internal/source"
)

// maxContentChars bounds the page text sent to the extraction prompt.
const maxContentChars = 12000

// Clipper fetches a recipe page, extracts structured data with an LLM and
// appends the result to the local catalog.
type Clipper struct {
	catalog    *source.Local
	textGen    llm.TextGenerator
	lookup     nutrition.Lookup
	httpClient *http.Client
}

// ExtractedRecipe represents the data structured by the model.
type ExtractedRecipe struct {
	Title       string   `json:"title"`
	Ingredients []string `json:"ingredients"`
	Steps       []string `json:"steps"`
	PrepTime    string   `json:"prep_time"`
	Servings    string   `json:"servings"`
	DishTypes   []string `json:"dish_types"`
	Diets       []string `json:"diets"`
}

// New creates a Clipper. lookup may be nil, in which case clipped recipes
// get placeholder nutrition.
func New(catalog *source.Local, textGen llm.TextGenerator, lookup nutrition.Lookup) *Clipper {
	return &Clipper{
		catalog:    catalog,
		textGen:    textGen,
		lookup:     lookup,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// ClipURL fetches the URL, extracts the recipe and saves it to the catalog.
func (c *Clipper) ClipURL(ctx context.Context, url string) (*recipe.Recipe, error) {
	if c.textGen == nil {
		return nil, fmt.Errorf("recipe clipping requires an LLM backend")
	}

	content, err := c.fetchAndCleanHTML(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch content: %w", err)
	}

	extracted, err := c.extract(ctx, content)
	if err != nil {
		return nil, err
	}
	if extracted.Title == "" || len(extracted.Ingredients) == 0 {
		return nil, fmt.Errorf("page does not look like a recipe")
	}

	r := c.toRecipe(ctx, extracted, url)
	if err := c.catalog.Append(*r); err != nil {
		return nil, fmt.Errorf("failed to save clipped recipe: %w", err)
	}
	return r, nil
}

func (c *Clipper) extract(ctx context.Context, content string) (*ExtractedRecipe, error) {
	prompt := fmt.Sprintf(`
You are a recipe extraction expert. Extract the recipe details from the following page content.
Return the result strictly as a JSON object with this structure:
{
  "title": "Recipe Title",
  "ingredients": ["item 1", "item 2", ...],
  "steps": ["Step 1 description", "Step 2 description", ...],
  "prep_time": "e.g. 30 mins",
  "servings": "e.g. 4",
  "dish_types": ["breakfast" | "lunch" | "dinner" | "snack"],
  "diets": ["vegetarian", "vegan", "gluten free", ...]
}

Page content:
%s
`, content)

	resp, err := c.textGen.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("recipe extraction failed: %w", err)
	}

	var extracted ExtractedRecipe
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &extracted); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}
	return &extracted, nil
}

func (c *Clipper) toRecipe(ctx context.Context, e *ExtractedRecipe, url string) *recipe.Recipe {
	steps := llm.FormatInstructions(ctx, c.textGen, e.Steps)

	minutes := parseMinutes(e.PrepTime)
	if minutes == 0 {
		minutes = nutrition.EstimatePrepTime(e.Ingredients, strings.Join(e.Steps, "\n"))
	}

	servings := 2
	if s, err := strconv.Atoi(strings.Fields(e.Servings + " x")[0]); err == nil && s > 0 {
		servings = s
	}

	r := &recipe.Recipe{
		ID:             "clipped_" + uuid.NewString(),
		Title:          e.Title,
		ReadyInMinutes: minutes,
		Servings:       servings,
		Diets:          e.Diets,
		DishTypes:      e.DishTypes,
		Ingredients:    e.Ingredients,
		Instructions:   steps,
		Image:          url,
		SourceAPI:      "clipped",
	}
	if len(r.DishTypes) == 0 {
		r.DishTypes = []string{"dinner"}
	}

	if info := nutrition.CalculateRecipeNutrition(ctx, e.Ingredients, c.lookup); info != nil {
		r.Nutrition = *info
	} else {
		r.Nutrition = recipe.NutritionalInfo{Calories: 500, Protein: 20, Carbs: 50, Fat: 20}
	}
	return r
}

func (c *Clipper) fetchAndCleanHTML(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	// Remove noise to save LLM tokens.
	doc.Find("script, style, nav, footer, iframe, ads, .ads, #ads").Each(func(_ int, s *goquery.Selection) {
		s.Remove()
	})

	text := strings.TrimSpace(doc.Find("body").Text())
	if len(text) > maxContentChars {
		text = text[:maxContentChars]
	}
	return text, nil
}

// parseMinutes reads a leading number out of strings like "30 mins" or
// "1 hour". Returns 0 when no duration is recognized.
func parseMinutes(s string) int {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return 0
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n <= 0 {
		return 0
	}
	if len(fields) > 1 && strings.HasPrefix(fields[1], "hour") {
		n *= 60
	}
	if n > 180 {
		n = 180
	}
	return n
}

func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
