package nutrition

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultUSDABaseURL is the USDA FoodData Central search endpoint.
const DefaultUSDABaseURL = "https://api.nal.usda.gov/fdc/v1/foods/search"

// preferredDataTypes orders USDA records by reliability for generic
// ingredient lookups.
var preferredDataTypes = []string{"Foundation", "SR Legacy", "Survey (FNDDS)", "Branded"}

// Nutrients holds macro values per 100 grams of an ingredient.
type Nutrients struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Lookup resolves an ingredient name to its macro profile per 100g.
type Lookup interface {
	NutrientsPer100g(ctx context.Context, ingredient string) (*Nutrients, error)
}

// USDAClient queries FoodData Central with a persistent JSON file cache, so
// repeated plans resolve the same ingredients without network calls.
type USDAClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	mu        sync.Mutex
	cache     map[string]Nutrients
	cachePath string
}

// NewUSDAClient creates a client and loads any existing cache file. The
// cache file is optional; a missing or unreadable one starts empty.
func NewUSDAClient(apiKey, cachePath string) (*USDAClient, error) {
	c := &USDAClient{
		apiKey:     apiKey,
		baseURL:    DefaultUSDABaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      make(map[string]Nutrients),
		cachePath:  cachePath,
	}

	if cachePath == "" {
		return c, nil
	}
	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	data, err := os.ReadFile(cachePath)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("failed to read cache file %s: %w", cachePath, err)
	}
	if err := json.Unmarshal(data, &c.cache); err != nil {
		log.Printf("discarding unreadable USDA cache %s: %v", cachePath, err)
		c.cache = make(map[string]Nutrients)
	}
	return c, nil
}

// NutrientsPer100g returns the macro profile of the best-matching USDA food,
// or nil when nothing usable is found.
func (c *USDAClient) NutrientsPer100g(ctx context.Context, ingredient string) (*Nutrients, error) {
	if ingredient == "" || c.apiKey == "" {
		return nil, nil
	}

	key := strings.ToLower(ingredient)
	c.mu.Lock()
	if cached, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return &cached, nil
	}
	c.mu.Unlock()

	food, err := c.searchFood(ctx, ingredient)
	if err != nil {
		return nil, err
	}
	if food == nil {
		return nil, nil
	}

	nutrients := extractNutrients(food.FoodNutrients)
	if nutrients == nil {
		return nil, nil
	}

	c.mu.Lock()
	c.cache[key] = *nutrients
	c.mu.Unlock()
	c.saveCache()
	return nutrients, nil
}

type usdaFood struct {
	FdcID         int    `json:"fdcId"`
	DataType      string `json:"dataType"`
	FoodNutrients []struct {
		NutrientName string  `json:"nutrientName"`
		Value        float64 `json:"value"`
		UnitName     string  `json:"unitName"`
	} `json:"foodNutrients"`
}

func (c *USDAClient) searchFood(ctx context.Context, ingredient string) (*usdaFood, error) {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("query", ingredient)
	params.Set("pageSize", "5")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("usda api error: status %d", resp.StatusCode)
	}

	var payload struct {
		Foods []usdaFood `json:"foods"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(payload.Foods) == 0 {
		return nil, nil
	}

	best := &payload.Foods[0]
	bestRank := dataTypeRank(best.DataType)
	for i := range payload.Foods[1:] {
		food := &payload.Foods[i+1]
		if rank := dataTypeRank(food.DataType); rank < bestRank {
			best, bestRank = food, rank
		}
	}
	return best, nil
}

func dataTypeRank(dataType string) int {
	for i, t := range preferredDataTypes {
		if t == dataType {
			return i
		}
	}
	return len(preferredDataTypes) + 1
}

func extractNutrients(foodNutrients []struct {
	NutrientName string  `json:"nutrientName"`
	Value        float64 `json:"value"`
	UnitName     string  `json:"unitName"`
}) *Nutrients {
	var result Nutrients
	for _, n := range foodNutrients {
		value := n.Value
		switch n.NutrientName {
		case "Energy":
			if strings.EqualFold(n.UnitName, "kj") {
				value /= 4.184
			}
			result.Calories = value
		case "Protein":
			result.Protein = value
		case "Carbohydrate, by difference":
			result.Carbs = value
		case "Total lipid (fat)":
			result.Fat = value
		}
	}
	if result == (Nutrients{}) {
		return nil
	}
	return &result
}

func (c *USDAClient) saveCache() {
	if c.cachePath == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.MarshalIndent(c.cache, "", "  ")
	if err != nil {
		log.Printf("failed to marshal usda cache: %v", err)
		return
	}
	if err := os.WriteFile(c.cachePath, data, 0o644); err != nil {
		log.Printf("failed to write usda cache %s: %v", c.cachePath, err)
	}
}
