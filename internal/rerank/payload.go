package rerank

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"meal-scheduler/internal/recipe"
)

type candidatePayload struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	KeyIngredients  []string `json:"key_ingredients"`
	MealType        string   `json:"meal_type"`
	CuisineOrTags   []string `json:"cuisine_or_tags"`
	PrepTimeMinutes int      `json:"prep_time_minutes"`
	Macros          struct {
		Calories int `json:"calories"`
		ProteinG int `json:"protein_g"`
		CarbsG   int `json:"carbs_g"`
		FatG     int `json:"fat_g"`
	} `json:"macros"`
	YourScore float64 `json:"your_score"`
}

type slotPayload struct {
	SlotID     string             `json:"slot_id"`
	MealType   string             `json:"meal_type"`
	Candidates []candidatePayload `json:"candidates"`
}

type requestPayload struct {
	Query       string        `json:"query"`
	Constraints Constraints   `json:"constraints"`
	History     History       `json:"history"`
	Slots       []slotPayload `json:"slots"`
}

func buildPayload(query string, slot Slot, constraints Constraints, history History) requestPayload {
	return requestPayload{
		Query:       query,
		Constraints: constraints,
		History:     history,
		Slots:       []slotPayload{buildSlotPayload(slot)},
	}
}

func buildSlotPayload(slot Slot) slotPayload {
	out := slotPayload{SlotID: slot.SlotID, MealType: slot.MealType}
	for _, c := range slot.Candidates {
		p := candidatePayload{
			ID:              c.ID,
			Title:           c.Title,
			KeyIngredients:  keyIngredients(c.Ingredients),
			MealType:        slot.MealType,
			CuisineOrTags:   cuisineOrTags(c),
			PrepTimeMinutes: c.ReadyInMinutes,
			YourScore:       normalizeScore(slot.Scores[c.ID], slot),
		}
		p.Macros.Calories = c.Nutrition.Calories
		p.Macros.ProteinG = c.Nutrition.Protein
		p.Macros.CarbsG = c.Nutrition.Carbs
		p.Macros.FatG = c.Nutrition.Fat
		out.Candidates = append(out.Candidates, p)
	}
	return out
}

// normalizeScore min-max scales a raw score to 0-100 across the slot's
// candidates. Identical scores map to 50 so no candidate looks preferred.
func normalizeScore(raw float64, slot Slot) float64 {
	minScore, maxScore := math.Inf(1), math.Inf(-1)
	for _, c := range slot.Candidates {
		s := slot.Scores[c.ID]
		minScore = math.Min(minScore, s)
		maxScore = math.Max(maxScore, s)
	}
	if len(slot.Candidates) == 0 || maxScore == minScore {
		return 50.0
	}
	scaled := (raw - minScore) / (maxScore - minScore) * 100.0
	return math.Round(scaled*100) / 100
}

// keyIngredients condenses ingredient lines to at most six short names,
// dropping parenthesized measures.
func keyIngredients(ingredients []string) []string {
	var out []string
	for _, item := range ingredients {
		if len(out) == maxKeyIngredients {
			break
		}
		base, _, _ := strings.Cut(item, "(")
		if base = strings.TrimSpace(base); base != "" {
			out = append(out, base)
		}
	}
	return out
}

func cuisineOrTags(c recipe.Recipe) []string {
	if len(c.DishTypes) > 0 {
		return c.DishTypes
	}
	return c.Diets
}

const promptPreamble = `You are a meal-plan reranking assistant. You must only choose from the provided candidates.
Hard constraints must be honored (dietary restrictions, exclusions, time limits, meal type).
Avoid repetition using the provided history when possible.`

func buildSinglePrompt(payload requestPayload) string {
	payloadJSON, _ := json.Marshal(payload)
	return fmt.Sprintf(`%s

INPUT_JSON:%s

Return ONLY a JSON object with this exact schema:
{
  "selected_id": "<string>",
  "backup_id": "<string|null>",
  "reasons": ["<short bullet>", "..."],
  "confidence": 0.0
}
Rules:
- selected_id MUST be one of the candidate ids.
- backup_id MUST be one of the candidate ids or null.
- reasons: max 4 items, each <= 15 words.
- No additional keys. No prose outside JSON.`, promptPreamble, payloadJSON)
}

func buildBatchPrompt(query string, slots []Slot, constraints Constraints, history History) string {
	payload := requestPayload{
		Query:       query,
		Constraints: constraints,
		History:     history,
	}
	for _, slot := range slots {
		payload.Slots = append(payload.Slots, buildSlotPayload(slot))
	}
	payloadJSON, _ := json.Marshal(payload)

	return fmt.Sprintf(`%s
Decide every slot in one response.

INPUT_JSON:%s

Return ONLY a JSON object with this exact schema:
{
  "selections": [
    {
      "slot_id": "<string>",
      "selected_id": "<string>",
      "backup_id": "<string|null>",
      "reasons": ["<short bullet>", "..."],
      "confidence": 0.0
    }
  ]
}
Rules:
- One selection per slot_id, in any order.
- selected_id MUST be one of that slot's candidate ids.
- backup_id MUST be one of that slot's candidate ids or null.
- reasons: max 4 items, each <= 15 words.
- No additional keys. No prose outside JSON.`, promptPreamble, payloadJSON)
}
