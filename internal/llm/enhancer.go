package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"meal-scheduler/internal/query"
)

const enhancePromptTemplate = `You are a meal planning assistant. Extract structured information from the user's query.

User Query: %q

The rule-based parser produced this first pass:
%s

Analyze the query and return a JSON object with the following structure:

{
  "clarified_intent": "A clear, expanded version explaining what the user wants",
  "duration_days": <number 1-7, or 0 if not specified>,
  "diets": ["dietary restrictions like vegetarian, vegan, etc. Empty array [] if none"],
  "preferences": ["preferences like high-protein, low-carb, etc. Empty array [] if none"],
  "exclusions": ["ingredients to avoid like dairy, nuts, etc. Empty array [] if none"],
  "calories": <target calories per day as number, or 0 if not specified>,
  "meals_per_day": <number of meals (default 3), or 0 if not specified>
}

Guidelines:
- Use 0 for numeric fields when not specified
- Use empty arrays [] for list fields when nothing is mentioned
- Extract preferences from words like "healthy", "quick", "budget"

Return ONLY the JSON object.`

// QueryEnhancer clarifies ambiguous queries through a text generation
// backend. It implements query.Enhancer.
type QueryEnhancer struct {
	generator TextGenerator
}

// NewQueryEnhancer creates a QueryEnhancer over the given backend.
func NewQueryEnhancer(generator TextGenerator) *QueryEnhancer {
	return &QueryEnhancer{generator: generator}
}

// Enhance asks the backend to clarify rawQuery, giving it the rule-based
// parse as context.
func (e *QueryEnhancer) Enhance(ctx context.Context, rawQuery string, base query.ParsedQuery) (*query.Enhancement, error) {
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal base parse: %w", err)
	}

	prompt := fmt.Sprintf(enhancePromptTemplate, rawQuery, baseJSON)
	resp, err := e.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("clarification request failed: %w", err)
	}

	var enhancement query.Enhancement
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &enhancement); err != nil {
		return nil, fmt.Errorf("failed to decode clarification: %w", err)
	}
	return &enhancement, nil
}

// extractJSON trims markdown fences and surrounding prose so lenient model
// output still decodes.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if start := strings.Index(content, "{"); start >= 0 {
		if end := strings.LastIndex(content, "}"); end > start {
			return content[start : end+1]
		}
	}
	return content
}
