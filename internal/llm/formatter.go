package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

const formatPromptTemplate = `Reformat the following recipe instructions into a clean, step-by-step list of strings.
Remove any existing "Step 1", "Step 2" labels or numbering from the text itself.
Split complex paragraphs into logical individual steps.
Return ONLY a JSON object with a single key "steps" containing the list of strings.

Input Instructions:
%s`

// FormatInstructions asks the backend to clean up raw instruction text into
// discrete steps. Any failure returns the input unchanged; formatting is a
// nicety, never a hard dependency.
func FormatInstructions(ctx context.Context, generator TextGenerator, raw []string) []string {
	if generator == nil || len(raw) == 0 {
		return raw
	}

	prompt := fmt.Sprintf(formatPromptTemplate, strings.Join(raw, "\n"))
	resp, err := generator.GenerateContent(ctx, prompt)
	if err != nil {
		log.Printf("instruction formatting failed: %v", err)
		return raw
	}

	var payload struct {
		Steps []string `json:"steps"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &payload); err != nil || len(payload.Steps) == 0 {
		return raw
	}
	return payload.Steps
}
