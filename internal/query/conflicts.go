package query

import (
	"fmt"
)

// ConflictError reports a pair of requested diets that cannot both be
// satisfied. The API layer maps it to a 409 response.
type ConflictError struct {
	Diets [2]string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting diets requested: %s, %s", e.Diets[0], e.Diets[1])
}

// Suggestion returns a human-readable hint for resolving the conflict.
func (e *ConflictError) Suggestion() string {
	return fmt.Sprintf("Please choose either %s or %s, but not both.", e.Diets[0], e.Diets[1])
}

// ValidateConflicts checks the parsed query for inherently incompatible diet
// combinations. Returns a *ConflictError for the first pair found, nil
// otherwise.
func ValidateConflicts(parsed ParsedQuery) error {
	requested := make(map[string]struct{}, len(parsed.Diets))
	for _, d := range parsed.Diets {
		requested[d] = struct{}{}
	}

	for _, pair := range IncompatibleDiets {
		_, hasFirst := requested[pair[0]]
		_, hasSecond := requested[pair[1]]
		if hasFirst && hasSecond {
			return &ConflictError{Diets: pair}
		}
	}
	return nil
}
