package query

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestParseExtraction(t *testing.T) {
	parser := NewParser(nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		want  ParsedQuery
	}{
		{
			name:  "DurationAndDiet",
			query: "5-day vegetarian meal plan",
			want: ParsedQuery{
				Days:        5,
				Diets:       []string{"vegetarian"},
				MealsPerDay: 3,
			},
		},
		{
			name:  "WeekCapsAtSeven",
			query: "plan for next week, vegan",
			want: ParsedQuery{
				Days:        7,
				Diets:       []string{"vegan"},
				MealsPerDay: 3,
			},
		},
		{
			name:  "ExclusionsAndPreferences",
			query: "3-day high-protein plan, no dairy, under 30 minutes",
			want: ParsedQuery{
				Days:        3,
				Exclude:     []string{"dairy"},
				Preferences: []string{"high-protein", "quick", "under-30-minutes"},
				MealsPerDay: 3,
			},
		},
		{
			name:  "GlutenFreeIsDietAndExclusion",
			query: "2 day gluten-free plan",
			want: ParsedQuery{
				Days:        2,
				Diets:       []string{"gluten-free"},
				Exclude:     []string{"gluten"},
				MealsPerDay: 3,
			},
		},
		{
			name:  "SnackBumpsMealsPerDay",
			query: "4-day keto plan with snacks, 1800 calories",
			want: ParsedQuery{
				Days:        4,
				Diets:       []string{"keto"},
				Calories:    1800,
				MealsPerDay: 4,
			},
		},
		{
			name:  "Defaults",
			query: "feed me please",
			want: ParsedQuery{
				Days:        3,
				MealsPerDay: 3,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parser.Parse(ctx, tt.query)
			if got.Days != tt.want.Days {
				t.Errorf("Days: got %d, want %d", got.Days, tt.want.Days)
			}
			if !reflect.DeepEqual(got.Diets, tt.want.Diets) {
				t.Errorf("Diets: got %v, want %v", got.Diets, tt.want.Diets)
			}
			if !reflect.DeepEqual(got.Exclude, tt.want.Exclude) {
				t.Errorf("Exclude: got %v, want %v", got.Exclude, tt.want.Exclude)
			}
			if !reflect.DeepEqual(got.Preferences, tt.want.Preferences) {
				t.Errorf("Preferences: got %v, want %v", got.Preferences, tt.want.Preferences)
			}
			if got.Calories != tt.want.Calories {
				t.Errorf("Calories: got %d, want %d", got.Calories, tt.want.Calories)
			}
			if got.MealsPerDay != tt.want.MealsPerDay {
				t.Errorf("MealsPerDay: got %d, want %d", got.MealsPerDay, tt.want.MealsPerDay)
			}
		})
	}
}

type fakeEnhancer struct {
	enhancement *Enhancement
	err         error
	calls       int
}

func (f *fakeEnhancer) Enhance(_ context.Context, _ string, _ ParsedQuery) (*Enhancement, error) {
	f.calls++
	return f.enhancement, f.err
}

func TestParseAmbiguousQueryTriggersEnhancer(t *testing.T) {
	enhancer := &fakeEnhancer{
		enhancement: &Enhancement{
			ClarifiedIntent: "A 3-day balanced plan",
			Diets:           []string{"mediterranean"},
			Preferences:     []string{"healthy"},
		},
	}
	parser := NewParser(enhancer)

	got := parser.Parse(context.Background(), "something healthy")
	if enhancer.calls != 1 {
		t.Fatalf("expected 1 enhancer call, got %d", enhancer.calls)
	}
	if got.ClarifiedIntent != "A 3-day balanced plan" {
		t.Errorf("clarified intent not merged: %q", got.ClarifiedIntent)
	}
	if !reflect.DeepEqual(got.Diets, []string{"mediterranean"}) {
		t.Errorf("diets not merged: %v", got.Diets)
	}
}

func TestParseSpecificQuerySkipsEnhancer(t *testing.T) {
	enhancer := &fakeEnhancer{}
	parser := NewParser(enhancer)

	parser.Parse(context.Background(), "5-day vegan high-protein plan, no nuts")
	if enhancer.calls != 0 {
		t.Errorf("enhancer should not run for specific queries, got %d calls", enhancer.calls)
	}
}

func TestParseEnhancerFailureIsAbsorbed(t *testing.T) {
	enhancer := &fakeEnhancer{err: errors.New("backend down")}
	parser := NewParser(enhancer)

	got := parser.Parse(context.Background(), "something healthy")
	if got.Days != 3 || got.MealsPerDay != 3 {
		t.Errorf("rule-based defaults lost after enhancer failure: %+v", got)
	}
}

func TestValidateConflicts(t *testing.T) {
	tests := []struct {
		name     string
		diets    []string
		conflict bool
	}{
		{"VeganAndPescatarian", []string{"vegan", "pescatarian"}, true},
		{"VegetarianAndPaleo", []string{"paleo", "vegetarian"}, true},
		{"SingleDiet", []string{"vegan"}, false},
		{"CompatiblePair", []string{"vegetarian", "gluten-free"}, false},
		{"Empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConflicts(ParsedQuery{Diets: tt.diets})
			if tt.conflict && err == nil {
				t.Fatal("expected conflict error, got nil")
			}
			if !tt.conflict && err != nil {
				t.Fatalf("unexpected conflict: %v", err)
			}
			if err != nil {
				var conflictErr *ConflictError
				if !errors.As(err, &conflictErr) {
					t.Errorf("expected *ConflictError, got %T", err)
				}
			}
		})
	}
}
