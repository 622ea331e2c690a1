package query

import (
	"context"
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ParsedQuery is the structured form of a natural-language meal plan request.
// It is created once per request and read-only afterwards.
type ParsedQuery struct {
	Days            int      `json:"days"`
	Diets           []string `json:"diets"`
	Calories        int      `json:"calories,omitempty"`
	Exclude         []string `json:"exclude"`
	Preferences     []string `json:"preferences"`
	MealsPerDay     int      `json:"meals_per_day"`
	ClarifiedIntent string   `json:"clarified_intent,omitempty"`
}

// Enhancement is what a remote clarification backend may add to a rule-based
// parse of an ambiguous query.
type Enhancement struct {
	ClarifiedIntent string   `json:"clarified_intent"`
	DurationDays    int      `json:"duration_days"`
	Diets           []string `json:"diets"`
	Preferences     []string `json:"preferences"`
	Exclusions      []string `json:"exclusions"`
	Calories        int      `json:"calories"`
	MealsPerDay     int      `json:"meals_per_day"`
}

// Enhancer clarifies ambiguous queries. A nil Enhancer (or one returning nil)
// means the feature is disabled; parsing proceeds on rule-based extraction
// alone.
type Enhancer interface {
	Enhance(ctx context.Context, rawQuery string, base ParsedQuery) (*Enhancement, error)
}

const (
	defaultDays        = 3
	maxDays            = 7
	defaultMealsPerDay = 3
)

var (
	durationRe   = regexp.MustCompile(`(\d+)\s*-?\s*day`)
	exclusionRe  = regexp.MustCompile(`(?:no|exclude|without)\s+([a-z]+)`)
	freeRe       = regexp.MustCompile(`([a-z]+)-free`)
	caloriesRe   = regexp.MustCompile(`(\d+)\s*(?:cal|kcal|calories)`)
	highProtRe   = regexp.MustCompile(`\bhigh[- ]protein\b`)
	lowCarbRe    = regexp.MustCompile(`\blow[- ]carb\b`)
	budgetRe     = regexp.MustCompile(`\bbudget(-friendly)?\b`)
	quickRe      = regexp.MustCompile(`\bquick\b|\bfast\b`)
	underMinsRe  = regexp.MustCompile(`under\s+(\d+)\s*(?:minutes|mins|min)\b`)
	underPrefRe  = regexp.MustCompile(`under-(\d+)-minutes`)
	exclFreeTags = []string{"gluten", "dairy", "nut", "sugar"}
)

// Parser turns free text into a ParsedQuery using keyword and regex
// extraction, optionally merging in a remote clarification for ambiguous
// queries.
type Parser struct {
	enhancer Enhancer
}

// NewParser creates a Parser. enhancer may be nil.
func NewParser(enhancer Enhancer) *Parser {
	return &Parser{enhancer: enhancer}
}

// Parse extracts the structured query. It never fails: every field has a
// default and clarification errors are absorbed.
func (p *Parser) Parse(ctx context.Context, rawQuery string) ParsedQuery {
	text := strings.ToLower(rawQuery)

	parsed := ParsedQuery{
		Days:        extractDuration(text),
		Diets:       extractDiets(text),
		Exclude:     extractExclusions(text),
		Calories:    extractCalories(text),
		MealsPerDay: extractMealsPerDay(text),
		Preferences: extractPreferences(text),
	}

	if p.enhancer != nil && isAmbiguous(text, parsed) {
		enhanced, err := p.enhancer.Enhance(ctx, rawQuery, parsed)
		if err != nil {
			log.Printf("Query clarification failed, using rule-based parse: %v", err)
		} else if enhanced != nil {
			parsed = merge(parsed, *enhanced)
		}
	}

	return parsed
}

func merge(base ParsedQuery, e Enhancement) ParsedQuery {
	if e.DurationDays > 0 {
		base.Days = clampDays(e.DurationDays)
	}
	base.Diets = mergeUnique(base.Diets, e.Diets)
	base.Exclude = mergeUnique(base.Exclude, e.Exclusions)
	base.Preferences = mergeUnique(base.Preferences, e.Preferences)
	if e.Calories > 0 {
		base.Calories = e.Calories
	}
	if e.MealsPerDay > 0 {
		base.MealsPerDay = e.MealsPerDay
	}
	base.ClarifiedIntent = e.ClarifiedIntent
	return base
}

// mergeUnique appends extras to base, preserving order and dropping
// duplicates.
func mergeUnique(base, extra []string) []string {
	var merged []string
	seen := make(map[string]struct{})
	for _, v := range append(append([]string{}, base...), extra...) {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		merged = append(merged, v)
	}
	return merged
}

func clampDays(days int) int {
	if days < 1 {
		return 1
	}
	if days > maxDays {
		return maxDays
	}
	return days
}

func extractDuration(text string) int {
	if strings.Contains(text, "week") {
		return maxDays
	}
	if m := durationRe.FindStringSubmatch(text); m != nil {
		val, _ := strconv.Atoi(m[1])
		return clampDays(val)
	}
	return defaultDays
}

func extractDiets(text string) []string {
	var found []string
	for diet := range DietDefinitions {
		if strings.Contains(text, diet) {
			found = append(found, diet)
		}
	}
	sort.Strings(found)
	return found
}

func extractExclusions(text string) []string {
	seen := make(map[string]struct{})
	for _, m := range exclusionRe.FindAllStringSubmatch(text, -1) {
		seen[m[1]] = struct{}{}
	}
	for _, m := range freeRe.FindAllStringSubmatch(text, -1) {
		for _, tag := range exclFreeTags {
			if m[1] == tag {
				seen[tag] = struct{}{}
			}
		}
	}
	exclusions := make([]string, 0, len(seen))
	for ex := range seen {
		exclusions = append(exclusions, ex)
	}
	sort.Strings(exclusions)
	return exclusions
}

func extractCalories(text string) int {
	if m := caloriesRe.FindStringSubmatch(text); m != nil {
		val, _ := strconv.Atoi(m[1])
		return val
	}
	return 0
}

func extractMealsPerDay(text string) int {
	count := defaultMealsPerDay
	if strings.Contains(text, "snack") {
		count++
	}
	return count
}

func extractPreferences(text string) []string {
	var prefs []string
	add := func(p string) {
		for _, existing := range prefs {
			if existing == p {
				return
			}
		}
		prefs = append(prefs, p)
	}

	if highProtRe.MatchString(text) {
		add("high-protein")
	}
	if lowCarbRe.MatchString(text) {
		add("low-carb")
	}
	if budgetRe.MatchString(text) {
		add("budget-friendly")
	}
	if quickRe.MatchString(text) {
		add("quick")
	}
	if m := underMinsRe.FindStringSubmatch(text); m != nil {
		add("quick")
		add("under-" + m[1] + "-minutes")
	}
	if strings.Contains(text, "healthy") {
		add("healthy")
	}
	return prefs
}

// isAmbiguous reports whether the query lacks concrete constraints and is
// worth a remote clarification round-trip.
func isAmbiguous(text string, parsed ParsedQuery) bool {
	vagueTerms := []string{"healthy", "next week"}

	vagueOnly := 0
	for _, p := range parsed.Preferences {
		if p == "healthy" {
			vagueOnly++
		}
	}
	hasSpecifics := len(parsed.Diets) > 0 || len(parsed.Exclude) > 0 || parsed.Calories > 0 ||
		(len(parsed.Preferences) > 0 && vagueOnly < len(parsed.Preferences))

	if len(parsed.Diets) == 0 && len(parsed.Exclude) == 0 && parsed.Calories == 0 &&
		len(parsed.Preferences) == 0 && parsed.Days == defaultDays {
		return true
	}

	for _, term := range vagueTerms {
		if strings.Contains(text, term) && !hasSpecifics {
			return true
		}
	}
	return false
}
