// Package nutrition resolves ingredient lines into macro estimates: a parser
// for quantities and units, a USDA FoodData Central client, a per-recipe
// calculator, and a prep time estimator.
package nutrition

import (
	"regexp"
	"strconv"
	"strings"
)

// unitToGrams converts common kitchen units to an approximate gram weight.
// Volumes assume water-like density, which is close enough for macro
// estimates.
var unitToGrams = map[string]float64{
	"g":           1.0,
	"gram":        1.0,
	"grams":       1.0,
	"kg":          1000.0,
	"kilogram":    1000.0,
	"kilograms":   1000.0,
	"oz":          28.3495,
	"ounce":       28.3495,
	"ounces":      28.3495,
	"lb":          453.592,
	"pound":       453.592,
	"pounds":      453.592,
	"ml":          1.0,
	"milliliter":  1.0,
	"milliliters": 1.0,
	"l":           1000.0,
	"liter":       1000.0,
	"liters":      1000.0,
	"tsp":         5.0,
	"teaspoon":    5.0,
	"teaspoons":   5.0,
	"tbsp":        15.0,
	"tblsp":       15.0,
	"tbs":         15.0,
	"tablespoon":  15.0,
	"tablespoons": 15.0,
	"cup":         240.0,
	"cups":        240.0,
	"clove":       3.0,
	"cloves":      3.0,
}

var (
	quantityRe    = regexp.MustCompile(`^(\d+\s+\d+/\d+|\d+/\d+|\d+(?:\.\d+)?|\d+\s*-\s*\d+)`)
	parenRe       = regexp.MustCompile(`\(([^)]*)\)`)
	stripParensRe = regexp.MustCompile(`\([^)]*\)`)
	nameCharsRe   = regexp.MustCompile(`[^a-z0-9\s-]`)
	compactUnitRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)([a-zA-Z]+)$`)
	leadingOfRe   = regexp.MustCompile(`^of\s+`)
)

// ParseIngredient splits an ingredient line into a normalized food name and
// an estimated gram weight. The weight is 0 with ok=false when no usable
// quantity and unit appear.
func ParseIngredient(ingredient string) (string, float64, bool) {
	text := strings.ToLower(strings.TrimSpace(ingredient))

	// A parenthesized measure like "chicken (200g)" is the most reliable
	// signal when present.
	if m := parenRe.FindStringSubmatch(text); m != nil {
		if grams, ok := gramsFromText(strings.TrimSpace(m[1])); ok {
			return normalizeName(stripParensRe.ReplaceAllString(text, "")), grams, true
		}
	}

	text = strings.TrimSpace(stripParensRe.ReplaceAllString(text, ""))
	quantity, rest, ok := parseQuantity(text)
	if !ok {
		return normalizeName(text), 0, false
	}

	unit, name := parseUnit(rest)
	name = normalizeName(name)
	if unit == "" {
		return name, 0, false
	}
	perUnit, known := unitToGrams[unit]
	if !known {
		return name, 0, false
	}
	return name, quantity * perUnit, true
}

// parseQuantity extracts a leading amount: "1 1/2", "3/4", "2.5" or a range
// "2-3" (averaged). Returns the remaining text after the amount.
func parseQuantity(text string) (float64, string, bool) {
	m := quantityRe.FindString(text)
	if m == "" {
		return 0, text, false
	}
	rest := strings.TrimSpace(text[len(m):])

	if strings.Contains(m, "-") {
		sum, count := 0.0, 0
		for _, part := range strings.Split(m, "-") {
			if v, ok := parseNumber(strings.TrimSpace(part)); ok {
				sum += v
				count++
			}
		}
		if count == 0 {
			return 0, rest, false
		}
		return sum / float64(count), rest, true
	}

	v, ok := parseNumber(m)
	return v, rest, ok
}

func parseNumber(raw string) (float64, bool) {
	if base, frac, found := strings.Cut(raw, " "); found {
		b, bok := parseNumber(base)
		f, fok := parseNumber(strings.TrimSpace(frac))
		if bok && fok {
			return b + f, true
		}
		if bok {
			return b, true
		}
		return f, fok
	}
	if num, den, found := strings.Cut(raw, "/"); found {
		n, nerr := strconv.ParseFloat(num, 64)
		d, derr := strconv.ParseFloat(den, 64)
		if nerr != nil || derr != nil || d == 0 {
			return 0, false
		}
		return n / d, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	return v, err == nil
}

func parseUnit(text string) (string, string) {
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", text
	}
	unit := strings.TrimRight(parts[0], ".,")
	if _, ok := unitToGrams[unit]; !ok {
		return "", text
	}
	rest := strings.TrimSpace(strings.Join(parts[1:], " "))
	return unit, leadingOfRe.ReplaceAllString(rest, "")
}

func normalizeName(text string) string {
	text = nameCharsRe.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// gramsFromText resolves a bare measure like "200g" or "2 cups" to grams.
func gramsFromText(text string) (float64, bool) {
	if quantity, rest, ok := parseQuantity(text); ok {
		if unit, _ := parseUnit(rest); unit != "" {
			if perUnit, known := unitToGrams[unit]; known {
				return quantity * perUnit, true
			}
		}
	}
	if m := compactUnitRe.FindStringSubmatch(text); m != nil {
		quantity, ok := parseNumber(m[1])
		perUnit, known := unitToGrams[strings.ToLower(m[2])]
		if ok && known {
			return quantity * perUnit, true
		}
	}
	return 0, false
}
