package nutrition

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	minuteRangeRe  = regexp.MustCompile(`(\d+)\s*-\s*(\d+)\s*(?:minutes|mins|min)\b`)
	minuteSingleRe = regexp.MustCompile(`(\d+)\s*(?:minutes|mins|min)\b`)
	hourRangeRe    = regexp.MustCompile(`(\d+)\s*-\s*(\d+)\s*(?:hours|hour|hrs|hr)\b`)
	hourSingleRe   = regexp.MustCompile(`(\d+)\s*(?:hours|hour|hrs|hr)\b`)
)

// cookKeywordBuckets maps a cook-minutes estimate to the technique keywords
// implying it. The largest matching bucket wins.
var cookKeywordBuckets = map[int][]string{
	30: {"slow cook", "slow-cook", "slow cooker", "slow-cooker"},
	25: {"pressure cook", "pressure-cook", "instant pot"},
	20: {"bake", "roast", "braise", "stew", "casserole"},
	15: {"boil", "simmer", "poach", "steam"},
	12: {"saute", "stir fry", "stir-fry", "fry", "grill", "sear"},
}

var waitPenalties = map[string]int{
	"marinate":    60,
	"chill":       30,
	"refrigerate": 30,
	"rest":        10,
	"proof":       60,
	"rise":        60,
}

// EstimatePrepTime estimates total preparation time in minutes from the
// ingredient list and instruction text. Explicit durations in the text win
// over keyword heuristics; the result is clamped to [5, 180].
func EstimatePrepTime(ingredients []string, instructions string) int {
	ingredientCount := 0
	for _, ing := range ingredients {
		if strings.TrimSpace(ing) != "" {
			ingredientCount++
		}
	}

	steps := splitSteps(instructions)
	text := strings.ToLower(strings.Join(steps, " "))

	explicit := sumExplicit(text, minuteRangeRe, minuteSingleRe) +
		sumExplicit(text, hourRangeRe, hourSingleRe)*60

	prep := 5.0 + float64(max(0, ingredientCount-5))*0.5
	prep += float64(max(0, len(steps)-3)) * 1.5

	cook := explicit
	if cook == 0 {
		cook = keywordCookMinutes(text)
	}

	total := int(prep+0.5) + cook + waitPenalty(text, explicit > 0)
	return max(5, min(total, 180))
}

func splitSteps(instructions string) []string {
	var steps []string
	for _, line := range strings.FieldsFunc(instructions, func(r rune) bool {
		return r == '\r' || r == '\n'
	}) {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			steps = append(steps, trimmed)
		}
	}
	return steps
}

// sumExplicit totals the durations in text, counting the upper bound of
// ranges and then the remaining single values.
func sumExplicit(text string, rangeRe, singleRe *regexp.Regexp) int {
	total := 0
	for _, m := range rangeRe.FindAllStringSubmatch(text, -1) {
		upper, _ := strconv.Atoi(m[2])
		total += upper
	}
	text = rangeRe.ReplaceAllString(text, "")
	for _, m := range singleRe.FindAllStringSubmatch(text, -1) {
		value, _ := strconv.Atoi(m[1])
		total += value
	}
	return total
}

func keywordCookMinutes(text string) int {
	best := 8
	if text == "" {
		return best
	}
	for minutes, keywords := range cookKeywordBuckets {
		for _, k := range keywords {
			if strings.Contains(text, k) {
				best = max(best, minutes)
				break
			}
		}
	}
	return best
}

func waitPenalty(text string, hasExplicit bool) int {
	if strings.Contains(text, "overnight") {
		return 480
	}
	if hasExplicit {
		return 0
	}
	penalty := 0
	for keyword, minutes := range waitPenalties {
		if strings.Contains(text, keyword) {
			penalty = max(penalty, minutes)
		}
	}
	return penalty
}
