package scoring

import (
	"meal-scheduler/internal/recipe"
)

// Target macro ratio bands, expressed as fractions of protein+carbs+fat.
const (
	proteinLow, proteinHigh = 0.20, 0.45
	carbsLow, carbsHigh     = 0.25, 0.60
	fatLow, fatHigh         = 0.15, 0.40

	proteinWeight = 5.0
	carbsWeight   = 4.0
	fatWeight     = 4.0
)

// MacroPenalty evaluates how far the day's macro ratios would drift outside
// the target bands if the candidate were added. The result is always >= 0;
// a day with zero total nutrition yields zero.
func MacroPenalty(dayTotals recipe.NutritionalInfo, candidate recipe.NutritionalInfo) float64 {
	protein := float64(dayTotals.Protein + candidate.Protein)
	carbs := float64(dayTotals.Carbs + candidate.Carbs)
	fat := float64(dayTotals.Fat + candidate.Fat)

	total := protein + carbs + fat
	if total <= 0 {
		return 0
	}

	penalty := 0.0
	penalty += bandDeviation(protein/total, proteinLow, proteinHigh) * proteinWeight
	penalty += bandDeviation(carbs/total, carbsLow, carbsHigh) * carbsWeight
	penalty += bandDeviation(fat/total, fatLow, fatHigh) * fatWeight
	return penalty
}

// bandDeviation returns how far ratio sits outside [low, high], zero when
// inside.
func bandDeviation(ratio, low, high float64) float64 {
	if ratio < low {
		return low - ratio
	}
	if ratio > high {
		return ratio - high
	}
	return 0
}
