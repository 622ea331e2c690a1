package recipe

// NutritionalInfo holds the macro profile of a recipe or an accumulated day.
type NutritionalInfo struct {
	Calories int `json:"calories"`
	Protein  int `json:"protein"`
	Carbs    int `json:"carbs"`
	Fat      int `json:"fat"`
}

// Add returns the sum of two macro profiles.
func (n NutritionalInfo) Add(other NutritionalInfo) NutritionalInfo {
	return NutritionalInfo{
		Calories: n.Calories + other.Calories,
		Protein:  n.Protein + other.Protein,
		Carbs:    n.Carbs + other.Carbs,
		Fat:      n.Fat + other.Fat,
	}
}

// Recipe is the canonical recipe model shared by all candidate sources.
// A source adapts its native format into this shape once; the planner and
// scorer only ever read it.
type Recipe struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	ReadyInMinutes int             `json:"ready_in_minutes"`
	Servings       int             `json:"servings"`
	Image          string          `json:"image,omitempty"`
	Diets          []string        `json:"diets"`
	DishTypes      []string        `json:"dish_types"`
	Ingredients    []string        `json:"ingredients"`
	Instructions   []string        `json:"instructions"`
	Nutrition      NutritionalInfo `json:"nutrition"`
	SourceAPI      string          `json:"source_api"`
}
