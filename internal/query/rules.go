package query

// DietRule describes what a diet forbids. A recipe violates the diet when any
// forbidden ingredient appears in its ingredient list or any forbidden tag in
// its tags.
type DietRule struct {
	ForbiddenIngredients []string
	ForbiddenTags        []string
}

// DietDefinitions maps the diet keywords the parser recognizes to their rules.
var DietDefinitions = map[string]DietRule{
	"vegan": {
		ForbiddenIngredients: []string{"meat", "chicken", "fish", "egg", "dairy", "milk", "cheese", "butter", "honey", "seafood", "beef", "pork"},
		ForbiddenTags:        []string{"non-vegan"},
	},
	"vegetarian": {
		ForbiddenIngredients: []string{"meat", "chicken", "fish", "seafood", "beef", "pork"},
		ForbiddenTags:        []string{"non-vegetarian"},
	},
	"pescatarian": {
		ForbiddenIngredients: []string{"meat", "chicken", "beef", "pork"},
		ForbiddenTags:        []string{"meat", "chicken"},
	},
	"dairy-free": {
		ForbiddenIngredients: []string{"milk", "cheese", "butter", "cream", "yogurt", "whey", "casein", "ghee"},
		ForbiddenTags:        []string{"dairy"},
	},
	"nut-free": {
		ForbiddenIngredients: []string{"nut", "almond", "peanut", "cashew", "walnut", "pecan", "pistachio", "hazelnut"},
		ForbiddenTags:        []string{"nuts"},
	},
	"soy-free": {
		ForbiddenIngredients: []string{"soy", "tofu", "tempeh", "edamame", "soy sauce", "tamari", "miso"},
		ForbiddenTags:        []string{"soy"},
	},
	"gluten-free": {
		ForbiddenIngredients: []string{"wheat", "flour", "barley", "rye", "bread", "pasta", "soy sauce"},
		ForbiddenTags:        []string{"gluten"},
	},
	"low-carb": {
		ForbiddenIngredients: []string{"sugar", "bread", "pasta", "rice", "potato", "corn", "flour", "tortilla"},
		ForbiddenTags:        []string{"high-carb"},
	},
	"keto": {
		ForbiddenIngredients: []string{"sugar", "bread", "pasta", "rice", "potato", "corn", "flour"},
		ForbiddenTags:        []string{"high-carb"},
	},
	"paleo": {
		ForbiddenIngredients: []string{"sugar", "dairy", "cheese", "milk", "butter", "bean", "legume", "grain", "rice", "bread", "pasta"},
		ForbiddenTags:        []string{"processed"},
	},
	"halal": {
		ForbiddenIngredients: []string{"pork", "bacon", "ham", "lard", "gelatin", "wine", "beer", "rum", "vodka", "whiskey", "whisky", "brandy"},
		ForbiddenTags:        []string{"pork", "alcohol"},
	},
	"kosher": {
		ForbiddenIngredients: []string{"pork", "bacon", "ham", "lard", "gelatin", "shrimp", "crab", "lobster", "clam", "mussel", "oyster", "squid", "octopus"},
		ForbiddenTags:        []string{"shellfish", "pork"},
	},
	"mediterranean": {
		ForbiddenIngredients: []string{"bacon", "sausage", "pepperoni", "salami", "hot dog", "lard", "shortening"},
		ForbiddenTags:        []string{"processed"},
	},
	"dash": {
		ForbiddenIngredients: []string{"bacon", "ham", "sausage", "hot dog", "pepperoni", "salami", "processed", "deli", "pickles", "soy sauce"},
		ForbiddenTags:        []string{"processed"},
	},
}

// IngredientSynonyms maps a user exclusion keyword to the concrete
// ingredients it stands for.
var IngredientSynonyms = map[string][]string{
	"dairy":     {"milk", "cheese", "butter", "cream", "yogurt", "whey", "casein"},
	"nut":       {"nut", "almond", "peanut", "cashew", "walnut", "pecan"},
	"egg":       {"egg", "eggs", "albumin"},
	"soy":       {"soy", "tofu", "tempeh", "edamame"},
	"shellfish": {"shrimp", "crab", "lobster", "clam", "mussel", "oyster"},
	"fish":      {"fish", "salmon", "tuna", "cod", "tilapia"},
	"meat":      {"meat", "beef", "pork", "chicken", "lamb", "steak", "bacon", "ham"},
	"gluten":    {"wheat", "barley", "rye", "malt", "flour", "bread"},
}

// IncompatibleDiets lists diet pairs that cannot be satisfied together.
var IncompatibleDiets = [][2]string{
	{"vegan", "pescatarian"},
	{"vegan", "keto"},
	{"vegetarian", "paleo"},
}
