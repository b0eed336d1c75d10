package retrieval

// taxonomyEntry maps a common query keyword onto the catalog's category
// taxonomy plus lexical synonyms, broadening keyword recall without a
// model call.
type taxonomyEntry struct {
	Category string
	Synonyms []string
}

// taxonomy is keyed by singular lowercase keywords. Lookups also try a
// trailing-"s" strip so "plants" lands on "plant".
var taxonomy = map[string]taxonomyEntry{
	"budget":     {Category: "Finance", Synonyms: []string{"money", "expense", "spending", "finance"}},
	"money":      {Category: "Finance", Synonyms: []string{"budget", "expense", "finance"}},
	"invest":     {Category: "Finance", Synonyms: []string{"stocks", "trading", "portfolio"}},
	"plant":      {Category: "Lifestyle", Synonyms: []string{"garden", "gardening", "botany"}},
	"workout":    {Category: "Health & Fitness", Synonyms: []string{"fitness", "exercise", "gym", "training"}},
	"fitness":    {Category: "Health & Fitness", Synonyms: []string{"workout", "exercise", "health"}},
	"meditation": {Category: "Health & Fitness", Synonyms: []string{"mindfulness", "calm", "relax"}},
	"sleep":      {Category: "Health & Fitness", Synonyms: []string{"insomnia", "rest", "bedtime"}},
	"recipe":     {Category: "Food & Drink", Synonyms: []string{"cooking", "meal", "food"}},
	"language":   {Category: "Education", Synonyms: []string{"learning", "vocabulary", "study"}},
	"photo":      {Category: "Photography", Synonyms: []string{"camera", "editing", "editor"}},
	"music":      {Category: "Music", Synonyms: []string{"audio", "playlist", "song"}},
	"travel":     {Category: "Travel", Synonyms: []string{"trip", "flight", "hotel"}},
	"task":       {Category: "Productivity", Synonyms: []string{"todo", "planner", "productivity"}},
	"habit":      {Category: "Productivity", Synonyms: []string{"tracker", "routine", "streak"}},
	"note":       {Category: "Productivity", Synonyms: []string{"notes", "notebook", "writing"}},
	"chat":       {Category: "Social", Synonyms: []string{"messaging", "social", "messenger"}},
	"game":       {Category: "Games", Synonyms: []string{"gaming", "puzzle", "arcade"}},
	"news":       {Category: "News", Synonyms: []string{"headlines", "articles"}},
	"weather":    {Category: "Weather", Synonyms: []string{"forecast", "radar"}},
}

// lookupTaxonomy resolves a term, trying the naive singular form too.
func lookupTaxonomy(term string) (taxonomyEntry, bool) {
	if e, ok := taxonomy[term]; ok {
		return e, true
	}
	if n := len(term); n > 3 && term[n-1] == 's' {
		if e, ok := taxonomy[term[:n-1]]; ok {
			return e, true
		}
	}
	return taxonomyEntry{}, false
}
