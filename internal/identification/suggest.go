package identification

import (
	"sort"

	"romident/internal/catalog"
	"romident/internal/textutil"
)

// Suggestion is a catalog record whose title resembles a query name.
type Suggestion struct {
	Catalog string
	Record  *catalog.SoftwareRecord
	Score   float64
}

// Suggest ranks records by title similarity to name, ignoring tags, and
// returns at most limit suggestions scoring at least minScore. It is a hint
// for people and never a match.
func Suggest(name string, dbs []*catalog.Database, limit int, minScore float64) []Suggestion {
	query := textutil.NewFingerprint(parseName(name).base)
	if query == nil || limit <= 0 {
		return nil
	}
	var out []Suggestion
	for _, db := range dbs {
		for _, rec := range db.Records() {
			score := textutil.CosineSimilarity(query, textutil.NewFingerprint(parseName(rec.Title()).base))
			if score < minScore || score == 0 {
				continue
			}
			out = append(out, Suggestion{Catalog: db.Name, Record: rec, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
