package ledger

import "time"

// Category names a counted usage dimension.
type Category string

// Usage categories tracked per identity.
const (
	CategoryQuestions        Category = "questions"
	CategoryImageGenerations Category = "image_generations"
)

// Record is the per-identity usage state held by the ledger.
//
// LastReset is kept as the serialized RFC3339 string rather than a time.Time
// so that an unparseable stored value degrades to "reset is due" instead of
// silently becoming the zero time.
type Record struct {
	Counters  map[Category]int `json:"counters"`
	LastReset string           `json:"last_reset"`
}

// newRecord returns a fresh record with zero counters.
func newRecord(now time.Time) Record {
	return Record{
		Counters:  map[Category]int{CategoryQuestions: 0, CategoryImageGenerations: 0},
		LastReset: now.Format(time.RFC3339),
	}
}

// clone returns a deep copy so callers never alias ledger-internal maps.
func (r Record) clone() Record {
	counters := make(map[Category]int, len(r.Counters))
	for category, count := range r.Counters {
		counters[category] = count
	}
	return Record{Counters: counters, LastReset: r.LastReset}
}

// count returns the counter for a category, zero when absent.
func (r Record) count(category Category) int {
	if r.Counters == nil {
		return 0
	}
	return r.Counters[category]
}
