package model

const (
	// DefaultSimilarityThreshold is the minimum score for a match when the caller omits one
	DefaultSimilarityThreshold = 0.7
	// DefaultSimilarityLimit is the maximum number of matches when the caller omits one
	DefaultSimilarityLimit = 5
)

// SimilarityPreset is a named threshold
type SimilarityPreset struct {
	Name        string
	Threshold   float64
	Description string
}

// Similarity presets, strictest first
var SimilarityPresets = []SimilarityPreset{
	{Name: "strict", Threshold: 0.85, Description: "very similar"},
	{Name: "normal", Threshold: 0.70, Description: "similar"},
	{Name: "loose", Threshold: 0.60, Description: "somewhat similar"},
	{Name: "very_loose", Threshold: 0.50, Description: "related"},
}

// SimilarityDescription maps a score to a coarse human-readable band.
// Bands are checked strictest first; anything below "loose" is "related".
func SimilarityDescription(score float64) string {
	last := len(SimilarityPresets) - 1
	for _, p := range SimilarityPresets[:last] {
		if score >= p.Threshold {
			return p.Description
		}
	}
	return SimilarityPresets[last].Description
}

// SimilarEntry is a store-level result: an entry and its similarity to the query
type SimilarEntry struct {
	Entry      *Entry
	Similarity float64
}

// SimilarityMatch is a ranked match returned to callers. It is not persisted.
type SimilarityMatch struct {
	Entry       *Entry
	Similarity  float64
	Description string
	Tags        []*Tag
}
