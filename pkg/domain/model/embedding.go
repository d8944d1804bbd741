package model

import "math"

// DefaultEmbeddingDimension matches Gemini text-embedding-004
const DefaultEmbeddingDimension = 768

// EmbeddingStats summarizes how many entries carry an embedding
type EmbeddingStats struct {
	Total      int
	Embedded   int
	Unembedded int
	// CompletionRate is Embedded/Total in percent, rounded to one decimal
	CompletionRate float64
}

// NewEmbeddingStats builds stats from the total and embedded counts
func NewEmbeddingStats(total, embedded int) *EmbeddingStats {
	stats := &EmbeddingStats{
		Total:      total,
		Embedded:   embedded,
		Unembedded: total - embedded,
	}
	if total > 0 {
		stats.CompletionRate = math.Round(float64(embedded)/float64(total)*1000) / 10
	}
	return stats
}

// BatchResult is the outcome of a batch embedding run
type BatchResult struct {
	Processed int
	Failed    int
	Total     int
}
