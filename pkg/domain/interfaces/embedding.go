package interfaces

import "context"

// EmbeddingClient is the subset of gollem.LLMClient used to vectorize text
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error)
}
