package embedding

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/zatsugaku/pkg/domain/interfaces"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
)

// DefaultTimeout bounds a single provider call
const DefaultTimeout = 30 * time.Second

// Generator turns text into a unit-length embedding vector
type Generator struct {
	client    interfaces.EmbeddingClient
	dimension int
	timeout   time.Duration
}

// Option is a functional option for Generator configuration
type Option func(*Generator)

// WithDimension sets the requested vector width
func WithDimension(dimension int) Option {
	return func(g *Generator) {
		g.dimension = dimension
	}
}

// WithTimeout sets the per-call provider timeout
func WithTimeout(timeout time.Duration) Option {
	return func(g *Generator) {
		g.timeout = timeout
	}
}

// New creates a Generator. A nil client is accepted; every Generate call
// then fails with model.ErrConfiguration.
func New(client interfaces.EmbeddingClient, opts ...Option) *Generator {
	g := &Generator{
		client:    client,
		dimension: model.DefaultEmbeddingDimension,
		timeout:   DefaultTimeout,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Available reports whether a provider client is configured
func (g *Generator) Available() bool {
	return g != nil && g.client != nil
}

// Dimension returns the configured vector width
func (g *Generator) Dimension() int {
	return g.dimension
}

// Generate returns the normalized embedding of text
func (g *Generator) Generate(ctx context.Context, text string) ([]float32, error) {
	if !g.Available() {
		return nil, goerr.Wrap(model.ErrConfiguration, "embedding client is not set")
	}
	if strings.TrimSpace(text) == "" {
		return nil, goerr.Wrap(model.ErrValidation, "text is required")
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	embeddings, err := g.client.GenerateEmbedding(callCtx, g.dimension, []string{text})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, goerr.Wrap(model.ErrProviderTimeout, "embedding request timed out",
				goerr.V("timeout", g.timeout.String()), goerr.V("cause", err.Error()))
		}
		return nil, goerr.Wrap(model.ErrProvider, "failed to generate embedding", goerr.V("cause", err.Error()))
	}

	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, goerr.Wrap(model.ErrProvider, "no embedding returned")
	}

	raw := embeddings[0]
	if len(raw) != g.dimension {
		return nil, goerr.Wrap(model.ErrProvider, "unexpected embedding dimension",
			goerr.V(model.DimensionKey, len(raw)), goerr.V("expected", g.dimension))
	}

	// Convert float64 to float32
	vec := make([]float32, len(raw))
	for i, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, goerr.Wrap(model.ErrProvider, "embedding contains a non-finite value", goerr.V("index", i))
		}
		vec[i] = float32(v)
	}

	if model.Magnitude(vec) == 0 {
		return nil, goerr.Wrap(model.ErrProvider, "embedding is a zero vector")
	}

	return model.Normalize(vec), nil
}
