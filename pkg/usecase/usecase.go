package usecase

import (
	"context"

	"github.com/secmon-lab/zatsugaku/pkg/domain/interfaces"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model/config"
	"github.com/secmon-lab/zatsugaku/pkg/service/embedding"
	"github.com/secmon-lab/zatsugaku/pkg/utils/async"
)

// Dispatcher runs background work detached from the caller
type Dispatcher func(ctx context.Context, handler func(ctx context.Context) error)

type UseCases struct {
	repo             interfaces.Repository
	generator        *embedding.Generator
	similarityConfig *config.SimilarityConfig
	autoEmbedding    bool
	dispatch         Dispatcher

	Entry      *EntryUseCase
	Tag        *TagUseCase
	Embedding  *EmbeddingUseCase
	Similarity *SimilarityUseCase
	Auth       AuthUseCaseInterface
}

type Option func(*UseCases)

// WithGenerator sets the embedding generator. Without one, similarity and
// embedding operations fail with a configuration error.
func WithGenerator(gen *embedding.Generator) Option {
	return func(uc *UseCases) {
		uc.generator = gen
	}
}

func WithSimilarityConfig(cfg *config.SimilarityConfig) Option {
	return func(uc *UseCases) {
		uc.similarityConfig = cfg
	}
}

// WithAutoEmbedding generates embeddings in the background when entries
// are created or their content changes
func WithAutoEmbedding(enabled bool) Option {
	return func(uc *UseCases) {
		uc.autoEmbedding = enabled
	}
}

// WithDispatcher replaces async.Dispatch for background embedding
func WithDispatcher(d Dispatcher) Option {
	return func(uc *UseCases) {
		uc.dispatch = d
	}
}

func WithAuth(auth AuthUseCaseInterface) Option {
	return func(uc *UseCases) {
		uc.Auth = auth
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:             repo,
		generator:        embedding.New(nil),
		similarityConfig: config.DefaultSimilarityConfig(),
		dispatch:         async.Dispatch,
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Embedding = NewEmbeddingUseCase(repo, uc.generator)
	uc.Tag = NewTagUseCase(repo)
	uc.Entry = NewEntryUseCase(repo, uc.Embedding, uc.autoEmbedding, uc.dispatch)
	uc.Similarity = NewSimilarityUseCase(repo, uc.generator, uc.similarityConfig)

	return uc
}
