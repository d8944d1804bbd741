package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/zatsugaku/pkg/domain/interfaces"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
	"github.com/secmon-lab/zatsugaku/pkg/service/embedding"
	"github.com/secmon-lab/zatsugaku/pkg/utils/errutil"
	"github.com/secmon-lab/zatsugaku/pkg/utils/logging"
)

type EmbeddingUseCase struct {
	repo      interfaces.Repository
	generator *embedding.Generator
}

func NewEmbeddingUseCase(repo interfaces.Repository, generator *embedding.Generator) *EmbeddingUseCase {
	return &EmbeddingUseCase{
		repo:      repo,
		generator: generator,
	}
}

// GenerateForEntry generates the embedding of content and stores it on the
// entry. The entry must exist.
func (uc *EmbeddingUseCase) GenerateForEntry(ctx context.Context, id model.EntryID, content string) error {
	if id == "" {
		return goerr.Wrap(model.ErrValidation, "entry ID is required")
	}
	if err := checkEntryID(id); err != nil {
		return err
	}
	if _, err := uc.repo.Entry().Get(ctx, id); err != nil {
		return storeError(err, "failed to get entry", goerr.V(model.EntryIDKey, id))
	}

	vec, err := uc.generator.Generate(ctx, content)
	if err != nil {
		return goerr.Wrap(err, "failed to generate embedding", goerr.V(model.EntryIDKey, id))
	}

	if err := uc.repo.Entry().UpdateEmbedding(ctx, id, vec); err != nil {
		return storeError(err, "failed to store embedding", goerr.V(model.EntryIDKey, id))
	}

	logging.From(ctx).Debug("embedding stored", "entry_id", id, "dimension", len(vec))
	return nil
}

// BatchGenerate embeds every entry lacking an embedding, one at a time.
// A failing entry is counted and logged; it never aborts the run.
func (uc *EmbeddingUseCase) BatchGenerate(ctx context.Context) (*model.BatchResult, error) {
	if !uc.generator.Available() {
		return nil, goerr.Wrap(model.ErrConfiguration, "embedding client is not set")
	}

	entries, err := uc.repo.Entry().ListWithoutEmbedding(ctx, 0)
	if err != nil {
		return nil, storeError(err, "failed to list entries without embedding")
	}

	result := &model.BatchResult{Total: len(entries)}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, goerr.Wrap(err, "batch embedding interrupted",
				goerr.V("processed", result.Processed), goerr.V("failed", result.Failed))
		}

		if err := uc.GenerateForEntry(ctx, entry.ID, entry.Content); err != nil {
			result.Failed++
			_ = errutil.Handle(ctx, err, "failed to embed entry in batch", "entry_id", entry.ID)
			continue
		}
		result.Processed++
	}

	logging.From(ctx).Info("batch embedding finished",
		"processed", result.Processed,
		"failed", result.Failed,
		"total", result.Total,
	)
	return result, nil
}

// Stats reports how many entries carry an embedding
func (uc *EmbeddingUseCase) Stats(ctx context.Context) (*model.EmbeddingStats, error) {
	total, embedded, err := uc.repo.Entry().CountEmbeddings(ctx)
	if err != nil {
		return nil, storeError(err, "failed to count embeddings")
	}
	return model.NewEmbeddingStats(total, embedded), nil
}
