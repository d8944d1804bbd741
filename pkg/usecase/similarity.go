package usecase

import (
	"context"
	"math"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/zatsugaku/pkg/domain/interfaces"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model/config"
	"github.com/secmon-lab/zatsugaku/pkg/service/embedding"
	"github.com/secmon-lab/zatsugaku/pkg/utils/logging"
)

// SimilarityInput is a similarity request. Vector, when set, takes
// precedence over Content. Nil Threshold and Limit fall back to configured
// defaults.
type SimilarityInput struct {
	Content   string
	Vector    []float32
	ExcludeID model.EntryID
	Threshold *float64
	Limit     *int
}

type SimilarityUseCase struct {
	repo      interfaces.Repository
	generator *embedding.Generator
	config    *config.SimilarityConfig
}

func NewSimilarityUseCase(repo interfaces.Repository, generator *embedding.Generator, cfg *config.SimilarityConfig) *SimilarityUseCase {
	if cfg == nil {
		cfg = config.DefaultSimilarityConfig()
	}
	return &SimilarityUseCase{
		repo:      repo,
		generator: generator,
		config:    cfg,
	}
}

// Config returns the defaults applied to omitted parameters
func (uc *SimilarityUseCase) Config() *config.SimilarityConfig {
	return uc.config
}

// queryVector resolves the unit query vector from the input
func (uc *SimilarityUseCase) queryVector(ctx context.Context, input SimilarityInput) ([]float32, error) {
	if len(input.Vector) > 0 {
		if uc.generator.Available() && len(input.Vector) != uc.generator.Dimension() {
			return nil, goerr.Wrap(model.ErrValidation, "vector dimension does not match",
				goerr.V(model.DimensionKey, len(input.Vector)), goerr.V("expected", uc.generator.Dimension()))
		}
		for i, v := range input.Vector {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return nil, goerr.Wrap(model.ErrValidation, "vector contains a non-finite value", goerr.V("index", i))
			}
		}
		if model.Magnitude(input.Vector) == 0 {
			return nil, goerr.Wrap(model.ErrValidation, "vector must not be zero")
		}
		return model.Normalize(input.Vector), nil
	}

	vec, err := uc.generator.Generate(ctx, input.Content)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}
	return vec, nil
}

// FindSimilar returns entries whose similarity to the query is at least
// the threshold, best first, with their tags and a coarse description.
// Exclusion is applied after the limit, so an excluded hit is not
// backfilled.
func (uc *SimilarityUseCase) FindSimilar(ctx context.Context, input SimilarityInput) ([]*model.SimilarityMatch, error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}

	threshold := uc.config.DefaultThreshold
	if input.Threshold != nil {
		threshold = *input.Threshold
	}
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return nil, goerr.Wrap(model.ErrValidation, "threshold must be a finite number", goerr.V(ThresholdKey, threshold))
	}

	limit := uc.config.DefaultLimit
	if input.Limit != nil {
		limit = *input.Limit
	}
	if limit <= 0 {
		return nil, goerr.Wrap(model.ErrValidation, "limit must be positive", goerr.V(LimitKey, limit))
	}

	if len(input.Vector) == 0 && input.Content == "" {
		return nil, goerr.Wrap(model.ErrValidation, "content or vector is required")
	}

	query, err := uc.queryVector(ctx, input)
	if err != nil {
		return nil, err
	}

	rows, err := uc.repo.Entry().FindSimilar(ctx, query, threshold, limit)
	if err != nil {
		return nil, storeError(err, "failed to search similar entries",
			goerr.V(ThresholdKey, threshold), goerr.V(LimitKey, limit))
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Similarity != rows[j].Similarity {
			return rows[i].Similarity > rows[j].Similarity
		}
		return rows[i].Entry.ID < rows[j].Entry.ID
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}

	matches := make([]*model.SimilarityMatch, 0, len(rows))
	entryIDs := make([]model.EntryID, 0, len(rows))
	for _, row := range rows {
		if input.ExcludeID != "" && row.Entry.ID == input.ExcludeID {
			continue
		}
		matches = append(matches, &model.SimilarityMatch{
			Entry:       row.Entry,
			Similarity:  row.Similarity,
			Description: model.SimilarityDescription(row.Similarity),
		})
		entryIDs = append(entryIDs, row.Entry.ID)
	}

	if len(matches) > 0 {
		tags, err := uc.repo.Tag().ListByEntryIDs(ctx, entryIDs)
		if err != nil {
			return nil, storeError(err, "failed to load tags of similar entries")
		}
		for _, m := range matches {
			m.Tags = tags[m.Entry.ID]
			if m.Tags == nil {
				m.Tags = []*model.Tag{}
			}
		}
	}

	logging.From(ctx).Debug("similarity search",
		"threshold", threshold,
		"limit", limit,
		"matches", len(matches),
	)
	return matches, nil
}
