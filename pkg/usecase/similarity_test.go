package usecase_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
	"github.com/secmon-lab/zatsugaku/pkg/repository/memory"
	"github.com/secmon-lab/zatsugaku/pkg/service/embedding"
	"github.com/secmon-lab/zatsugaku/pkg/usecase"
)

// unit2D returns a 2-D unit vector whose dot product with [1, 0] is cos
func unit2D(cos float64) []float32 {
	return []float32{float32(cos), float32(math.Sqrt(1 - cos*cos))}
}

type seeded struct {
	repo *memory.Memory
	ids  map[float64]model.EntryID
}

func seedSimilarity(t *testing.T, scores ...float64) *seeded {
	t.Helper()
	ctx := context.Background()
	repo := memory.New()
	s := &seeded{repo: repo, ids: make(map[float64]model.EntryID)}

	for _, score := range scores {
		e, err := repo.Entry().Create(ctx, &model.Entry{Content: "entry"})
		gt.NoError(t, err).Required()
		gt.NoError(t, repo.Entry().UpdateEmbedding(ctx, e.ID, unit2D(score))).Required()
		s.ids[score] = e.ID
	}
	return s
}

func ptr[T any](v T) *T {
	return &v
}

func TestSimilarityUseCase_FindSimilar(t *testing.T) {
	t.Run("excluded top match is removed without backfill", func(t *testing.T) {
		s := seedSimilarity(t, 0.95, 0.80, 0.72)
		uc := usecase.New(s.repo)

		matches, err := uc.Similarity.FindSimilar(authedContext(), usecase.SimilarityInput{
			Vector:    []float32{1, 0},
			ExcludeID: s.ids[0.95],
			Threshold: ptr(0.7),
			Limit:     ptr(5),
		})
		gt.NoError(t, err).Required()
		gt.Array(t, matches).Length(2).Required()
		gt.Value(t, matches[0].Entry.ID).Equal(s.ids[0.80])
		gt.Value(t, matches[1].Entry.ID).Equal(s.ids[0.72])
		gt.Bool(t, math.Abs(matches[0].Similarity-0.80) < 1e-5).True()
		gt.Bool(t, math.Abs(matches[1].Similarity-0.72) < 1e-5).True()
	})

	t.Run("exclusion happens after the limit", func(t *testing.T) {
		s := seedSimilarity(t, 0.95, 0.80, 0.72)
		uc := usecase.New(s.repo)

		matches, err := uc.Similarity.FindSimilar(authedContext(), usecase.SimilarityInput{
			Vector:    []float32{1, 0},
			ExcludeID: s.ids[0.95],
			Limit:     ptr(2),
		})
		gt.NoError(t, err).Required()
		gt.Array(t, matches).Length(1).Required()
		gt.Value(t, matches[0].Entry.ID).Equal(s.ids[0.80])
	})

	t.Run("results are sorted, thresholded and limited", func(t *testing.T) {
		s := seedSimilarity(t, 0.55, 0.99, 0.65, 0.88, 0.75, 0.2)
		uc := usecase.New(s.repo)

		matches, err := uc.Similarity.FindSimilar(authedContext(), usecase.SimilarityInput{
			Vector:    []float32{1, 0},
			Threshold: ptr(0.6),
			Limit:     ptr(3),
		})
		gt.NoError(t, err).Required()
		gt.Array(t, matches).Length(3).Required()
		for i, m := range matches {
			gt.Bool(t, m.Similarity >= 0.6).True()
			if i > 0 {
				gt.Bool(t, matches[i-1].Similarity >= m.Similarity).True()
			}
		}
		gt.Value(t, matches[0].Entry.ID).Equal(s.ids[0.99])
		gt.Value(t, matches[0].Description).Equal("very similar")
		gt.Value(t, matches[1].Description).Equal("very similar")
		gt.Value(t, matches[2].Description).Equal("similar")
	})

	t.Run("defaults apply when threshold and limit are omitted", func(t *testing.T) {
		s := seedSimilarity(t, 0.99, 0.98, 0.97, 0.96, 0.95, 0.94, 0.69)
		uc := usecase.New(s.repo)

		matches, err := uc.Similarity.FindSimilar(authedContext(), usecase.SimilarityInput{Vector: []float32{1, 0}})
		gt.NoError(t, err).Required()
		gt.Array(t, matches).Length(model.DefaultSimilarityLimit)
	})

	t.Run("text query is embedded and tags are attached", func(t *testing.T) {
		s := seedSimilarity(t, 0.9)
		ctx := context.Background()
		tag, err := s.repo.Tag().Create(ctx, &model.Tag{Name: "animals", Color: "#00ff00"})
		gt.NoError(t, err).Required()
		gt.NoError(t, s.repo.Entry().SetTags(ctx, s.ids[0.9], []model.TagID{tag.ID})).Required()

		client := fixedEmbedding(2, 0)
		gen := embedding.New(client, embedding.WithDimension(2))
		uc := usecase.New(s.repo, usecase.WithGenerator(gen))

		matches, err := uc.Similarity.FindSimilar(authedContext(), usecase.SimilarityInput{Content: "octopus"})
		gt.NoError(t, err).Required()
		gt.Array(t, matches).Length(1).Required()
		gt.Array(t, matches[0].Tags).Length(1).Required()
		gt.Value(t, matches[0].Tags[0].Name).Equal("animals")
		gt.Value(t, client.callCount()).Equal(1)
	})

	t.Run("explicit vector takes precedence over content", func(t *testing.T) {
		s := seedSimilarity(t, 0.9)
		client := fixedEmbedding(0, 1)
		uc := usecase.New(s.repo, usecase.WithGenerator(embedding.New(client, embedding.WithDimension(2))))

		matches, err := uc.Similarity.FindSimilar(authedContext(), usecase.SimilarityInput{
			Content: "ignored",
			Vector:  []float32{10, 0},
		})
		gt.NoError(t, err).Required()
		gt.Array(t, matches).Length(1)
		gt.Value(t, client.callCount()).Equal(0)
	})

	t.Run("unauthenticated caller is rejected", func(t *testing.T) {
		s := seedSimilarity(t, 0.9)
		uc := usecase.New(s.repo)

		matches, err := uc.Similarity.FindSimilar(context.Background(), usecase.SimilarityInput{Vector: []float32{1, 0}})
		gt.Bool(t, errors.Is(err, model.ErrUnauthorized)).True()
		gt.Value(t, matches).Equal(nil)
	})

	t.Run("validation errors", func(t *testing.T) {
		uc := usecase.New(memory.New())
		ctx := authedContext()

		inputs := map[string]usecase.SimilarityInput{
			"no content or vector": {},
			"zero limit":           {Vector: []float32{1, 0}, Limit: ptr(0)},
			"negative limit":       {Vector: []float32{1, 0}, Limit: ptr(-1)},
			"zero vector":          {Vector: []float32{0, 0}},
			"NaN threshold":        {Vector: []float32{1, 0}, Threshold: ptr(math.NaN())},
		}
		for name, input := range inputs {
			t.Run(name, func(t *testing.T) {
				_, err := uc.Similarity.FindSimilar(ctx, input)
				gt.Bool(t, errors.Is(err, model.ErrValidation)).True()
			})
		}
	})

	t.Run("text query without provider is a configuration error", func(t *testing.T) {
		uc := usecase.New(memory.New())
		_, err := uc.Similarity.FindSimilar(authedContext(), usecase.SimilarityInput{Content: "octopus"})
		gt.Bool(t, errors.Is(err, model.ErrConfiguration)).True()
	})
}
