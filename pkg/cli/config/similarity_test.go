package config_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/zatsugaku/pkg/cli/config"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
)

func ptr[T any](v T) *T { return &v }

func TestSimilarity(t *testing.T) {
	notSet := func(string) bool { return false }

	t.Run("file fills values not set by flags", func(t *testing.T) {
		cfg := config.NewSimilarityForTest(0.7, 5)
		cfg.Merge(&config.SimilaritySection{Threshold: ptr(0.5), Limit: ptr(20)}, notSet)

		got, err := cfg.Configure()
		gt.NoError(t, err).Required()
		gt.Value(t, got.DefaultThreshold).Equal(0.5)
		gt.Value(t, got.DefaultLimit).Equal(20)
	})

	t.Run("flags win over the file", func(t *testing.T) {
		cfg := config.NewSimilarityForTest(0.9, 3)
		cfg.Merge(&config.SimilaritySection{Threshold: ptr(0.5), Limit: ptr(20)}, func(name string) bool {
			return name == "similarity-threshold"
		})

		got, err := cfg.Configure()
		gt.NoError(t, err).Required()
		gt.Value(t, got.DefaultThreshold).Equal(0.9)
		gt.Value(t, got.DefaultLimit).Equal(20)
	})

	t.Run("invalid defaults", func(t *testing.T) {
		_, err := config.NewSimilarityForTest(0.7, 0).Configure()
		gt.Bool(t, errors.Is(err, model.ErrValidation)).True()

		_, err = config.NewSimilarityForTest(1.5, 5).Configure()
		gt.Bool(t, errors.Is(err, model.ErrValidation)).True()
	})
}
