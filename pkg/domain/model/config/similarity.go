package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
)

// SimilarityConfig holds the defaults applied when a similarity request
// omits threshold or limit
type SimilarityConfig struct {
	DefaultThreshold float64
	DefaultLimit     int
}

// DefaultSimilarityConfig returns the built-in defaults (0.7 / 5)
func DefaultSimilarityConfig() *SimilarityConfig {
	return &SimilarityConfig{
		DefaultThreshold: model.DefaultSimilarityThreshold,
		DefaultLimit:     model.DefaultSimilarityLimit,
	}
}

// Validate checks that the defaults are usable
func (x *SimilarityConfig) Validate() error {
	if x.DefaultThreshold < -1 || x.DefaultThreshold > 1 {
		return goerr.Wrap(model.ErrValidation, "default threshold must be within [-1, 1]",
			goerr.V("threshold", x.DefaultThreshold))
	}
	if x.DefaultLimit <= 0 {
		return goerr.Wrap(model.ErrValidation, "default limit must be positive",
			goerr.V("limit", x.DefaultLimit))
	}
	return nil
}
