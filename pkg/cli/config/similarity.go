package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	domainConfig "github.com/secmon-lab/zatsugaku/pkg/domain/model/config"
	"github.com/urfave/cli/v3"
)

// Similarity holds CLI flags for similarity search defaults
type Similarity struct {
	threshold float64
	limit     int
}

func (s *Similarity) Flags() []cli.Flag {
	defaults := domainConfig.DefaultSimilarityConfig()
	return []cli.Flag{
		&cli.FloatFlag{
			Name:        "similarity-threshold",
			Usage:       "Default minimum similarity of search results",
			Category:    "Similarity",
			Value:       defaults.DefaultThreshold,
			Sources:     cli.EnvVars("ZATSUGAKU_SIMILARITY_THRESHOLD"),
			Destination: &s.threshold,
		},
		&cli.IntFlag{
			Name:        "similarity-limit",
			Usage:       "Default maximum number of search results",
			Category:    "Similarity",
			Value:       defaults.DefaultLimit,
			Sources:     cli.EnvVars("ZATSUGAKU_SIMILARITY_LIMIT"),
			Destination: &s.limit,
		},
	}
}

func (s Similarity) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("threshold", s.threshold),
		slog.Int("limit", s.limit),
	)
}

// Merge fills settings that were not given on the command line from the
// configuration file
func (s *Similarity) Merge(file *SimilaritySection, isSet func(name string) bool) {
	if file == nil {
		return
	}
	if file.Threshold != nil && !isSet("similarity-threshold") {
		s.threshold = *file.Threshold
	}
	if file.Limit != nil && !isSet("similarity-limit") {
		s.limit = *file.Limit
	}
}

// Configure returns the validated similarity defaults
func (s *Similarity) Configure() (*domainConfig.SimilarityConfig, error) {
	cfg := &domainConfig.SimilarityConfig{
		DefaultThreshold: s.threshold,
		DefaultLimit:     s.limit,
	}
	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid similarity configuration")
	}
	return cfg, nil
}
