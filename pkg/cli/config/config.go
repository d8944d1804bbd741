package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

// AppConfig is the optional TOML configuration file. Command line flags
// take precedence over values set here.
type AppConfig struct {
	Similarity SimilaritySection `toml:"similarity"`
	Embedding  EmbeddingSection  `toml:"embedding"`
}

// SimilaritySection holds similarity search defaults
type SimilaritySection struct {
	Threshold *float64 `toml:"threshold"`
	Limit     *int     `toml:"limit"`
}

// EmbeddingSection holds embedding provider settings
type EmbeddingSection struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	Dimension int    `toml:"dimension"`
	Timeout   string `toml:"timeout"`
}

// Validate checks values that can be checked without building clients
func (a *AppConfig) Validate() error {
	switch a.Embedding.Provider {
	case "", ProviderGemini, ProviderOpenAI:
	default:
		return goerr.Wrap(ErrInvalidConfig, "unknown embedding provider", goerr.V(ProviderKey, a.Embedding.Provider))
	}
	if a.Embedding.Dimension < 0 {
		return goerr.Wrap(ErrInvalidConfig, "embedding dimension must not be negative",
			goerr.V("dimension", a.Embedding.Dimension))
	}
	if a.Embedding.Timeout != "" {
		d, err := time.ParseDuration(a.Embedding.Timeout)
		if err != nil || d <= 0 {
			return goerr.Wrap(ErrInvalidConfig, "embedding timeout must be a positive duration",
				goerr.V("timeout", a.Embedding.Timeout))
		}
	}
	return nil
}

// LoadAppConfiguration loads the application configuration from a TOML file
func LoadAppConfiguration(path string) (*AppConfig, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "config file does not exist", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	var config AppConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, goerr.Wrap(errors.Join(ErrInvalidConfig, err), "failed to parse TOML config", goerr.V(ConfigPathKey, path))
	}

	if err := config.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V(ConfigPathKey, path))
	}

	return &config, nil
}

// ConfigFile holds the --config flag
type ConfigFile struct {
	path string
}

func (x *ConfigFile) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to a TOML configuration file",
			Sources:     cli.EnvVars("ZATSUGAKU_CONFIG"),
			Destination: &x.path,
		},
	}
}

// Load reads the file named by --config. Without the flag it returns an
// empty configuration.
func (x *ConfigFile) Load() (*AppConfig, error) {
	if x.path == "" {
		return &AppConfig{}, nil
	}
	return LoadAppConfiguration(x.path)
}
