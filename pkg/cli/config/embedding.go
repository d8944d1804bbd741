package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/gollem/llm/openai"
	"github.com/secmon-lab/zatsugaku/pkg/domain/interfaces"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
	"github.com/secmon-lab/zatsugaku/pkg/service/embedding"
	"github.com/urfave/cli/v3"
)

// Embedding providers
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Embedding holds configuration for the embedding provider
type Embedding struct {
	provider       string
	geminiProject  string
	geminiLocation string
	openaiAPIKey   string `masq:"secret"`
	model          string
	dimension      int
	timeout        time.Duration
}

// Flags returns CLI flags for embedding configuration
func (e *Embedding) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "embedding-provider",
			Usage:       "Embedding provider (gemini or openai). Similarity search is disabled when empty",
			Category:    "Embedding",
			Sources:     cli.EnvVars("ZATSUGAKU_EMBEDDING_PROVIDER"),
			Destination: &e.provider,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini API",
			Category:    "Embedding",
			Sources:     cli.EnvVars("ZATSUGAKU_GEMINI_PROJECT"),
			Destination: &e.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini API",
			Category:    "Embedding",
			Value:       "us-central1",
			Sources:     cli.EnvVars("ZATSUGAKU_GEMINI_LOCATION"),
			Destination: &e.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Category:    "Embedding",
			Sources:     cli.EnvVars("ZATSUGAKU_OPENAI_API_KEY"),
			Destination: &e.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Embedding model name (provider default when empty)",
			Category:    "Embedding",
			Sources:     cli.EnvVars("ZATSUGAKU_EMBEDDING_MODEL"),
			Destination: &e.model,
		},
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Usage:       "Embedding vector dimension",
			Category:    "Embedding",
			Value:       model.DefaultEmbeddingDimension,
			Sources:     cli.EnvVars("ZATSUGAKU_EMBEDDING_DIMENSION"),
			Destination: &e.dimension,
		},
		&cli.DurationFlag{
			Name:        "embedding-timeout",
			Usage:       "Timeout of a single embedding request",
			Category:    "Embedding",
			Value:       embedding.DefaultTimeout,
			Sources:     cli.EnvVars("ZATSUGAKU_EMBEDDING_TIMEOUT"),
			Destination: &e.timeout,
		},
	}
}

func (e Embedding) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", e.provider),
		slog.String("gemini_project", e.geminiProject),
		slog.String("gemini_location", e.geminiLocation),
		slog.String("model", e.model),
		slog.Int("dimension", e.dimension),
		slog.String("timeout", e.timeout.String()),
	)
}

// Dimension returns the configured vector dimension
func (e *Embedding) Dimension() int {
	return e.dimension
}

// Merge fills settings that were not given on the command line from the
// configuration file
func (e *Embedding) Merge(file *EmbeddingSection, isSet func(name string) bool) error {
	if file == nil {
		return nil
	}
	if file.Provider != "" && !isSet("embedding-provider") {
		e.provider = file.Provider
	}
	if file.Model != "" && !isSet("embedding-model") {
		e.model = file.Model
	}
	if file.Dimension > 0 && !isSet("embedding-dimension") {
		e.dimension = file.Dimension
	}
	if file.Timeout != "" && !isSet("embedding-timeout") {
		d, err := time.ParseDuration(file.Timeout)
		if err != nil {
			return goerr.Wrap(ErrInvalidConfig, "invalid embedding timeout", goerr.V("timeout", file.Timeout))
		}
		e.timeout = d
	}
	return nil
}

func (e *Embedding) newClient(ctx context.Context) (interfaces.EmbeddingClient, error) {
	switch e.provider {
	case "":
		return nil, nil

	case ProviderGemini:
		if e.geminiProject == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "gemini-project is required for the gemini provider")
		}
		var opts []gemini.Option
		if e.model != "" {
			opts = append(opts, gemini.WithEmbeddingModel(e.model))
		}
		client, err := gemini.New(ctx, e.geminiProject, e.geminiLocation, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Gemini client")
		}
		return client, nil

	case ProviderOpenAI:
		if e.openaiAPIKey == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "openai-api-key is required for the openai provider")
		}
		var opts []openai.Option
		if e.model != "" {
			opts = append(opts, openai.WithEmbeddingModel(e.model))
		}
		client, err := openai.New(ctx, e.openaiAPIKey, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create OpenAI client")
		}
		return client, nil

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "unknown embedding provider", goerr.V(ProviderKey, e.provider))
	}
}

// Configure builds the embedding generator. Without a provider the
// generator is unavailable and similarity features are disabled.
func (e *Embedding) Configure(ctx context.Context) (*embedding.Generator, error) {
	if e.dimension <= 0 {
		return nil, goerr.Wrap(ErrInvalidConfig, "embedding-dimension must be positive", goerr.V("dimension", e.dimension))
	}
	if e.timeout <= 0 {
		return nil, goerr.Wrap(ErrInvalidConfig, "embedding-timeout must be positive", goerr.V("timeout", e.timeout.String()))
	}

	client, err := e.newClient(ctx)
	if err != nil {
		return nil, err
	}

	return embedding.New(client,
		embedding.WithDimension(e.dimension),
		embedding.WithTimeout(e.timeout),
	), nil
}
