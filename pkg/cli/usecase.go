package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/zatsugaku/pkg/cli/config"
	"github.com/secmon-lab/zatsugaku/pkg/domain/interfaces"
	"github.com/secmon-lab/zatsugaku/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// appConfig bundles the configuration shared by serve and embed
type appConfig struct {
	file       config.ConfigFile
	repo       config.Repository
	embedding  config.Embedding
	similarity config.Similarity
}

func (x *appConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, x.file.Flags()...)
	flags = append(flags, x.repo.Flags()...)
	flags = append(flags, x.embedding.Flags()...)
	flags = append(flags, x.similarity.Flags()...)
	return flags
}

// build loads the config file, opens the repository and assembles the use
// cases. The caller closes the returned repository.
func (x *appConfig) build(ctx context.Context, c *cli.Command, opts ...usecase.Option) (*usecase.UseCases, interfaces.Repository, error) {
	file, err := x.file.Load()
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to load configuration file")
	}
	if err := x.embedding.Merge(&file.Embedding, c.IsSet); err != nil {
		return nil, nil, err
	}
	x.similarity.Merge(&file.Similarity, c.IsSet)

	generator, err := x.embedding.Configure(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to configure embedding")
	}
	similarityCfg, err := x.similarity.Configure()
	if err != nil {
		return nil, nil, err
	}

	repo, err := x.repo.Configure(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to initialize repository")
	}

	ucOpts := append([]usecase.Option{
		usecase.WithGenerator(generator),
		usecase.WithSimilarityConfig(similarityCfg),
	}, opts...)

	return usecase.New(repo, ucOpts...), repo, nil
}
