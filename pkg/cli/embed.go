package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/zatsugaku/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdEmbed() *cli.Command {
	var appCfg appConfig

	return &cli.Command{
		Name:    "embed",
		Aliases: []string{"e"},
		Usage:   "Generate embeddings for every entry that has none",
		Flags:   appCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, repo, err := appCfg.build(ctx, c)
			if err != nil {
				return err
			}
			defer safe.Close(ctx, repo)

			result, err := uc.Embedding.BatchGenerate(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to generate embeddings")
			}

			_, err = fmt.Fprintf(c.Root().Writer, "processed: %d, failed: %d, total: %d\n",
				result.Processed, result.Failed, result.Total)
			return err
		},
	}
}
