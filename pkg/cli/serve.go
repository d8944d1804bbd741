package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/zatsugaku/pkg/cli/config"
	httpctrl "github.com/secmon-lab/zatsugaku/pkg/controller/http"
	"github.com/secmon-lab/zatsugaku/pkg/service/worker"
	"github.com/secmon-lab/zatsugaku/pkg/usecase"
	"github.com/secmon-lab/zatsugaku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var autoEmbedding bool
	var backfillInterval time.Duration
	var appCfg appConfig
	var authCfg config.Auth

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("ZATSUGAKU_ADDR"),
			Destination: &addr,
		},
		&cli.BoolFlag{
			Name:        "auto-embedding",
			Usage:       "Generate embeddings in the background when entries are saved",
			Category:    "Embedding",
			Value:       true,
			Sources:     cli.EnvVars("ZATSUGAKU_AUTO_EMBEDDING"),
			Destination: &autoEmbedding,
		},
		&cli.DurationFlag{
			Name:        "embedding-backfill-interval",
			Usage:       "Interval of the background embedding backfill (disabled when 0)",
			Category:    "Embedding",
			Sources:     cli.EnvVars("ZATSUGAKU_EMBEDDING_BACKFILL_INTERVAL"),
			Destination: &backfillInterval,
		},
	}

	// Add shared config flags
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, authCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.From(ctx)
			logger.Info("Serve configuration",
				"addr", addr,
				"auto_embedding", autoEmbedding,
				"backfill_interval", backfillInterval.String(),
				"repository", appCfg.repo,
				"embedding", appCfg.embedding,
				"auth", authCfg,
			)

			authUC, err := authCfg.Configure(ctx)
			if err != nil {
				return err
			}

			uc, repo, err := appCfg.build(ctx, c,
				usecase.WithAutoEmbedding(autoEmbedding),
				usecase.WithAuth(authUC),
			)
			if err != nil {
				return err
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logger.Error("failed to close repository", "error", err.Error())
				}
			}()

			var backfillWorker *worker.EmbeddingBackfillWorker
			if backfillInterval > 0 {
				backfillWorker = worker.NewEmbeddingBackfillWorker(uc.Embedding, backfillInterval)
				if err := backfillWorker.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start embedding backfill worker")
				}
			}

			var httpOpts []httpctrl.Options
			if authUC != nil {
				httpOpts = append(httpOpts, httpctrl.WithAuth(authUC))
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(uc, httpOpts...),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			// Start server in goroutine
			errCh := make(chan error, 1)
			go func() {
				logger.Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			// Wait for shutdown signal or server error
			select {
			case err := <-errCh:
				if backfillWorker != nil {
					backfillWorker.Stop()
				}
				return err
			case sig := <-sigCh:
				logger.Info("Received shutdown signal", "signal", sig)

				// Stop the backfill worker first
				if backfillWorker != nil {
					backfillWorker.Stop()
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logger.Info("Server shutdown completed")
				return nil
			}
		},
	}
}
