package worker

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
	"github.com/secmon-lab/zatsugaku/pkg/utils/errutil"
	"github.com/secmon-lab/zatsugaku/pkg/utils/logging"
)

// BatchGenerator is the subset of the embedding use case the worker drives
type BatchGenerator interface {
	BatchGenerate(ctx context.Context) (*model.BatchResult, error)
}

// EmbeddingBackfillWorker periodically embeds entries that have no embedding
// yet, e.g. ones created while the provider was failing.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
type EmbeddingBackfillWorker struct {
	generator BatchGenerator
	interval  time.Duration
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func NewEmbeddingBackfillWorker(generator BatchGenerator, interval time.Duration) *EmbeddingBackfillWorker {
	return &EmbeddingBackfillWorker{
		generator: generator,
		interval:  interval,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background loop. The first run happens immediately in
// the background and does not block server startup.
func (w *EmbeddingBackfillWorker) Start(ctx context.Context) error {
	if w.interval <= 0 {
		return goerr.Wrap(model.ErrConfiguration, "backfill interval must be positive",
			goerr.V("interval", w.interval.String()))
	}

	logging.From(ctx).Info("embedding backfill worker starting",
		"interval", w.interval.String())

	go w.run(ctx)
	return nil
}

// Stop signals the worker to stop and waits for the running cycle to finish
func (w *EmbeddingBackfillWorker) Stop() {
	logging.Default().Info("embedding backfill worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("embedding backfill worker stopped")
}

func (w *EmbeddingBackfillWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	// A stop request must abort an in-flight batch too
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	w.backfill(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.backfill(ctx)

		case <-ctx.Done():
			logging.From(ctx).Info("embedding backfill worker context done")
			return
		}
	}
}

func (w *EmbeddingBackfillWorker) backfill(ctx context.Context) {
	startTime := time.Now()

	result, err := w.generator.BatchGenerate(ctx)
	if err != nil {
		_ = errutil.Handle(ctx, err, "embedding backfill failed (will retry next interval)")
		return
	}
	if result.Total == 0 {
		return
	}

	logging.From(ctx).Info("embedding backfill completed",
		"processed", result.Processed,
		"failed", result.Failed,
		"total", result.Total,
		"duration", time.Since(startTime).String())
}
