package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/greyfinance/ach-engine/internal/observability"
	"github.com/greyfinance/ach-engine/internal/service"
)

// ReturnPollWorker periodically polls the processor's return directory and
// applies settlement windows.
type ReturnPollWorker struct {
	svc      *service.ReconciliationService
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewReturnPollWorker constructs a worker with a default hourly interval.
func NewReturnPollWorker(svc *service.ReconciliationService) *ReturnPollWorker {
	return &ReturnPollWorker{
		svc:      svc,
		interval: time.Hour,
		stopCh:   make(chan struct{}),
	}
}

// WithInterval updates the poll interval.
func (w *ReturnPollWorker) WithInterval(interval time.Duration) *ReturnPollWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and polls at the configured interval.
func (w *ReturnPollWorker) Start(ctx context.Context) {
	zap.L().Info("return poll worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately at startup.
	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("return poll worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("return poll worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop signals the loop to exit and waits until any in-flight poll has
// finished.
func (w *ReturnPollWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	w.wg.Wait()
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *ReturnPollWorker) Run(ctx context.Context) func() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.Start(ctx)
	}()
	return w.Stop
}

func (w *ReturnPollWorker) runOnce(ctx context.Context) {
	result, err := w.svc.Run(ctx)
	if err != nil {
		observability.IncrementWorkerRun("return_poll", "failed")
		zap.L().Error("return poll run failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("return_poll", "success")
	if result.FilesProcessed > 0 || result.Returns > 0 || result.Settled > 0 {
		zap.L().Info("return poll run complete",
			zap.Int("files_processed", result.FilesProcessed),
			zap.Int("returns", result.Returns),
			zap.Int("unmatched", result.Unmatched),
			zap.Int("settled", result.Settled),
		)
	}
}
