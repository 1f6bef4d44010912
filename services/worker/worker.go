package worker

import (
	"context"
	"time"

	"github.com/dealmungchi/dealextractor/logger"
	"github.com/dealmungchi/dealextractor/services/publisher"
)

// Worker periodically trims the extraction event streams
type Worker struct {
	publisher publisher.Publisher
	interval  time.Duration
	log       *logger.Logger
}

// NewWorker creates a new worker
func NewWorker(pub publisher.Publisher, interval time.Duration) *Worker {
	return &Worker{
		publisher: pub,
		interval:  interval,
		log:       logger.ForPublisher(),
	}
}

// Start trims once immediately and then every interval until ctx ends.
// A non-positive interval disables the worker.
func (w *Worker) Start(ctx context.Context) error {
	if w.interval <= 0 {
		w.log.Info().Msg("Stream trimming disabled")
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.trim(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *Worker) trim(ctx context.Context) {
	start := time.Now()
	if err := w.publisher.TrimStreams(ctx); err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Stream trimming failed")
		}
		return
	}
	if logger.IsDebugEnabled() {
		w.log.Debug().Dur("elapsed", time.Since(start)).Msg("Streams trimmed")
	}
}
