package worker

import (
	"context"
	"log/slog"
	"time"
)

type Config struct {
	Name      string
	Interval  time.Duration
	Processor Processor
}

type Processor interface {
	RunCycle(ctx context.Context) error
}

// Worker drives a processor on a fixed interval from a single goroutine;
// one cycle always runs to completion before the next begins.
type Worker struct {
	name      string
	interval  time.Duration
	processor Processor
}

func New(cfg Config) *Worker {
	return &Worker{
		name:      cfg.Name,
		interval:  cfg.Interval,
		processor: cfg.Processor,
	}
}

func (w *Worker) Run(ctx context.Context) {
	slog.InfoContext(ctx, "Worker started...", "worker", w.name, "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// First cycle runs immediately; changes landing during startup should
	// not wait out a full interval.
	w.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Worker stopped...", "worker", w.name)
			return
		case <-ticker.C:
			w.cycle(ctx)
		}
	}
}

func (w *Worker) cycle(ctx context.Context) {
	if err := w.processor.RunCycle(ctx); err != nil {
		slog.ErrorContext(ctx, "Cycle failed, will retry on next tick",
			"worker", w.name, "error", err)
	}
}
