// Package worker holds background jobs for the loan service.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"smartlib/pkg/requestcontext"
)

// Sweeper finds overdue loans, updates the overdue gauge and emits loan.overdue events.
type Sweeper interface {
	SweepOverdue(ctx context.Context) (int, error)
}

// OverdueWorker runs a Sweeper on a fixed interval.
type OverdueWorker struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *slog.Logger
}

func NewOverdueWorker(sweeper Sweeper, interval time.Duration, logger *slog.Logger) *OverdueWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &OverdueWorker{sweeper: sweeper, interval: interval, logger: logger}
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
// A failed sweep is logged and retried on the next tick.
func (w *OverdueWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	_, _ = w.SweepAt(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-ticker.C:
			_, _ = w.SweepAt(ctx, t)
		}
	}
}

// SweepAt runs one sweep with the clock pinned to now and reports how many
// loans were overdue.
func (w *OverdueWorker) SweepAt(ctx context.Context, now time.Time) (int, error) {
	ctx = requestcontext.WithTime(ctx, now)
	ctx = requestcontext.WithRequestID(ctx, "sweep-"+uuid.NewString())
	n, err := w.sweeper.SweepOverdue(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "overdue sweep failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return 0, err
	}
	return n, nil
}
