package tasks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/leonkenneth/RNB-coeur/internal/area"
	"github.com/leonkenneth/RNB-coeur/internal/metrics"
)

// Publisher runs the publication of a list of areas.
type Publisher interface {
	Publish(ctx context.Context, areas []area.Area) error
}

// Worker consumes tasks and runs them one at a time.
type Worker struct {
	queue     Dequeuer
	publisher Publisher

	// ErrorBackoff is the pause after a queue error (default: 5s)
	ErrorBackoff time.Duration
}

// NewWorker creates a Worker.
func NewWorker(queue Dequeuer, publisher Publisher) *Worker {
	return &Worker{queue: queue, publisher: publisher, ErrorBackoff: 5 * time.Second}
}

// Run handles tasks until ctx is cancelled. A failed task is nacked and
// logged; the worker moves on to the next one.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("worker started")
	for {
		if err := ctx.Err(); err != nil {
			slog.Info("worker stopped")
			return nil
		}

		d, err := w.queue.Dequeue(ctx)
		switch {
		case errors.Is(err, ErrNoTask):
			continue
		case ctx.Err() != nil:
			slog.Info("worker stopped")
			return nil
		case err != nil:
			slog.Error("dequeue failed", "error", err)
			if !sleep(ctx, w.ErrorBackoff) {
				return nil
			}
			continue
		}

		w.Handle(ctx, d)
	}
}

// Handle runs one delivery and acknowledges it.
func (w *Worker) Handle(ctx context.Context, d *Delivery) {
	logger := slog.With("task_id", d.Task.ID, "task", d.Task.Name, "args", d.Task.Args)
	start := time.Now()

	err := w.run(ctx, d.Task)
	metrics.ObserveJob(d.Task.Name, err)

	if err != nil {
		logger.Error("task failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		if nerr := d.Nack(); nerr != nil {
			logger.Error("nack failed", "error", nerr)
		}
		return
	}

	logger.Info("task done", "duration_ms", time.Since(start).Milliseconds())
	if aerr := d.Ack(); aerr != nil {
		logger.Error("ack failed", "error", aerr)
	}
}

func (w *Worker) run(ctx context.Context, t Task) error {
	areas, err := t.Areas()
	if err != nil {
		return err
	}
	return w.publisher.Publish(ctx, areas)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
