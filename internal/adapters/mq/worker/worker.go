// Package worker runs the single recompute worker: it takes jobs off the
// queue, runs the derivation engine and publishes the result.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pbspread/internal/adapters/mq/queue"
	"github.com/okian/pbspread/internal/adapters/repository"
	"github.com/okian/pbspread/internal/domain/engine"
	"github.com/okian/pbspread/internal/domain/model"
	"github.com/okian/pbspread/pkg/logger"
	"github.com/okian/pbspread/pkg/metrics"
)

// Computer runs a full recompute.
type Computer interface {
	Compute(ctx context.Context, rows []model.Row) (*engine.Result, error)
}

// Publisher receives computed snapshots.
type Publisher interface {
	Publish(ctx context.Context, s *repository.Snapshot) error
	Seq(ctx context.Context) uint64
}

// Queue defines how the worker receives jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Stats counts what the worker has done since start.
type Stats struct {
	Published int64
	Dropped   int64
	Failed    int64
}

// RecomputeWorker processes jobs one at a time, so recomputes never
// overlap and publishes happen in job order.
type RecomputeWorker struct {
	queue     Queue
	computer  Computer
	publisher Publisher
	name      string
	logger    logger.Logger
	onFailure func(queue.Job)

	published atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64

	shutdown chan struct{}
	done     chan struct{}
}

// New creates a worker.
func New(q Queue, c Computer, p Publisher, opts ...Option) *RecomputeWorker {
	w := &RecomputeWorker{
		queue:     q,
		computer:  c,
		publisher: p,
		name:      "recompute",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run consumes jobs until ctx is done, Shutdown is called or the queue
// closes.
func (w *RecomputeWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Error(ctx, "recompute failed",
					logger.String("job", j.ID.String()),
					logger.Int64("seq", int64(j.Seq)), //nolint:gosec // sequence fits
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker after the current job.
func (w *RecomputeWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Stats returns the worker counters.
func (w *RecomputeWorker) Stats() Stats {
	return Stats{
		Published: w.published.Load(),
		Dropped:   w.dropped.Load(),
		Failed:    w.failed.Load(),
	}
}

func (w *RecomputeWorker) process(ctx context.Context, j queue.Job) error { //nolint:gocritic // hugeParam: Job arrives by value
	if j.Seq <= w.publisher.Seq(ctx) {
		w.drop(ctx, j)
		return nil
	}

	start := time.Now()
	res, err := w.computer.Compute(ctx, j.Rows)
	if err != nil {
		return w.fail(j, "compute", err)
	}
	recordCells(res.Stats)

	snap := &repository.Snapshot{
		ID:          uuid.New(),
		Seq:         j.Seq,
		Source:      j.Source,
		Fingerprint: j.Fingerprint,
		ComputedAt:  time.Now(),
		Result:      res,
	}
	if err := w.publisher.Publish(ctx, snap); err != nil {
		if errors.Is(err, repository.ErrStale) {
			w.drop(ctx, j)
			return nil
		}
		return w.fail(j, "publish", err)
	}

	metrics.RecordRecompute(float64(time.Since(start).Milliseconds()))
	w.published.Add(1)
	w.logger.Info(ctx, "snapshot published",
		logger.String("job", j.ID.String()),
		logger.String("source", j.Source),
		logger.Int("athletes", len(res.Athletes)),
		logger.Int("averaged", res.Stats.Averaged),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

func (w *RecomputeWorker) drop(ctx context.Context, j queue.Job) { //nolint:gocritic // hugeParam: Job arrives by value
	w.dropped.Add(1)
	metrics.RecordStaleJobDropped()
	w.logger.Debug(ctx, "stale job dropped", logger.String("job", j.ID.String()))
}

func (w *RecomputeWorker) fail(j queue.Job, stage string, err error) error { //nolint:gocritic // hugeParam: Job arrives by value
	w.failed.Add(1)
	metrics.RecordRecomputeError()
	metrics.RecordErrorByComponent("worker", stage)
	if w.onFailure != nil {
		w.onFailure(j)
	}
	return fmt.Errorf("%s job %s: %w", stage, j.ID, err)
}

func recordCells(st engine.Stats) {
	metrics.RecordPaceCells(metrics.PaceParsed, st.Parsed-st.Malformed)
	metrics.RecordPaceCells(metrics.PaceMalformed, st.Malformed)
	metrics.RecordPaceCells(metrics.PaceAbsent, st.Absent)
}
