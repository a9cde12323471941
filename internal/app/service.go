// Package service wires the sheet source, recompute queue, worker and
// snapshot store, and implements the dependencies of the HTTP API.
package service

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pbspread/internal/adapters/http/api"
	"github.com/okian/pbspread/internal/adapters/mq/queue"
	"github.com/okian/pbspread/internal/adapters/mq/worker"
	"github.com/okian/pbspread/internal/adapters/repository"
	"github.com/okian/pbspread/internal/adapters/sheet"
	"github.com/okian/pbspread/internal/domain/catalog"
	"github.com/okian/pbspread/internal/domain/dedupe"
	"github.com/okian/pbspread/internal/domain/engine"
	"github.com/okian/pbspread/internal/domain/model"
	"github.com/okian/pbspread/pkg/logger"
	"github.com/okian/pbspread/pkg/metrics"
)

const (
	systemMetricsInterval = 5 * time.Second
	shutdownTimeout       = 5 * time.Second
)

// Service implements the API dependencies for the squad statistics system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   *repository.SnapshotStore
	deduper dedupe.Deduper
	queue   *queue.InMemoryQueue
	worker  *worker.RecomputeWorker
	engine  *engine.Engine
	source  sheet.Source

	// Configuration
	queueSize       int
	maxLimit        int
	refreshInterval time.Duration

	// submitMu keeps fingerprint check, sequence and enqueue in one order.
	submitMu sync.Mutex
	seq      atomic.Uint64

	// State
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithQueueSize sets the maximum number of pending recompute jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithMaxLeaderboardLimit caps leaderboard reads.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithSource sets the sheet source used by Refresh and the poll loop.
func WithSource(src sheet.Source) Option {
	return func(s *Service) {
		s.source = src
	}
}

// WithRefreshInterval sets the poll period. Zero disables polling.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.refreshInterval = d
		}
	}
}

// WithEngine replaces the default derivation engine.
func WithEngine(e *engine.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. Reads are served as soon as the first
// snapshot is published after Start.
func New(opts ...Option) *Service {
	s := &Service{
		queueSize: 16,
		maxLimit:  100,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.store = repository.NewSnapshotStore(repository.WithMaxLeaderboardLimit(s.maxLimit))
	// Only the latest accepted content is remembered, so a sheet that
	// returns to earlier content is recomputed.
	s.deduper = dedupe.NewFingerprintSet(dedupe.WithMaxSize(1))
	return s
}

// Start builds the queue and worker and starts the background loops.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.engine == nil {
		s.engine = engine.New(engine.WithLogger(s.logger.Named("engine")))
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.worker = worker.New(s.queue, s.engine, s.store,
		worker.WithLogger(s.logger.Named("worker")),
		worker.WithFailureHook(func(j queue.Job) {
			s.deduper.Unrecord(context.Background(), j.Fingerprint)
		}),
	)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.worker.Run(runCtx)
	}()
	go func() {
		defer s.wg.Done()
		s.runSystemMetrics(runCtx)
	}()

	if s.source != nil && s.refreshInterval > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.poll(runCtx)
		}()
	}
	if w, ok := s.source.(watcher); ok {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.watch(runCtx, w)
		}()
	}

	s.started = true
	s.logger.Info(ctx, "service started",
		logger.Int("queue_size", s.queueSize),
		logger.Int("max_leaderboard_limit", s.maxLimit),
		logger.Bool("polling", s.source != nil && s.refreshInterval > 0),
		logger.Duration("refresh_interval", s.refreshInterval),
	)
	return nil
}

// Stop shuts the loops down and closes the queue.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.cancel()
	if err := s.worker.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker shutdown", logger.Error(err))
	}
	_ = s.queue.Close()
	s.wg.Wait()
	s.logger.Info(ctx, "service stopped")
}

// poll fetches the sheet immediately and then every refresh interval.
func (s *Service) poll(ctx context.Context) {
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn(ctx, "scheduled refresh failed", logger.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// watcher is a source that can report changes as they happen.
type watcher interface {
	Watch(ctx context.Context, onChange func()) error
}

// watch refreshes whenever the source reports a change.
func (s *Service) watch(ctx context.Context, w watcher) {
	err := w.Watch(ctx, func() {
		if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn(ctx, "refresh on change failed", logger.Error(err))
		}
	})
	if err != nil {
		s.logger.Warn(ctx, "sheet watch stopped", logger.Error(err))
	}
}

func (s *Service) runSystemMetrics(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	var lastPauseNs uint64
	var lastNumGC uint32
	for {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		metrics.UpdateSystemMemoryUsage(ms.HeapAlloc)
		metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
		if n := ms.NumGC - lastNumGC; n > 0 && lastNumGC > 0 {
			metrics.RecordSystemGCPauseTime(float64(ms.PauseTotalNs-lastPauseNs) / float64(n) / 1e6)
		}
		lastPauseNs, lastNumGC = ms.PauseTotalNs, ms.NumGC

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Refresh fetches the configured sheet and queues a recompute unless the
// content is unchanged.
func (s *Service) Refresh(ctx context.Context) (api.Submission, error) {
	const op = "service.refresh"
	if s.source == nil {
		return api.Submission{}, api.NewKind(op, api.ErrNoSource)
	}
	p, err := s.source.Fetch(ctx)
	if err != nil {
		return api.Submission{}, api.WrapKind(op, api.ErrUpstream, err)
	}
	return s.submit(ctx, op, p)
}

// SubmitCSV queues a recompute of an uploaded sheet.
func (s *Service) SubmitCSV(ctx context.Context, raw []byte) (api.Submission, error) {
	const op = "service.submit_csv"
	p, err := sheet.NewPayload(sheet.SourceUpload, raw)
	if err != nil {
		return api.Submission{}, api.WrapKind(op, api.ErrBadRequest, err)
	}
	return s.submit(ctx, op, p)
}

func (s *Service) submit(ctx context.Context, op string, p *sheet.Payload) (api.Submission, error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return api.Submission{}, api.Wrap(op, errors.New("service not started"))
	}

	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	if s.deduper.SeenAndRecord(ctx, p.Fingerprint) {
		metrics.RecordDuplicateSheet()
		s.logger.Debug(ctx, "sheet unchanged", logger.String("source", p.Source))
		return api.Submission{Duplicate: true, Rows: len(p.Rows)}, nil
	}

	j := queue.Job{
		ID:          uuid.New(),
		Seq:         s.seq.Add(1),
		Source:      p.Source,
		Fingerprint: p.Fingerprint,
		Rows:        p.Rows,
		SubmittedAt: time.Now(),
	}
	if !s.queue.Enqueue(ctx, j) {
		s.deduper.Unrecord(ctx, p.Fingerprint)
		return api.Submission{}, api.NewKind(op, api.ErrBackpressure)
	}
	s.logger.Debug(ctx, "recompute queued",
		logger.String("job", j.ID.String()),
		logger.String("source", j.Source),
		logger.Int("rows", len(j.Rows)),
	)
	return api.Submission{JobID: j.ID.String(), Seq: j.Seq, Rows: len(j.Rows)}, nil
}

// Current returns the published snapshot.
func (s *Service) Current(ctx context.Context) (*repository.Snapshot, error) {
	return s.store.Current(ctx)
}

// Athletes returns every athlete of the published snapshot.
func (s *Service) Athletes(ctx context.Context) ([]*model.Athlete, error) {
	return s.store.Athletes(ctx)
}

// Athlete returns one athlete by row index.
func (s *Service) Athlete(ctx context.Context, id int) (*model.Athlete, error) {
	return s.store.Athlete(ctx, id)
}

// Sessions returns every session of the published snapshot.
func (s *Service) Sessions(ctx context.Context) ([]*model.Session, error) {
	return s.store.Sessions(ctx)
}

// Session returns one session by event key.
func (s *Service) Session(ctx context.Context, key catalog.EventKey) (*model.Session, error) {
	return s.store.Session(ctx, key)
}

// Leaderboard returns up to n ranked entries for an event.
func (s *Service) Leaderboard(ctx context.Context, key catalog.EventKey, n int) ([]repository.Entry, error) {
	return s.store.Leaderboard(ctx, key, n)
}

// Board returns leaderboard entries with the snapshot they came from.
func (s *Service) Board(ctx context.Context, key catalog.EventKey, n int) (*repository.Board, error) {
	return s.store.Board(ctx, key, n)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":        s.started,
		"queue_capacity": s.queueSize,
		"submitted_seq":  s.seq.Load(),
		"published_seq":  s.store.Seq(ctx),
		"has_source":     s.source != nil,
	}
	if s.source != nil {
		stats["source"] = s.source.Name()
	}
	if s.started {
		stats["queue_length"] = s.queue.Len(ctx)
		ws := s.worker.Stats()
		stats["recomputes_published"] = ws.Published
		stats["jobs_dropped"] = ws.Dropped
		stats["recomputes_failed"] = ws.Failed
	}
	if snap, err := s.store.Current(ctx); err == nil {
		stats["athletes"] = len(snap.Result.Athletes)
		stats["sessions_with_average"] = snap.Result.Stats.Averaged
		stats["malformed_cells"] = snap.Result.Stats.Malformed
		stats["computed_at"] = snap.ComputedAt.UTC().Format(time.RFC3339)
		stats["snapshot_source"] = snap.Source
	}
	return stats
}
