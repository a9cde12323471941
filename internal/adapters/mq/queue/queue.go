// Package queue holds pending recompute jobs between producers (the poll
// loop and the HTTP upload) and the recompute worker.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pbspread/internal/domain/model"
	"github.com/okian/pbspread/pkg/metrics"
)

const defaultCapacity = 16

// Job is a full recompute request. Seq orders jobs across producers; the
// worker drops a job whose Seq is not newer than the published snapshot.
type Job struct {
	ID          uuid.UUID
	Seq         uint64
	Source      string
	Fingerprint string
	Rows        []model.Row
	SubmittedAt time.Time
}

// Queue provides non-blocking enqueue and channel-based dequeue.
type Queue interface {
	// Enqueue adds a job. It returns false when the queue is full or closed.
	Enqueue(ctx context.Context, j Job) bool

	// Dequeue returns a channel of jobs, closed when the queue closes.
	Dequeue(ctx context.Context) <-chan Job

	Len(ctx context.Context) int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a bounded queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a job to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) bool { //nolint:gocritic // hugeParam: Job is sent by value
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.reject("closed")
		return false
	}

	select {
	case <-ctx.Done():
		q.reject("context_cancelled")
		return false
	default:
	}

	select {
	case q.jobs <- j:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.jobs))
		return true
	default:
		q.reject("queue_full")
		return false
	}
}

func (q *InMemoryQueue) reject(reason string) {
	metrics.RecordQueueEnqueueError()
	metrics.RecordErrorByComponent("queue", reason)
}

// Dequeue returns a channel that receives jobs as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for j := range q.jobs {
			select {
			case out <- j:
				metrics.RecordQueueDequeue()
				metrics.UpdateQueueSize(len(q.jobs))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the number of pending jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	n := len(q.jobs)
	metrics.UpdateQueueSize(n)
	return n
}

// Close stops accepting jobs. Pending jobs are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
