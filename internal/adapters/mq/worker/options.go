package worker

import (
	"github.com/okian/pbspread/internal/adapters/mq/queue"
	"github.com/okian/pbspread/pkg/logger"
)

// Option applies a configuration option to the RecomputeWorker.
type Option func(*RecomputeWorker)

// WithName sets the worker name used in logs.
func WithName(name string) Option {
	return func(w *RecomputeWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *RecomputeWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithFailureHook is called with every job whose recompute or publish
// failed, so producers can allow the same content again.
func WithFailureHook(fn func(queue.Job)) Option {
	return func(w *RecomputeWorker) {
		w.onFailure = fn
	}
}
