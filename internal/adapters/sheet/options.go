package sheet

import (
	"net/http"
	"time"
)

// Option applies a configuration option to an HTTPSource.
type Option func(*HTTPSource)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *HTTPSource) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *HTTPSource) {
		if c != nil {
			s.client = c
		}
	}
}

// WithMaxBytes caps the response body size.
func WithMaxBytes(n int64) Option {
	return func(s *HTTPSource) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}
