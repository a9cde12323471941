package sheet

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/pbspread/pkg/metrics"
)

// HTTPSource downloads a sheet published as CSV.
type HTTPSource struct {
	url      string
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
}

// NewHTTPSource creates a source for url.
func NewHTTPSource(url string, opts ...Option) *HTTPSource {
	s := &HTTPSource{
		url:      url,
		client:   http.DefaultClient,
		timeout:  15 * time.Second,
		maxBytes: defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Source.
func (s *HTTPSource) Name() string { return SourceHTTP }

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context) (*Payload, error) {
	start := time.Now()
	p, err := s.fetch(ctx)
	outcome, rows := "ok", 0
	if err != nil {
		outcome = "error"
		metrics.RecordErrorByComponent("sheet", "fetch")
	} else {
		rows = len(p.Rows)
	}
	metrics.RecordSheetFetch(SourceHTTP, outcome, float64(time.Since(start).Milliseconds()), rows)
	return p, err
}

func (s *HTTPSource) fetch(ctx context.Context) (*Payload, error) {
	if s.url == "" {
		return nil, ErrNoLocation
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrFetch, err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	raw, err := readLimited(resp.Body, s.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrFetch, err)
	}
	return NewPayload(SourceHTTP, raw)
}
