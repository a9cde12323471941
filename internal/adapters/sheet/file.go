package sheet

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/okian/pbspread/pkg/metrics"
)

// FileSource reads a sheet from a local CSV file on every fetch.
type FileSource struct {
	path string
}

// NewFileSource creates a source for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name implements Source.
func (s *FileSource) Name() string { return SourceFile }

// Fetch implements Source.
func (s *FileSource) Fetch(ctx context.Context) (*Payload, error) {
	start := time.Now()
	p, err := s.read(ctx)
	outcome, rows := "ok", 0
	if err != nil {
		outcome = "error"
		metrics.RecordErrorByComponent("sheet", "read")
	} else {
		rows = len(p.Rows)
	}
	metrics.RecordSheetFetch(SourceFile, outcome, float64(time.Since(start).Milliseconds()), rows)
	return p, err
}

func (s *FileSource) read(ctx context.Context) (*Payload, error) {
	if s.path == "" {
		return nil, ErrNoLocation
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return NewPayload(SourceFile, raw)
}
