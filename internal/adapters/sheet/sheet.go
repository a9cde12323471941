// Package sheet loads squad spreadsheets published as CSV and turns them
// into header-keyed rows.
package sheet

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/okian/pbspread/internal/domain/model"
)

// Source names used in payloads and metrics.
const (
	SourceHTTP   = "http"
	SourceFile   = "file"
	SourceUpload = "upload"
)

// defaultMaxBytes caps a single sheet download.
const defaultMaxBytes = 8 << 20

// Payload is one loaded sheet.
type Payload struct {
	Source      string
	Fingerprint string // hex SHA-256 of the raw bytes
	Rows        []model.Row
	FetchedAt   time.Time
}

// Source loads the current sheet.
type Source interface {
	Fetch(ctx context.Context) (*Payload, error)
	Name() string
}

// Fingerprint returns the hex SHA-256 of raw.
func Fingerprint(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// NewPayload parses raw CSV into a payload tagged with source.
func NewPayload(source string, raw []byte) (*Payload, error) {
	rows, err := ParseCSV(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return &Payload{
		Source:      source,
		Fingerprint: Fingerprint(raw),
		Rows:        rows,
		FetchedAt:   time.Now(),
	}, nil
}

// ParseCSV reads a CSV whose first record is the header. Each following
// record becomes a Row keyed by header name. Short records are padded with
// empty cells and cells past the header are dropped. Blank lines are
// skipped.
func ParseCSV(r io.Reader) ([]model.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrParse, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var rows []model.Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}
		row := make(model.Row, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// readLimited reads at most limit bytes from r.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return raw, nil
}
