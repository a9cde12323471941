package pbctl

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/csv"
	"fmt"
	"io"
	"math/big"

	"github.com/google/uuid"

	"github.com/okian/pbspread/internal/domain/catalog"
	"github.com/okian/pbspread/internal/domain/model"
	"github.com/okian/pbspread/internal/domain/pace"
	"github.com/okian/pbspread/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	minBaseSplit       = 95.0 // 2km split in seconds per 500m
	baseSplitRange     = 35.0
	splitJitter        = 3.0
	blankChance        = 0.3
)

// splitOffsets is each event's split relative to the 2km split, in seconds
// per 500m. Shorter events are faster.
var splitOffsets = [catalog.Count]float64{
	catalog.M100:  -14,
	catalog.Min1:  -11,
	catalog.M500:  -8,
	catalog.K1:    -4,
	catalog.Min4:  -2,
	catalog.K2:    0,
	catalog.K5:    5,
	catalog.K6:    6,
	catalog.Min30: 8,
	catalog.K10:   9,
	catalog.Min60: 11,
	catalog.HM:    12,
	catalog.FM:    16,
}

var givenNames = []string{
	"Ada", "Bea", "Cal", "Dov", "Eli", "Fen", "Gus", "Hal",
	"Ivo", "Jo", "Kit", "Lou", "Mia", "Ned", "Ola", "Pip",
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

func getRandomIndex(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// GenerateSquad creates n athletes with plausible personal bests. Every
// athlete holds a 2km; other events are left blank at random.
func GenerateSquad(ctx context.Context, cat catalog.Catalog, n int) ([]model.Row, error) {
	rows := make([]model.Row, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generate squad: %w", err)
		}
		rows = append(rows, generateAthlete(cat))
	}
	logger.Get().Debug(ctx, "generated squad", logger.Int("athletes", n))
	return rows, nil
}

func generateAthlete(cat catalog.Catalog) model.Row {
	surname := uuid.New().String()[:6]
	row := model.Row{
		catalog.NameColumn: givenNames[getRandomIndex(len(givenNames))] + " " + surname,
	}
	base := minBaseSplit + getRandomFloat()*baseSplitRange
	for _, ev := range cat.Events() {
		if ev.Key != catalog.K2 && getRandomFloat() < blankChance {
			row[ev.Column] = ""
			continue
		}
		split := base + splitOffsets[ev.Key] + (getRandomFloat()-0.5)*splitJitter
		text := pace.FormatSeconds(split)
		if ev.Key == catalog.K6 {
			text = "6000m (" + text + ")"
		}
		row[ev.Column] = text
	}
	return row
}

// WriteCSV writes rows with the catalog's header.
func WriteCSV(w io.Writer, cat catalog.Catalog, rows []model.Row) error {
	cols := cat.Columns()
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(cols))
	for i, row := range rows {
		for j, c := range cols {
			record[j] = row[c]
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// encodeSquad renders rows as CSV bytes.
func encodeSquad(cat catalog.Catalog, rows []model.Row) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, cat, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
