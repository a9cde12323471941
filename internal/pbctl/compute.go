package pbctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/samber/lo"

	"github.com/okian/pbspread/internal/adapters/sheet"
	"github.com/okian/pbspread/internal/domain/engine"
	"github.com/okian/pbspread/internal/domain/model"
)

// Summary is the offline compute report.
type Summary struct {
	Athletes  int              `json:"athletes"`
	Parsed    int              `json:"parsed"`
	Absent    int              `json:"absent"`
	Malformed int              `json:"malformed"`
	Sessions  []SessionSummary `json:"sessions"`
}

// SessionSummary reports one event's average and leaders.
type SessionSummary struct {
	Key     string   `json:"key"`
	Title   string   `json:"title"`
	Average string   `json:"average"`
	Power   *float64 `json:"power"`
	Holders int      `json:"holders"`
	Leaders []Entry  `json:"leaders"`
}

// ComputeFile reads a CSV sheet from path, runs the engine and writes a
// JSON summary with the top n leaders of every event.
func ComputeFile(ctx context.Context, path string, n int, w io.Writer) error {
	payload, err := sheet.NewFileSource(path).Fetch(ctx)
	if err != nil {
		return err
	}
	res, err := engine.Compute(ctx, payload.Rows)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Summarize(res, n)); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

// Summarize condenses a compute result.
func Summarize(res *engine.Result, n int) Summary {
	return Summary{
		Athletes:  len(res.Athletes),
		Parsed:    res.Stats.Parsed,
		Absent:    res.Stats.Absent,
		Malformed: res.Stats.Malformed,
		Sessions: lo.Map(res.Sessions, func(s *model.Session, _ int) SessionSummary {
			ranked := s.Ranked()
			return SessionSummary{
				Key:     s.Event.Key.String(),
				Title:   s.Event.Title,
				Average: s.Average.PaceText,
				Power:   finite(s.Average.Power),
				Holders: s.Average.Holders,
				Leaders: lo.Map(ranked[:min(max(n, 0), len(ranked))], func(r model.Result, i int) Entry {
					return Entry{
						Rank:      i,
						AthleteID: r.AthleteID,
						Athlete:   r.Athlete,
						Pace:      r.PB.PaceText,
						Seconds:   finite(r.PB.PaceSeconds),
						Power:     finite(r.PB.Power),
					}
				}),
			}
		}),
	}
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
