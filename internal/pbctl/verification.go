package pbctl

import (
	"bytes"
	"context"
	"fmt"

	"github.com/okian/pbspread/internal/adapters/sheet"
	"github.com/okian/pbspread/internal/domain/catalog"
	"github.com/okian/pbspread/internal/domain/engine"
)

// verifyLeaderboard recomputes raw offline and checks that the served
// entries match the local ranking in order, name and pace.
func verifyLeaderboard(ctx context.Context, cat catalog.Catalog, config *Config, raw []byte, lb Leaderboard) error {
	rows, err := sheet.ParseCSV(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("parse uploaded sheet: %w", err)
	}
	res, err := engine.New(engine.WithCatalog(cat)).Compute(ctx, rows)
	if err != nil {
		return err
	}
	var want []Entry
	for _, s := range res.Sessions {
		if s.Event.Key != config.Event {
			continue
		}
		for i, r := range s.Ranked() {
			if i == config.TopN {
				break
			}
			want = append(want, Entry{Rank: i, Athlete: r.Athlete, Pace: r.PB.PaceText})
		}
	}
	return compareEntries(want, lb.Entries)
}

func compareEntries(want, got []Entry) error {
	if len(want) != len(got) {
		return fmt.Errorf("leaderboard has %d entries, expected %d", len(got), len(want))
	}
	for i := range want {
		w, g := want[i], got[i]
		if w.Athlete != g.Athlete || w.Pace != g.Pace {
			return fmt.Errorf("entry %d is %s %s, expected %s %s", i, g.Athlete, g.Pace, w.Athlete, w.Pace)
		}
		if g.Rank != i {
			return fmt.Errorf("entry %d carries rank %d", i, g.Rank)
		}
	}
	return nil
}
