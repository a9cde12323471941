// Package engine derives personal bests, cross-event ratios, squad averages
// and per-event rankings from spreadsheet rows.
//
// Every stage works on freshly allocated values; nothing is shared between
// two Compute calls. Iteration order is the insertion order of the input
// rows, and ranking ties keep that order.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/okian/pbspread/internal/domain/catalog"
	"github.com/okian/pbspread/internal/domain/model"
	"github.com/okian/pbspread/internal/domain/pace"
	"github.com/okian/pbspread/pkg/logger"
)

// Result is the fully computed output of one recompute.
type Result struct {
	Athletes []*model.Athlete
	Sessions []*model.Session
	Stats    Stats
}

// Stats summarises the input cells of a recompute.
type Stats struct {
	Rows      int
	Parsed    int // cells that produced a personal best
	Absent    int // empty or unusable cells
	Malformed int // personal bests whose pace did not parse to a number
	Averaged  int // sessions with a defined average
	Duration  time.Duration
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithCatalog replaces the default event catalog.
func WithCatalog(cat catalog.Catalog) Option {
	return func(e *Engine) {
		if cat.Len() > 0 {
			e.catalog = cat
		}
	}
}

// WithLogger sets a logger for per-recompute debug output.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine runs the derivation pipeline against a fixed catalog.
type Engine struct {
	catalog catalog.Catalog
	logger  logger.Logger
}

// New creates an Engine using the default catalog.
func New(opts ...Option) *Engine {
	e := &Engine{catalog: catalog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the engine's event catalog.
func (e *Engine) Catalog() catalog.Catalog { return e.catalog }

// Compute runs the whole pipeline over rows. The only error is a context
// that is already done; bad cells never fail the pipeline.
func (e *Engine) Compute(ctx context.Context, rows []model.Row) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("compute: %w", err)
	}
	start := time.Now()

	athletes := BuildAthletes(e.catalog, rows)
	ComputeCrossDiffs(athletes, e.catalog)
	sessions := NewSessions(e.catalog)
	PopulateSessionResults(sessions, athletes)
	ComputeAverages(sessions)
	ComputeAverageDiffs(sessions)
	RankSessions(sessions, athletes)

	res := &Result{Athletes: athletes, Sessions: sessions}
	res.Stats = summarise(e.catalog, rows, athletes, sessions)
	res.Stats.Duration = time.Since(start)

	if e.logger != nil {
		e.logger.Debug(ctx, "recompute finished",
			logger.Int("rows", res.Stats.Rows),
			logger.Int("parsed", res.Stats.Parsed),
			logger.Int("absent", res.Stats.Absent),
			logger.Int("malformed", res.Stats.Malformed),
			logger.Int("averaged", res.Stats.Averaged),
			logger.Duration("took", res.Stats.Duration),
		)
	}
	return res, nil
}

// Compute runs the pipeline with the default catalog.
func Compute(ctx context.Context, rows []model.Row) (*Result, error) {
	return New().Compute(ctx, rows)
}

// BuildAthletes creates one athlete per row, in row order, parsing every
// catalog column with pace.ParsePace.
func BuildAthletes(cat catalog.Catalog, rows []model.Row) []*model.Athlete {
	events := cat.Events()
	athletes := make([]*model.Athlete, 0, len(rows))
	for i, row := range rows {
		name := row[catalog.NameColumn]
		a := &model.Athlete{
			ID:       i,
			Name:     name,
			Initials: Initials(name),
			PBs:      make(map[catalog.EventKey]*model.PersonalBest, len(events)),
		}
		for _, ev := range events {
			if pb := pace.ParsePace(row[ev.Column]); pb != nil {
				a.PBs[ev.Key] = pb
			}
		}
		athletes = append(athletes, a)
	}
	return athletes
}

// Initials returns the upper-cased first letters of the first two
// space-separated tokens of name.
func Initials(name string) string {
	tokens := strings.Split(name, " ")
	var b strings.Builder
	for _, tok := range tokens[:min(2, len(tokens))] {
		if r, _ := utf8.DecodeRuneInString(tok); tok != "" && r != utf8.RuneError {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// ComputeCrossDiffs sets PB[E].Diffs[F] = PB[E].Power / PB[F].Power for
// every pair of events the athlete holds, including E == F.
func ComputeCrossDiffs(athletes []*model.Athlete, cat catalog.Catalog) {
	events := cat.Events()
	for _, a := range athletes {
		for _, e := range events {
			pb := a.PB(e.Key)
			if pb == nil {
				continue
			}
			pb.Diffs = make(model.Diffs, len(events))
			for _, f := range events {
				other := a.PB(f.Key)
				if other == nil {
					continue
				}
				pb.Diffs[f.Key] = pb.Power / other.Power
			}
		}
	}
}

// NewSessions allocates one empty session per catalog event.
func NewSessions(cat catalog.Catalog) []*model.Session {
	events := cat.Events()
	sessions := make([]*model.Session, len(events))
	for i, ev := range events {
		sessions[i] = &model.Session{Event: ev}
	}
	return sessions
}

// PopulateSessionResults appends one result per athlete to every session,
// whether or not the athlete holds a personal best for it.
func PopulateSessionResults(sessions []*model.Session, athletes []*model.Athlete) {
	for _, s := range sessions {
		s.Results = make([]model.Result, 0, len(athletes))
		for _, a := range athletes {
			s.Results = append(s.Results, model.Result{
				AthleteID: a.ID,
				Athlete:   a.Name,
				PB:        a.PB(s.Event.Key),
			})
		}
	}
}

// ComputeAverages sets each session's mean power over the athletes holding
// a usable personal best, then converts it back to pace. A session nobody
// holds gets a NaN average.
func ComputeAverages(sessions []*model.Session) {
	for _, s := range sessions {
		var total float64
		var holders int
		for _, r := range s.Results {
			if r.PB != nil && model.UsablePower(r.PB.Power) {
				total += r.PB.Power
				holders++
			}
		}
		power := total / float64(holders) // 0/0 is NaN
		seconds := pace.SecondsFromPower(power)
		s.Average = &model.Average{
			PaceText:    pace.FormatSeconds(seconds),
			PaceSeconds: seconds,
			Power:       power,
			Holders:     holders,
		}
	}
}

// ComputeAverageDiffs is ComputeCrossDiffs over session averages.
func ComputeAverageDiffs(sessions []*model.Session) {
	for _, s := range sessions {
		if !s.Average.Defined() {
			continue
		}
		s.Average.Diffs = make(model.Diffs, len(sessions))
		for _, t := range sessions {
			if !t.Average.Defined() {
				continue
			}
			s.Average.Diffs[t.Event.Key] = s.Average.Power / t.Average.Power
		}
	}
}

// RankSessions stable-sorts each session by descending power, absent as
// zero, and writes the position onto the athlete's own personal best.
func RankSessions(sessions []*model.Session, athletes []*model.Athlete) {
	byID := make(map[int]*model.Athlete, len(athletes))
	for _, a := range athletes {
		byID[a.ID] = a
	}
	for _, s := range sessions {
		sort.SliceStable(s.Results, func(i, j int) bool {
			return s.Results[i].Power() > s.Results[j].Power()
		})
		for idx, r := range s.Results {
			if pb := byID[r.AthleteID].PB(s.Event.Key); pb != nil {
				rank := idx
				pb.Rank = &rank
			}
		}
	}
}

func summarise(cat catalog.Catalog, rows []model.Row, athletes []*model.Athlete, sessions []*model.Session) Stats {
	st := Stats{Rows: len(rows)}
	for _, a := range athletes {
		for _, pb := range a.PBs {
			st.Parsed++
			if pb.Malformed() {
				st.Malformed++
			}
		}
	}
	st.Absent = len(athletes)*cat.Len() - st.Parsed
	for _, s := range sessions {
		if s.Average.Defined() {
			st.Averaged++
		}
	}
	return st
}
