// Package model contains the domain entities produced by a recompute.
package model

import (
	"math"

	"github.com/okian/pbspread/internal/domain/catalog"
)

// Row is one spreadsheet row: column name -> raw cell text.
type Row map[string]string

// Diffs maps an event to the ratio of this value's power to that event's
// power. A missing key means either side was absent.
type Diffs map[catalog.EventKey]float64

// PersonalBest is an athlete's best effort for one event.
type PersonalBest struct {
	PaceText    string  // normalized pace string, e.g. "1:45.3"
	PaceSeconds float64 // seconds-equivalent over the reference distance
	Power       float64 // cube-law power, comparable across events

	// Rank is the 0-based leaderboard position within the event, nil until
	// ranking runs.
	Rank  *int
	Diffs Diffs
}

// Diff returns the ratio against event k.
func (pb *PersonalBest) Diff(k catalog.EventKey) (float64, bool) {
	if pb == nil {
		return 0, false
	}
	v, ok := pb.Diffs[k]
	return v, ok
}

// Malformed reports whether the pace text failed to parse into a number.
func (pb *PersonalBest) Malformed() bool {
	return pb != nil && math.IsNaN(pb.Power)
}

// Athlete is one input row after parsing.
type Athlete struct {
	ID       int // position in the input rows
	Name     string
	Initials string
	PBs      map[catalog.EventKey]*PersonalBest
}

// PB returns the athlete's personal best for k, or nil.
func (a *Athlete) PB(k catalog.EventKey) *PersonalBest {
	if a == nil {
		return nil
	}
	return a.PBs[k]
}

// Result is one athlete's entry in a session. PB points at the value owned
// by the athlete; it is nil when the athlete has no result for the event.
type Result struct {
	AthleteID int
	Athlete   string
	PB        *PersonalBest
}

// Power returns the result's power, treating absent and NaN as zero.
func (r Result) Power() float64 {
	if r.PB == nil || math.IsNaN(r.PB.Power) {
		return 0
	}
	return r.PB.Power
}

// Average is the squad mean for one event.
type Average struct {
	PaceText    string
	PaceSeconds float64
	Power       float64 // NaN when Holders is zero
	Holders     int     // athletes contributing to the mean
	Diffs       Diffs
}

// Defined reports whether the average carries a usable power value.
func (a *Average) Defined() bool {
	return a != nil && a.Holders > 0 && UsablePower(a.Power)
}

// Session is the per-event view over all athletes.
type Session struct {
	Event   catalog.Event
	Results []Result
	Average *Average
}

// Ranked returns the results holding a personal best, in rank order.
func (s *Session) Ranked() []Result {
	out := make([]Result, 0, len(s.Results))
	for _, r := range s.Results {
		if r.PB != nil && r.PB.Rank != nil {
			out = append(out, r)
		}
	}
	return out
}

// UsablePower reports whether a power value takes part in averages and
// average diffs. Zero and NaN do not count.
func UsablePower(v float64) bool {
	return v != 0 && !math.IsNaN(v)
}
