package api

import (
	"math"
	"time"

	"github.com/samber/lo"

	"github.com/okian/pbspread/internal/adapters/repository"
	"github.com/okian/pbspread/internal/domain/catalog"
	"github.com/okian/pbspread/internal/domain/model"
)

// Absent and non-finite numbers are written as null.

type pbDTO struct {
	Pace    string              `json:"pace"`
	Seconds *float64            `json:"seconds"`
	Power   *float64            `json:"power"`
	Rank    *int                `json:"rank"`
	Diffs   map[string]*float64 `json:"diffs"`
}

type athleteDTO struct {
	ID       int              `json:"id"`
	Name     string           `json:"name"`
	Initials string           `json:"initials"`
	PBs      map[string]pbDTO `json:"pbs"`
}

type resultDTO struct {
	AthleteID int    `json:"athlete_id"`
	Athlete   string `json:"athlete"`
	PB        *pbDTO `json:"pb"`
}

type averageDTO struct {
	Pace    string              `json:"pace"`
	Seconds *float64            `json:"seconds"`
	Power   *float64            `json:"power"`
	Holders int                 `json:"holders"`
	Diffs   map[string]*float64 `json:"diffs"`
}

type sessionDTO struct {
	Key     string      `json:"key"`
	Column  string      `json:"column"`
	Title   string      `json:"title"`
	Results []resultDTO `json:"results"`
	Average averageDTO  `json:"average"`
}

type entryDTO struct {
	Rank      int      `json:"rank"`
	AthleteID int      `json:"athlete_id"`
	Athlete   string   `json:"athlete"`
	Initials  string   `json:"initials"`
	Pace      string   `json:"pace"`
	Seconds   *float64 `json:"seconds"`
	Power     *float64 `json:"power"`
}

type leaderboardDTO struct {
	Event   string     `json:"event"`
	Seq     uint64     `json:"seq"`
	Entries []entryDTO `json:"entries"`
}

type snapshotDTO struct {
	ID         string    `json:"id"`
	Seq        uint64    `json:"seq"`
	Source     string    `json:"source"`
	ComputedAt time.Time `json:"computed_at"`
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	JobID     string `json:"job_id,omitempty"`
	Seq       uint64 `json:"seq,omitempty"`
	Rows      int    `json:"rows"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func num(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func diffsDTO(d model.Diffs) map[string]*float64 {
	if d == nil {
		return map[string]*float64{}
	}
	return lo.MapEntries(d, func(k catalog.EventKey, v float64) (string, *float64) {
		return k.String(), num(v)
	})
}

func toPB(pb *model.PersonalBest) *pbDTO {
	if pb == nil {
		return nil
	}
	return &pbDTO{
		Pace:    pb.PaceText,
		Seconds: num(pb.PaceSeconds),
		Power:   num(pb.Power),
		Rank:    pb.Rank,
		Diffs:   diffsDTO(pb.Diffs),
	}
}

func toAthlete(a *model.Athlete) athleteDTO {
	return athleteDTO{
		ID:       a.ID,
		Name:     a.Name,
		Initials: a.Initials,
		PBs: lo.MapEntries(a.PBs, func(k catalog.EventKey, pb *model.PersonalBest) (string, pbDTO) {
			return k.String(), *toPB(pb)
		}),
	}
}

func toAthletes(athletes []*model.Athlete) []athleteDTO {
	return lo.Map(athletes, func(a *model.Athlete, _ int) athleteDTO { return toAthlete(a) })
}

func toSession(s *model.Session) sessionDTO {
	out := sessionDTO{
		Key:    s.Event.Key.String(),
		Column: s.Event.Column,
		Title:  s.Event.Title,
		Results: lo.Map(s.Results, func(r model.Result, _ int) resultDTO {
			return resultDTO{AthleteID: r.AthleteID, Athlete: r.Athlete, PB: toPB(r.PB)}
		}),
	}
	if avg := s.Average; avg != nil {
		out.Average = averageDTO{
			Pace:    avg.PaceText,
			Seconds: num(avg.PaceSeconds),
			Power:   num(avg.Power),
			Holders: avg.Holders,
			Diffs:   diffsDTO(avg.Diffs),
		}
	}
	return out
}

func toSessions(sessions []*model.Session) []sessionDTO {
	return lo.Map(sessions, func(s *model.Session, _ int) sessionDTO { return toSession(s) })
}

func toEntries(entries []repository.Entry) []entryDTO {
	return lo.Map(entries, func(e repository.Entry, _ int) entryDTO {
		return entryDTO{
			Rank:      e.Rank,
			AthleteID: e.AthleteID,
			Athlete:   e.Athlete,
			Initials:  e.Initials,
			Pace:      e.PaceText,
			Seconds:   num(e.PaceSeconds),
			Power:     num(e.Power),
		}
	})
}

func toSnapshot(s *repository.Snapshot) snapshotDTO {
	return snapshotDTO{ID: s.ID.String(), Seq: s.Seq, Source: s.Source, ComputedAt: s.ComputedAt}
}
