// Package repository stores the most recent computed result set and
// serves read queries from it.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pbspread/internal/domain/catalog"
	"github.com/okian/pbspread/internal/domain/engine"
	"github.com/okian/pbspread/internal/domain/model"
)

// Snapshot is one published recompute. It is never mutated after Publish.
type Snapshot struct {
	ID          uuid.UUID
	Seq         uint64
	Source      string
	Fingerprint string
	ComputedAt  time.Time
	Result      *engine.Result
}

// Entry is one leaderboard row.
type Entry struct {
	Rank        int // 0-based
	AthleteID   int
	Athlete     string
	Initials    string
	PaceText    string
	PaceSeconds float64
	Power       float64
}

// Store holds the published snapshot.
type Store interface {
	// Publish replaces the current snapshot. It returns ErrStale when
	// s.Seq is not newer than the published sequence.
	Publish(ctx context.Context, s *Snapshot) error

	// Current returns the published snapshot or ErrNoSnapshot.
	Current(ctx context.Context) (*Snapshot, error)

	// Seq returns the published sequence, 0 before the first publish.
	Seq(ctx context.Context) uint64

	Athletes(ctx context.Context) ([]*model.Athlete, error)
	Athlete(ctx context.Context, id int) (*model.Athlete, error)
	Sessions(ctx context.Context) ([]*model.Session, error)
	Session(ctx context.Context, key catalog.EventKey) (*model.Session, error)

	// Leaderboard returns up to n ranked entries for the event.
	Leaderboard(ctx context.Context, key catalog.EventKey, n int) ([]Entry, error)

	// Board is Leaderboard together with the snapshot the entries were
	// read from.
	Board(ctx context.Context, key catalog.EventKey, n int) (*Board, error)
}

// Board is a leaderboard read from a single snapshot.
type Board struct {
	Snapshot *Snapshot
	Entries  []Entry
}
