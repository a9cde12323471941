package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/okian/pbspread/internal/domain/catalog"
	"github.com/okian/pbspread/internal/domain/model"
	"github.com/okian/pbspread/pkg/metrics"
)

const defaultMaxLimit = 100

// published pairs a snapshot with lookup indexes built once at publish.
type published struct {
	snap     *Snapshot
	sessions map[catalog.EventKey]*model.Session
}

// SnapshotStore keeps one immutable snapshot behind an atomic pointer.
// Readers never block; Publish calls are serialized.
type SnapshotStore struct {
	mu       sync.Mutex
	current  atomic.Pointer[published]
	maxLimit int
}

// NewSnapshotStore creates an empty store.
func NewSnapshotStore(opts ...Option) *SnapshotStore {
	s := &SnapshotStore{maxLimit: defaultMaxLimit}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish implements Store.
func (s *SnapshotStore) Publish(_ context.Context, snap *Snapshot) error {
	if snap == nil || snap.Result == nil {
		return fmt.Errorf("publish: %w", ErrNoSnapshot)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur := s.current.Load(); cur != nil && snap.Seq <= cur.snap.Seq {
		return fmt.Errorf("publish seq %d over %d: %w", snap.Seq, cur.snap.Seq, ErrStale)
	}

	p := &published{
		snap:     snap,
		sessions: make(map[catalog.EventKey]*model.Session, len(snap.Result.Sessions)),
	}
	for _, sess := range snap.Result.Sessions {
		p.sessions[sess.Event.Key] = sess
	}
	s.current.Store(p)
	s.recordMetrics(snap)
	return nil
}

func (s *SnapshotStore) recordMetrics(snap *Snapshot) {
	metrics.RecordSnapshotPublished(snap.Seq, snap.ComputedAt.Unix())
	metrics.UpdateAthletes(len(snap.Result.Athletes))
	averaged := 0
	for _, sess := range snap.Result.Sessions {
		if sess.Average.Defined() {
			averaged++
		}
		metrics.UpdateRankedResults(sess.Event.Key.String(), len(sess.Ranked()))
	}
	metrics.UpdateSessionsWithAverage(averaged)
}

func (s *SnapshotStore) load() (*published, error) {
	p := s.current.Load()
	if p == nil {
		return nil, ErrNoSnapshot
	}
	return p, nil
}

// Current implements Store.
func (s *SnapshotStore) Current(_ context.Context) (*Snapshot, error) {
	p, err := s.load()
	if err != nil {
		return nil, err
	}
	return p.snap, nil
}

// Seq implements Store.
func (s *SnapshotStore) Seq(_ context.Context) uint64 {
	if p := s.current.Load(); p != nil {
		return p.snap.Seq
	}
	return 0
}

// Athletes implements Store.
func (s *SnapshotStore) Athletes(_ context.Context) ([]*model.Athlete, error) {
	p, err := s.load()
	if err != nil {
		return nil, err
	}
	return p.snap.Result.Athletes, nil
}

// Athlete implements Store.
func (s *SnapshotStore) Athlete(_ context.Context, id int) (*model.Athlete, error) {
	p, err := s.load()
	if err != nil {
		return nil, err
	}
	athletes := p.snap.Result.Athletes
	if id < 0 || id >= len(athletes) {
		return nil, fmt.Errorf("athlete %d: %w", id, ErrNotFound)
	}
	return athletes[id], nil
}

// Sessions implements Store.
func (s *SnapshotStore) Sessions(_ context.Context) ([]*model.Session, error) {
	p, err := s.load()
	if err != nil {
		return nil, err
	}
	return p.snap.Result.Sessions, nil
}

// Session implements Store.
func (s *SnapshotStore) Session(_ context.Context, key catalog.EventKey) (*model.Session, error) {
	p, err := s.load()
	if err != nil {
		return nil, err
	}
	sess, ok := p.sessions[key]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", key, ErrNotFound)
	}
	return sess, nil
}

// Leaderboard implements Store. n above the configured maximum is clamped.
func (s *SnapshotStore) Leaderboard(ctx context.Context, key catalog.EventKey, n int) ([]Entry, error) {
	b, err := s.Board(ctx, key, n)
	if err != nil {
		return nil, err
	}
	return b.Entries, nil
}

// Board implements Store.
func (s *SnapshotStore) Board(_ context.Context, key catalog.EventKey, n int) (*Board, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}
	n = min(n, s.maxLimit)

	p, err := s.load()
	if err != nil {
		return nil, err
	}
	sess, ok := p.sessions[key]
	if !ok {
		return nil, fmt.Errorf("leaderboard %s: %w", key, ErrNotFound)
	}
	athletes := p.snap.Result.Athletes

	ranked := sess.Ranked()
	out := make([]Entry, 0, min(n, len(ranked)))
	for _, r := range ranked[:min(n, len(ranked))] {
		e := Entry{
			Rank:        *r.PB.Rank,
			AthleteID:   r.AthleteID,
			Athlete:     r.Athlete,
			PaceText:    r.PB.PaceText,
			PaceSeconds: r.PB.PaceSeconds,
			Power:       r.PB.Power,
		}
		if r.AthleteID >= 0 && r.AthleteID < len(athletes) {
			e.Initials = athletes[r.AthleteID].Initials
		}
		out = append(out, e)
	}
	return &Board{Snapshot: p.snap, Entries: out}, nil
}
