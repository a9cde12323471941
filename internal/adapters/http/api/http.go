// Package api serves the computed squad statistics over HTTP and accepts
// refresh and upload requests.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/pbspread/internal/adapters/repository"
	"github.com/okian/pbspread/internal/domain/catalog"
	"github.com/okian/pbspread/internal/domain/model"
)

// Reader exposes the published snapshot.
type Reader interface {
	Current(ctx context.Context) (*repository.Snapshot, error)
	Athletes(ctx context.Context) ([]*model.Athlete, error)
	Athlete(ctx context.Context, id int) (*model.Athlete, error)
	Sessions(ctx context.Context) ([]*model.Session, error)
	Session(ctx context.Context, key catalog.EventKey) (*model.Session, error)
	Board(ctx context.Context, key catalog.EventKey, n int) (*repository.Board, error)
}

// Submission describes what happened to submitted sheet content.
type Submission struct {
	Duplicate bool
	JobID     string
	Seq       uint64
	Rows      int
}

// Submitter turns sheet content into recompute jobs. Errors carry the
// kinds ErrBackpressure, ErrNoSource, ErrUpstream or ErrBadRequest.
type Submitter interface {
	Refresh(ctx context.Context) (Submission, error)
	SubmitCSV(ctx context.Context, raw []byte) (Submission, error)
}

// StatsProvider reports service statistics.
type StatsProvider interface {
	GetStats() map[string]any
}

// Server wires HTTP routes for the business API.
type Server struct {
	health      *HealthHandler
	stats       *StatsHandler
	athletes    *AthletesHandler
	sessions    *SessionsHandler
	leaderboard *LeaderboardHandler
	submit      *SubmitHandler
}

// NewServer creates the API server with all handlers.
func NewServer(reader Reader, submitter Submitter, stats StatsProvider, maxLimit int) *Server {
	return &Server{
		health:      NewHealthHandler(),
		stats:       NewStatsHandler(stats),
		athletes:    NewAthletesHandler(reader),
		sessions:    NewSessionsHandler(reader),
		leaderboard: NewLeaderboardHandler(reader, maxLimit),
		submit:      NewSubmitHandler(submitter),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.health.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.stats.HandleStats, "stats"))
	mux.HandleFunc("GET /snapshot", MetricsMiddleware(s.sessions.HandleSnapshot, "snapshot"))
	mux.HandleFunc("GET /athletes", MetricsMiddleware(s.athletes.HandleList, "athletes"))
	mux.HandleFunc("GET /athletes/{id}", MetricsMiddleware(s.athletes.HandleGet, "athlete"))
	mux.HandleFunc("GET /sessions", MetricsMiddleware(s.sessions.HandleList, "sessions"))
	mux.HandleFunc("GET /sessions/{key}", MetricsMiddleware(s.sessions.HandleGet, "session"))
	mux.HandleFunc("GET /leaderboard/{key}", MetricsMiddleware(s.leaderboard.HandleGet, "leaderboard"))
	mux.HandleFunc("POST /refresh", MetricsMiddleware(s.submit.HandleRefresh, "refresh"))
	mux.HandleFunc("POST /rows", MetricsMiddleware(s.submit.HandleRows, "rows"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
