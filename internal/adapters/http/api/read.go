package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/pbspread/internal/adapters/repository"
	"github.com/okian/pbspread/internal/domain/catalog"
)

// writeReadError maps store errors onto HTTP statuses.
func writeReadError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, repository.ErrNoSnapshot):
		writeError(w, http.StatusServiceUnavailable, "no_snapshot", Wrap(op, err))
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, catalog.ErrUnknownEvent):
		writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
	case errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}

// AthletesHandler serves athletes and their personal bests.
type AthletesHandler struct {
	reader Reader
}

// NewAthletesHandler creates an athletes handler.
func NewAthletesHandler(reader Reader) *AthletesHandler {
	return &AthletesHandler{reader: reader}
}

// HandleList handles GET /athletes.
func (h *AthletesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	athletes, err := h.reader.Athletes(r.Context())
	if err != nil {
		writeReadError(w, "api.list_athletes", err)
		return
	}
	writeJSON(w, http.StatusOK, toAthletes(athletes))
}

// HandleGet handles GET /athletes/{id}, where id is the row index.
func (h *AthletesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_athlete"
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	a, err := h.reader.Athlete(r.Context(), id)
	if err != nil {
		writeReadError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toAthlete(a))
}

// SessionsHandler serves per-event sessions.
type SessionsHandler struct {
	reader Reader
}

// NewSessionsHandler creates a sessions handler.
func NewSessionsHandler(reader Reader) *SessionsHandler {
	return &SessionsHandler{reader: reader}
}

// HandleList handles GET /sessions.
func (h *SessionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.reader.Sessions(r.Context())
	if err != nil {
		writeReadError(w, "api.list_sessions", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessions(sessions))
}

// HandleGet handles GET /sessions/{key}.
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_session"
	key, err := catalog.ParseKey(r.PathValue("key"))
	if err != nil {
		writeReadError(w, op, err)
		return
	}
	s, err := h.reader.Session(r.Context(), key)
	if err != nil {
		writeReadError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toSession(s))
}

// HandleSnapshot handles GET /snapshot, the metadata of the published result.
func (h *SessionsHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.reader.Current(r.Context())
	if err != nil {
		writeReadError(w, "api.get_snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshot(snap))
}
