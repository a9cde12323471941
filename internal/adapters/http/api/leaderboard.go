package api

import (
	"net/http"
	"strconv"

	"github.com/okian/pbspread/internal/domain/catalog"
)

// LeaderboardHandler serves ranked entries for one event.
type LeaderboardHandler struct {
	reader   Reader
	maxLimit int
}

// NewLeaderboardHandler creates a leaderboard handler.
func NewLeaderboardHandler(reader Reader, maxLimit int) *LeaderboardHandler {
	if maxLimit < 1 {
		maxLimit = 1
	}
	return &LeaderboardHandler{reader: reader, maxLimit: maxLimit}
}

// HandleGet handles GET /leaderboard/{key}?limit=N. Without limit the
// maximum is used.
func (h *LeaderboardHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	key, err := catalog.ParseKey(r.PathValue("key"))
	if err != nil {
		writeReadError(w, op, err)
		return
	}

	n := h.maxLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err = strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		if n > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
			return
		}
	}

	board, err := h.reader.Board(r.Context(), key, n)
	if err != nil {
		writeReadError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, leaderboardDTO{Event: key.String(), Seq: board.Snapshot.Seq, Entries: toEntries(board.Entries)})
}
