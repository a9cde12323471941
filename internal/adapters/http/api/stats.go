package api

import "net/http"

// StatsHandler handles stats requests.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats handles GET /stats.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	if h.provider == nil {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, h.provider.GetStats())
}
