package api

import (
	"errors"
	"io"
	"net/http"
)

// maxUploadBytes caps a POST /rows body.
const maxUploadBytes = 8 << 20

// SubmitHandler accepts refresh and upload requests.
type SubmitHandler struct {
	submitter Submitter
}

// NewSubmitHandler creates a submit handler.
func NewSubmitHandler(submitter Submitter) *SubmitHandler {
	return &SubmitHandler{submitter: submitter}
}

// HandleRefresh handles POST /refresh: fetch the configured sheet now.
func (h *SubmitHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	sub, err := h.submitter.Refresh(r.Context())
	if err != nil {
		writeSubmitError(w, Wrap("api.refresh", err))
		return
	}
	writeAck(w, sub)
}

// HandleRows handles POST /rows with a CSV body.
func (h *SubmitHandler) HandleRows(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_rows"
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", WrapKind(op, ErrBadRequest, err))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(raw) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	sub, err := h.submitter.SubmitCSV(r.Context(), raw)
	if err != nil {
		writeSubmitError(w, Wrap(op, err))
		return
	}
	writeAck(w, sub)
}

func writeAck(w http.ResponseWriter, sub Submission) {
	if sub.Duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true, Rows: sub.Rows})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", JobID: sub.JobID, Seq: sub.Seq, Rows: sub.Rows})
}

func writeSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, ErrNoSource):
		writeError(w, http.StatusConflict, "no_source", err)
	case errors.Is(err, ErrUpstream):
		writeError(w, http.StatusBadGateway, "upstream_error", err)
	case errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
