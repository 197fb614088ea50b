package httpapi

import (
	"net/http"
	"strings"

	"servehours.org/internal/audit"
	"servehours.org/internal/hours"
)

type reviewRequest struct {
	Decision  string `json:"decision"`
	Comment   string `json:"comment,omitempty"`
	Signature string `json:"signature"`
}

func (a *API) handlePending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	principal, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}

	pending, err := a.workflow.ListPending(r.Context(), principal)
	if err != nil {
		respondError(w, err)
		return
	}
	if pending == nil {
		pending = []hours.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": pending})
}

func (a *API) handleReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	principal, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}

	entryID := strings.TrimPrefix(r.URL.Path, "/v1/review/")
	if entryID == "" || strings.Contains(entryID, "/") {
		http.NotFound(w, r)
		return
	}

	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := a.workflow.Review(r.Context(), principal, entryID, hours.Decision(req.Decision), req.Comment, req.Signature)
	if err != nil {
		respondError(w, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "hours.reviewed", map[string]any{
		"entry_id": entryID,
		"decision": string(rec.Status),
	})
	writeJSON(w, http.StatusOK, rec)
}
