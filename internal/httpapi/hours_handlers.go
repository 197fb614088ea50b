package httpapi

import (
	"net/http"

	"servehours.org/internal/audit"
	"servehours.org/internal/hours"
)

type submitRequest struct {
	Date          string  `json:"date"`
	Hours         float64 `json:"hours"`
	CustomTitle   string  `json:"custom_title,omitempty"`
	Description   string  `json:"description,omitempty"`
	ProofURL      string  `json:"proof_url,omitempty"`
	OpportunityID string  `json:"opportunity_id,omitempty"`
}

func (a *API) handleHours(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.submitHours(w, r)
	case http.MethodGet:
		a.listMyHours(w, r)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (a *API) submitHours(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}

	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	entry, err := a.service.Submit(r.Context(), principal, hours.SubmitInput{
		Date:          date,
		Hours:         req.Hours,
		CustomTitle:   req.CustomTitle,
		Description:   req.Description,
		ProofURL:      req.ProofURL,
		OpportunityID: req.OpportunityID,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "hours.submitted", map[string]any{
		"entry_id": entry.ID,
		"hours":    entry.Hours,
	})
	writeJSON(w, http.StatusCreated, entry)
}

func (a *API) listMyHours(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}

	entries, err := a.service.ListMine(r.Context(), principal)
	if err != nil {
		respondError(w, err)
		return
	}
	if entries == nil {
		entries = []hours.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	principal, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}

	archived, err := a.service.History(r.Context(), principal)
	if err != nil {
		respondError(w, err)
		return
	}
	total, err := a.service.ApprovedTotal(r.Context(), principal.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	if archived == nil {
		archived = []hours.Archived{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries":        archived,
		"approved_total": total,
	})
}
