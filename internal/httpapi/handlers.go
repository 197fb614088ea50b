package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"servehours.org/internal/auth"
	"servehours.org/internal/hours"
	"servehours.org/internal/obs"
)

// ReadyProbe reports storage readiness (DB ping when configured).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP surface over the session/claims core.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	provider auth.Provider
	resolver *auth.Resolver
	service  *hours.Service
	workflow *hours.Workflow

	emailDomain string
	rateBurst   int
	ratePerSec  int
}

// New wires the routes. The email domain gates sign-up before any provider
// call is made.
func New(rp ReadyProbe, version string, provider auth.Provider, resolver *auth.Resolver, service *hours.Service, workflow *hours.Workflow, emailDomain string) *API {
	a := &API{
		mux:         http.NewServeMux(),
		readyProbe:  rp,
		version:     version,
		provider:    provider,
		resolver:    resolver,
		service:     service,
		workflow:    workflow,
		emailDomain: emailDomain,
		rateBurst:   20,
		ratePerSec:  10,
	}

	a.mux.HandleFunc("/healthz", a.handleHealthz)
	a.mux.HandleFunc("/readyz", a.handleReady)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/signup", a.handleSignUp)
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/session", a.handleSession)

	a.mux.HandleFunc("/v1/hours", a.handleHours)
	a.mux.HandleFunc("/v1/hours/history", a.handleHistory)

	a.mux.HandleFunc("/v1/review/pending", a.handlePending)
	a.mux.HandleFunc("/v1/review/", a.handleReview)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = withRequestID(h)
	h = Logging(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	return obs.Instrument(h)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "servehours-api",
		"version": a.version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func respondError(w http.ResponseWriter, err error) {
	writeError(w, statusForError(err), err.Error())
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// statusForError maps the core error taxonomy onto HTTP codes: validation
// 422, authorization 403, conflict 409, credential problems 401, everything
// else is a store failure.
func statusForError(err error) int {
	var verr *hours.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, auth.ErrEmailDomain):
		return http.StatusUnprocessableEntity
	case errors.Is(err, hours.ErrUnauthorized), errors.Is(err, auth.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, hours.ErrNotPending):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, hours.ErrNotFound), errors.Is(err, auth.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", raw)
}
