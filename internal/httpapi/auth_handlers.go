package httpapi

import (
	"net/http"
	"strings"
	"time"

	"servehours.org/internal/audit"
	"servehours.org/internal/auth"
)

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Grade    string `json:"grade"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string         `json:"access_token"`
	ExpiresAt   time.Time      `json:"expires_at"`
	User        auth.Principal `json:"user"`
}

func (a *API) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	// The domain gate runs before the provider sees the request.
	if err := auth.CheckEmailDomain(email, a.emailDomain); err != nil {
		respondError(w, err)
		return
	}

	err := a.provider.SignUp(r.Context(), auth.SignUpInput{
		Email:    email,
		Password: req.Password,
		FullName: strings.TrimSpace(req.FullName),
		Grade:    strings.TrimSpace(req.Grade),
	})
	if err != nil {
		respondError(w, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.signup", map[string]any{"email": email})
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "pending_verification"})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	session, err := a.provider.SignInWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, err)
		return
	}

	principal := a.resolver.Resolve(r.Context(), session)
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{"user_id": principal.ID})

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: session.AccessToken,
		ExpiresAt:   session.ExpiresAt,
		User:        principal,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	// The local state is dropped even when the provider call fails.
	if err := a.provider.SignOut(r.Context()); err != nil {
		_ = audit.LogEvent(r.Context(), "auth.logout.provider_error", map[string]any{"error": err.Error()})
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	principal, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": principal})
}
