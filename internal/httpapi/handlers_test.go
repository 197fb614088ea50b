package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"servehours.org/internal/auth"
	"servehours.org/internal/hours"
)

type apiClient struct {
	baseURL  string
	client   *http.Client
	t        *testing.T
	provider *auth.LocalProvider
	profiles *auth.MemoryProfiles
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("SERVEHOURS_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	profiles := auth.NewMemoryProfiles()
	provider := auth.NewLocalProvider(auth.WithProfileWriter(profiles))
	resolver := auth.NewResolver(profiles)
	store := hours.NewInMemory()

	api := New(ReadyProbe{}, "test", provider, resolver,
		hours.NewService(store), hours.NewWorkflow(store), "@wws.k12.in.us")
	api.rateBurst = 100
	api.ratePerSec = 100

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL:  srv.URL,
		client:   srv.Client(),
		t:        t,
		provider: provider,
		profiles: profiles,
	}
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, headers map[string]string) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

// register creates an account, signs in, and returns the bearer headers plus
// the user id.
func (c *apiClient) register(email, fullName string) (map[string]string, string) {
	c.t.Helper()
	resp := c.post("/v1/auth/signup", map[string]any{
		"email":     email,
		"password":  "hunter2hunter2",
		"full_name": fullName,
		"grade":     "10",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		c.t.Fatalf("signup %s: unexpected status %d", email, resp.StatusCode)
	}

	login := c.post("/v1/auth/login", map[string]any{
		"email":    email,
		"password": "hunter2hunter2",
	}, nil)
	if login.StatusCode != http.StatusOK {
		c.t.Fatalf("login %s: unexpected status %d", email, login.StatusCode)
	}
	payload := decode[loginResponse](c.t, login)
	if payload.AccessToken == "" {
		c.t.Fatalf("empty access token issued")
	}
	return map[string]string{"Authorization": "Bearer " + payload.AccessToken}, payload.User.ID
}

// promote marks a registered account as an admin, optionally scoped.
func (c *apiClient) promote(email, opportunityID string) {
	c.t.Helper()
	id, ok := c.provider.AccountID(email)
	if !ok {
		c.t.Fatalf("no account for %s", email)
	}
	c.profiles.Put(auth.Profile{
		ID:            id,
		Email:         email,
		FullName:      "Reviewer",
		IsAdmin:       true,
		OpportunityID: opportunityID,
	})
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	c := newTestAPI(t)

	resp := c.get("/healthz", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %d", resp.StatusCode)
	}

	resp = c.get("/readyz", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz: %d", resp.StatusCode)
	}
}

func TestSignUpRejectsForeignDomain(t *testing.T) {
	c := newTestAPI(t)

	resp := c.post("/v1/auth/signup", map[string]any{
		"email":    "student@gmail.com",
		"password": "hunter2hunter2",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for foreign domain, got %d", resp.StatusCode)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	c := newTestAPI(t)

	resp := c.get("/v1/hours", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp = c.get("/v1/hours", map[string]string{"Authorization": "Bearer forged"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forged token, got %d", resp.StatusCode)
	}
}

func TestLogoutSucceedsWithoutValidToken(t *testing.T) {
	c := newTestAPI(t)

	resp := c.post("/v1/auth/logout", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout without token must be 204, got %d", resp.StatusCode)
	}

	resp = c.post("/v1/auth/logout", nil, map[string]string{"Authorization": "Bearer expired-or-garbage"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout with stale token must be 204, got %d", resp.StatusCode)
	}
}

func TestSubmitAndReviewFlow(t *testing.T) {
	c := newTestAPI(t)

	studentHeaders, studentID := c.register("student@wws.k12.in.us", "Sam Student")
	adminHeaders, _ := c.register("admin@wws.k12.in.us", "Pat Reviewer")
	c.promote("admin@wws.k12.in.us", "")

	submitted := c.post("/v1/hours", map[string]any{
		"date":         "2024-03-01",
		"hours":        2.5,
		"custom_title": "Food bank",
	}, studentHeaders)
	if submitted.StatusCode != http.StatusCreated {
		t.Fatalf("submit: unexpected status %d", submitted.StatusCode)
	}
	entry := decode[hours.Entry](t, submitted)
	if entry.UserID != studentID || entry.Status != hours.StatusPending {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	mine := decode[struct {
		Entries []hours.Entry `json:"entries"`
	}](t, c.get("/v1/hours", studentHeaders))
	if len(mine.Entries) != 1 || mine.Entries[0].ID != entry.ID {
		t.Fatalf("expected one active entry, got %+v", mine.Entries)
	}

	forbidden := c.get("/v1/review/pending", studentHeaders)
	forbidden.Body.Close()
	if forbidden.StatusCode != http.StatusForbidden {
		t.Fatalf("student listing pending must be 403, got %d", forbidden.StatusCode)
	}

	pending := decode[struct {
		Entries []hours.Entry `json:"entries"`
	}](t, c.get("/v1/review/pending", adminHeaders))
	if len(pending.Entries) != 1 {
		t.Fatalf("expected one pending entry, got %+v", pending.Entries)
	}

	unsigned := c.post("/v1/review/"+entry.ID, map[string]any{
		"decision": "approved",
	}, adminHeaders)
	unsigned.Body.Close()
	if unsigned.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unsigned review must be 422, got %d", unsigned.StatusCode)
	}

	reviewed := c.post("/v1/review/"+entry.ID, map[string]any{
		"decision":  "approved",
		"comment":   "verified",
		"signature": "P. Reviewer",
	}, adminHeaders)
	if reviewed.StatusCode != http.StatusOK {
		t.Fatalf("review: unexpected status %d", reviewed.StatusCode)
	}
	rec := decode[hours.Archived](t, reviewed)
	if rec.OriginalHoursID != entry.ID || rec.Status != hours.StatusApproved {
		t.Fatalf("unexpected archive record: %+v", rec)
	}

	conflict := c.post("/v1/review/"+entry.ID, map[string]any{
		"decision":  "rejected",
		"signature": "P. Reviewer",
	}, adminHeaders)
	conflict.Body.Close()
	if conflict.StatusCode != http.StatusConflict {
		t.Fatalf("second review must be 409, got %d", conflict.StatusCode)
	}

	history := decode[struct {
		Entries       []hours.Archived `json:"entries"`
		ApprovedTotal float64          `json:"approved_total"`
	}](t, c.get("/v1/hours/history", studentHeaders))
	if len(history.Entries) != 1 || history.ApprovedTotal != 2.5 {
		t.Fatalf("unexpected history: %+v total=%v", history.Entries, history.ApprovedTotal)
	}
}

func TestScopedReviewerSeesOnlyAssignedOpportunity(t *testing.T) {
	c := newTestAPI(t)

	studentHeaders, _ := c.register("student@wws.k12.in.us", "Sam Student")
	scopedHeaders, _ := c.register("scoped@wws.k12.in.us", "Scoped Reviewer")
	c.promote("scoped@wws.k12.in.us", "opp-1")

	for _, opp := range []string{"opp-1", "opp-2"} {
		resp := c.post("/v1/hours", map[string]any{
			"date":           "2024-03-01",
			"hours":          1.0,
			"opportunity_id": opp,
		}, studentHeaders)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("submit %s: %d", opp, resp.StatusCode)
		}
	}

	pending := decode[struct {
		Entries []hours.Entry `json:"entries"`
	}](t, c.get("/v1/review/pending", scopedHeaders))
	if len(pending.Entries) != 1 || pending.Entries[0].OpportunityID != "opp-1" {
		t.Fatalf("scoped listing leaked entries: %+v", pending.Entries)
	}
}

func TestSessionEndpointReflectsProfile(t *testing.T) {
	c := newTestAPI(t)

	headers, _ := c.register("student@wws.k12.in.us", "Sam Student")

	session := decode[struct {
		User auth.Principal `json:"user"`
	}](t, c.get("/v1/auth/session", headers))
	if session.User.Email != "student@wws.k12.in.us" {
		t.Fatalf("unexpected session user: %+v", session.User)
	}
	if session.User.IsAdmin {
		t.Fatalf("sign-up must never grant admin")
	}
	if session.User.FullName != "Sam Student" {
		t.Fatalf("provisioned full name lost: %+v", session.User)
	}
}

func TestSubmitValidationStatus(t *testing.T) {
	c := newTestAPI(t)
	headers, _ := c.register("student@wws.k12.in.us", "Sam Student")

	resp := c.post("/v1/hours", map[string]any{
		"date":  "2024-03-01",
		"hours": 0,
	}, headers)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for zero hours, got %d", resp.StatusCode)
	}

	resp = c.post("/v1/hours", map[string]any{
		"date":  "not-a-date",
		"hours": 2,
	}, headers)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed date, got %d", resp.StatusCode)
	}
}
