package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// smoke runs one full submit/review cycle against a live API: sign up a
// student and a reviewer, submit a claim, approve it, and confirm the hours
// land in the student's history. Requires SERVEHOURS_DEV_SEED on the server
// for the reviewer account, or a pre-provisioned admin profile.
func main() {
	base := os.Getenv("SERVEHOURS_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	domain := os.Getenv("SERVEHOURS_EMAIL_DOMAIN")
	if domain == "" {
		domain = "@wws.k12.in.us"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c := &client{base: base, http: &http.Client{Timeout: 10 * time.Second}}

	suffix := time.Now().UnixNano()
	studentEmail := fmt.Sprintf("smoke-%d%s", suffix, domain)

	if err := c.signUp(ctx, studentEmail, "smokepass123", "Smoke Student"); err != nil {
		log.Fatalf("signup: %v", err)
	}
	studentToken, err := c.login(ctx, studentEmail, "smokepass123")
	if err != nil {
		log.Fatalf("login student: %v", err)
	}

	entryID, err := c.submit(ctx, studentToken, 1.5)
	if err != nil {
		log.Fatalf("submit: %v", err)
	}
	log.Printf("submitted entry %s", entryID)

	adminToken, err := c.login(ctx, "admin"+domain, "devpassword")
	if err != nil {
		log.Fatalf("login admin (is SERVEHOURS_DEV_SEED set?): %v", err)
	}
	if err := c.review(ctx, adminToken, entryID); err != nil {
		log.Fatalf("review: %v", err)
	}

	total, err := c.approvedTotal(ctx, studentToken)
	if err != nil {
		log.Fatalf("history: %v", err)
	}
	if total != 1.5 {
		log.Fatalf("approved total mismatch: want 1.5, got %v", total)
	}
	fmt.Println("SMOKE OK: submit/approve cycle complete, total", total)
}

type client struct {
	base string
	http *http.Client
}

func (c *client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) signUp(ctx context.Context, email, password, fullName string) error {
	return c.do(ctx, http.MethodPost, "/v1/auth/signup", "", map[string]any{
		"email":     email,
		"password":  password,
		"full_name": fullName,
		"grade":     "11",
	}, nil)
}

func (c *client) login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	}, &out)
	return out.AccessToken, err
}

func (c *client) submit(ctx context.Context, token string, hours float64) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/hours", token, map[string]any{
		"date":         time.Now().Format("2006-01-02"),
		"hours":        hours,
		"custom_title": "smoke test",
	}, &out)
	return out.ID, err
}

func (c *client) review(ctx context.Context, token, entryID string) error {
	return c.do(ctx, http.MethodPost, "/v1/review/"+entryID, token, map[string]any{
		"decision":  "approved",
		"signature": "Smoke Reviewer",
	}, nil)
}

func (c *client) approvedTotal(ctx context.Context, token string) (float64, error) {
	var out struct {
		ApprovedTotal float64 `json:"approved_total"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/hours/history", token, nil, &out)
	return out.ApprovedTotal, err
}
