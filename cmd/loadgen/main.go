package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"
)

// loadgen drives synthetic submission traffic at a running API so rate
// limiting, metrics, and the review queue can be observed under load.
func main() {
	var (
		baseURL  = flag.String("base-url", "http://localhost:8080", "API base URL")
		workers  = flag.Int("workers", 4, "Concurrent worker count")
		duration = flag.Duration("duration", 2*time.Minute, "Duration of the run")
		domain   = flag.String("domain", "@wws.k12.in.us", "Allowed email domain")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Printf("Launching loadgen: base=%s workers=%d duration=%s", *baseURL, *workers, *duration)

	client := &http.Client{Timeout: 10 * time.Second}

	var successes, failures, rateLimited, serverErrors int64

	var wg sync.WaitGroup
	deadline := time.Now().Add(*duration)

	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id*9973)))

			email := fmt.Sprintf("loadgen-%d-%d%s", time.Now().UnixNano(), id, *domain)
			token, err := register(ctx, client, *baseURL, email)
			if err != nil {
				log.Printf("worker %d register: %v", id, err)
				return
			}

			for time.Now().Before(deadline) {
				select {
				case <-ctx.Done():
					return
				default:
				}
				code, err := submit(ctx, client, *baseURL, token, rnd)
				if err != nil && code == 0 {
					atomic.AddInt64(&failures, 1)
					continue
				}
				switch {
				case code < 300:
					atomic.AddInt64(&successes, 1)
				case code == http.StatusTooManyRequests:
					atomic.AddInt64(&failures, 1)
					atomic.AddInt64(&rateLimited, 1)
					time.Sleep(250 * time.Millisecond)
				default:
					atomic.AddInt64(&failures, 1)
					atomic.AddInt64(&serverErrors, 1)
					time.Sleep(200 * time.Millisecond)
				}
				time.Sleep(time.Duration(50+rnd.Intn(120)) * time.Millisecond)
			}
		}(i)
	}

	wg.Wait()

	log.Printf("Run complete: %d success / %d failed (rate_limited=%d, server_errors=%d)",
		successes, failures, rateLimited, serverErrors)
}

func register(ctx context.Context, client *http.Client, baseURL, email string) (string, error) {
	if _, err := post(ctx, client, baseURL+"/v1/auth/signup", "", map[string]any{
		"email":     email,
		"password":  "loadgenpass123",
		"full_name": "Load Generator",
		"grade":     "12",
	}, nil); err != nil {
		return "", err
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if _, err := post(ctx, client, baseURL+"/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": "loadgenpass123",
	}, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("empty access token for %s", email)
	}
	return out.AccessToken, nil
}

func submit(ctx context.Context, client *http.Client, baseURL, token string, rnd *rand.Rand) (int, error) {
	day := time.Now().AddDate(0, 0, -rnd.Intn(30))
	return post(ctx, client, baseURL+"/v1/hours", token, map[string]any{
		"date":         day.Format("2006-01-02"),
		"hours":        0.5 + float64(rnd.Intn(8))*0.5,
		"custom_title": fmt.Sprintf("synthetic activity %d", rnd.Intn(1000)),
	}, nil)
}

func post(ctx context.Context, client *http.Client, url, token string, in, out any) (int, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("%s: %s", url, resp.Status)
	}
	return resp.StatusCode, nil
}
