package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
)

func TestFallbackFirstResponseWinsEvenOnServerError(t *testing.T) {
	s := newCSRFServer(t)

	var secondHit int32
	s.mux.HandleFunc("/api/v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	s.mux.HandleFunc("/api/v2/tasks", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&secondHit, 1)
		w.WriteHeader(http.StatusOK)
	})

	c := newTestClient(t, s.srv.URL)
	resp, err := c.do(context.Background(), http.MethodGet, []string{"/api/v1/tasks", "/api/v2/tasks"}, nil)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp == nil {
		t.Fatal("expected the 500 response back")
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 from the first candidate", resp.StatusCode)
	}
	if atomic.LoadInt32(&secondHit) != 0 {
		t.Error("second candidate was tried despite a settled response")
	}
}

func TestFallbackAdvancesOnTransportFailure(t *testing.T) {
	s := newCSRFServer(t)

	// first candidate kills the connection without a response
	s.mux.HandleFunc("/api/flaky", func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Fatal("recorder does not support hijacking")
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			t.Fatalf("hijack: %v", err)
		}
		conn.Close()
	})
	s.mux.HandleFunc("/api/stable", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	c := newTestClient(t, s.srv.URL)
	resp, err := c.do(context.Background(), http.MethodGet, []string{"/api/flaky", "/api/stable"}, nil)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp == nil {
		t.Fatal("expected fallback to reach the stable candidate")
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestFallbackAllCandidatesUnreachable(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")

	resp, err := c.do(context.Background(), http.MethodGet, []string{"/api/a", "/api/b"}, nil)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp != nil {
		t.Fatalf("expected nil response, got %v", resp.Status)
	}

	// the typed layer maps the nil settle to ErrNoResponse
	if _, getErr := c.GetTask(context.Background(), "any"); getErr != ErrNoResponse {
		t.Errorf("GetTask error = %v, want ErrNoResponse", getErr)
	}
}

func Test419TriggersExactlyOneRetry(t *testing.T) {
	s := newCSRFServer(t)

	var attempts int32
	s.mux.HandleFunc("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		token, _ := url.QueryUnescape(r.Header.Get(csrfHeaderName))
		if n == 1 || token != s.currentToken() {
			// simulate a rotated session token
			s.rotateToken("token-2")
			w.WriteHeader(statusPageExpired)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	c := newTestClient(t, s.srv.URL)
	ctx := context.Background()
	if err := c.EnsureCSRF(ctx); err != nil {
		t.Fatalf("ensure csrf: %v", err)
	}

	resp, err := c.do(ctx, http.MethodPost, []string{"/api/tasks"}, map[string]string{"title": "x"})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp == nil {
		t.Fatal("expected a response")
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want 201 after token refresh", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Errorf("endpoint hit %d times, want exactly 2", got)
	}
	if hits := atomic.LoadInt32(&s.cookieHits); hits != 2 {
		t.Errorf("cookie endpoint hit %d times, want bootstrap + refresh", hits)
	}
}

func TestPersistent419SettlesAfterSingleRetry(t *testing.T) {
	s := newCSRFServer(t)

	var attempts int32
	s.mux.HandleFunc("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(statusPageExpired)
	})

	c := newTestClient(t, s.srv.URL)
	ctx := context.Background()
	if err := c.EnsureCSRF(ctx); err != nil {
		t.Fatalf("ensure csrf: %v", err)
	}

	resp, err := c.do(ctx, http.MethodPost, []string{"/api/tasks"}, nil)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp == nil {
		t.Fatal("expected the second 419 back")
	}
	resp.Body.Close()

	if resp.StatusCode != statusPageExpired {
		t.Errorf("status = %d, want 419", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Errorf("endpoint hit %d times, want exactly 2", got)
	}
}

func Test419RetryHappensEvenWhenRefreshFails(t *testing.T) {
	var cookieHits, attempts int32

	mux := http.NewServeMux()
	mux.HandleFunc("/sanctum/csrf-cookie", func(w http.ResponseWriter, r *http.Request) {
		// first hit bootstraps; the refresh after the 419 breaks
		if atomic.AddInt32(&cookieHits, 1) > 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: csrfCookieName, Value: "token-1", Path: "/"})
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusPageExpired)
		fmt.Fprint(w, `{"message":"CSRF token mismatch."}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ctx := context.Background()
	if err := c.EnsureCSRF(ctx); err != nil {
		t.Fatalf("ensure csrf: %v", err)
	}

	resp, err := c.do(ctx, http.MethodPost, []string{"/api/tasks"}, nil)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp == nil {
		t.Fatal("expected the retried 419 back")
	}
	defer resp.Body.Close()

	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Errorf("endpoint hit %d times, want retry despite failed refresh", got)
	}
	if resp.StatusCode != statusPageExpired {
		t.Errorf("status = %d, want 419", resp.StatusCode)
	}

	// the settled response must be readable by the caller
	payload, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		t.Fatalf("caller could not read the settled body: %v", readErr)
	}
	if !strings.Contains(string(payload), "CSRF token mismatch") {
		t.Errorf("body = %s", payload)
	}
}

func TestReadOnlyWebPathStillBootstrapsCSRF(t *testing.T) {
	s := newCSRFServer(t)
	s.mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	c := newTestClient(t, s.srv.URL)
	resp, err := c.do(context.Background(), http.MethodGet, []string{"/user"}, nil)
	if err != nil || resp == nil {
		t.Fatalf("resp=%v err=%v", resp, err)
	}
	resp.Body.Close()

	if hits := atomic.LoadInt32(&s.cookieHits); hits != 1 {
		t.Errorf("cookie endpoint hits = %d, want bootstrap even for a read", hits)
	}
}

func TestWebPathsBootstrapCSRFBeforeFirstAttempt(t *testing.T) {
	s := newCSRFServer(t)

	var sawToken string
	s.mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		sawToken, _ = url.QueryUnescape(r.Header.Get(csrfHeaderName))
		w.WriteHeader(http.StatusOK)
	})

	c := newTestClient(t, s.srv.URL)
	resp, err := c.do(context.Background(), http.MethodPost, []string{"/login"}, map[string]string{})
	if err != nil || resp == nil {
		t.Fatalf("resp=%v err=%v", resp, err)
	}
	resp.Body.Close()

	if atomic.LoadInt32(&s.cookieHits) != 1 {
		t.Errorf("cookie endpoint hits = %d, want 1", s.cookieHits)
	}
	if sawToken != "token-1" {
		t.Errorf("login saw token %q", sawToken)
	}
}
