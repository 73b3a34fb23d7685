package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testSession() *Session {
	s := NewSession()
	s.retryWaitMin = time.Millisecond
	s.retryWaitMax = 5 * time.Millisecond
	return s
}

func TestDoUnsupportedMethod(t *testing.T) {
	_, err := testSession().Do(context.Background(), "PATCH", "http://example.invalid/", Options{})

	var confErr *ConfigError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestDoKerberosUnavailable(t *testing.T) {
	_, err := testSession().Get(context.Background(), "http://example.invalid/", Options{KerberosAuth: true})

	var confErr *ConfigError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestDoClientCertWithoutKey(t *testing.T) {
	_, err := testSession().Get(context.Background(), "http://example.invalid/", Options{ClientCert: "cert.pem"})

	var confErr *ConfigError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestDoRetriesOnServerError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	resp, err := testSession().Get(context.Background(), srv.URL, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("got status %d, want 200", resp.StatusCode)
	}
	if string(resp.Body) != "ok" {
		t.Errorf("got body %q, want ok", resp.Body)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("server hit %d times, want 3", got)
	}
}

func TestDoRetryExhaustion(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testSession().Get(context.Background(), srv.URL, Options{})

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if netErr.Status != http.StatusBadGateway {
		t.Errorf("got last status %d, want 502", netErr.Status)
	}
	if netErr.Err == nil {
		t.Error("expected a wrapped cause for retry exhaustion")
	}
	// Initial attempt plus three retries.
	if got := hits.Load(); got != 4 {
		t.Errorf("server hit %d times, want 4", got)
	}
}

func TestDoNoRetryOnClientError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := testSession().Get(context.Background(), srv.URL, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("got status %d, want 404", resp.StatusCode)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hit %d times, want 1", got)
	}
}

func TestDoDisableRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	resp, err := testSession().Get(context.Background(), srv.URL, Options{DisableRetries: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("got status %d, want 503", resp.StatusCode)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hit %d times, want 1", got)
	}
}

func TestDoAuthHeaders(t *testing.T) {
	var auth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
	}))
	defer srv.Close()

	s := testSession()

	if _, err := s.Get(context.Background(), srv.URL, Options{BearerToken: "secret"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := auth.Load().(string); got != "Bearer secret" {
		t.Errorf("got Authorization %q, want bearer", got)
	}

	if _, err := s.Get(context.Background(), srv.URL, Options{Username: "user", Password: "pass"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.SetBasicAuth("user", "pass")
	if got := auth.Load().(string); got != req.Header.Get("Authorization") {
		t.Errorf("got Authorization %q, want basic", got)
	}
}

func TestDoJSONContentType(t *testing.T) {
	var contentType atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		contentType.Store(r.Header.Get("Content-Type"))
	}))
	defer srv.Close()

	_, err := testSession().Post(context.Background(), srv.URL, Options{Body: []byte(`{}`), JSON: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := contentType.Load().(string); got != "application/json" {
		t.Errorf("got Content-Type %q", got)
	}
}

func TestDoDisableRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", "http://example.invalid/#access_token=abc")
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	resp, err := testSession().Get(context.Background(), srv.URL, Options{DisableRedirects: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusFound {
		t.Errorf("got status %d, want 302", resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); got == "" {
		t.Error("expected Location header to be preserved")
	}
}

func TestDoStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprintln(w, "line one")
		flusher.Flush()
		fmt.Fprintln(w, "line two")
		flusher.Flush()
	}))
	defer srv.Close()

	resp, err := testSession().Get(context.Background(), srv.URL, Options{Stream: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Close()

	lines := resp.Lines()
	for i, want := range []string{"line one", "line two"} {
		line, ok := lines.Next()
		if !ok {
			t.Fatalf("stream ended after %d lines", i)
		}
		if line != want {
			t.Errorf("line %d: got %q, want %q", i, line, want)
		}
	}
	if line, ok := lines.Next(); ok {
		t.Errorf("expected end of stream, got %q", line)
	}
}
