package tor

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func fastPolicy(retries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:    retries,
		BackoffFactor: time.Millisecond,
		StatusCodes:   []int{429, 500, 502, 503, 504},
	}
}

// statusSequence serves the given statuses in order, repeating the last one.
func statusSequence(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := int(calls.Add(1)) - 1
		if n >= len(statuses) {
			n = len(statuses) - 1
		}
		w.WriteHeader(statuses[n])
		_, _ = io.WriteString(w, http.StatusText(statuses[n]))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func get(t *testing.T, rt http.RoundTripper, ctx context.Context, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	return rt.RoundTrip(req)
}

// TestRetryTransport covers the retry contract of the proxy layer.
func TestRetryTransport(t *testing.T) {
	t.Parallel()

	t.Run("retries retriable status until success", func(t *testing.T) {
		t.Parallel()

		srv, calls := statusSequence(t, 503, 502, 200)
		rt := &RetryTransport{Policy: fastPolicy(3)}

		resp, err := get(t, rt, context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("RoundTrip() error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
		if got := calls.Load(); got != 3 {
			t.Errorf("attempts = %d, want 3", got)
		}
	})

	t.Run("returns last response when retries are exhausted", func(t *testing.T) {
		t.Parallel()

		srv, calls := statusSequence(t, 503)
		rt := &RetryTransport{Policy: fastPolicy(3)}

		resp, err := get(t, rt, context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("RoundTrip() error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		if string(body) != "Service Unavailable" {
			t.Errorf("body = %q, last response body should be readable", body)
		}
		if got := calls.Load(); got != 4 {
			t.Errorf("attempts = %d, want 1 + 3 retries", got)
		}
	})

	t.Run("does not retry other statuses", func(t *testing.T) {
		t.Parallel()

		srv, calls := statusSequence(t, 404)
		rt := &RetryTransport{Policy: fastPolicy(3)}

		resp, err := get(t, rt, context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("RoundTrip() error = %v", err)
		}
		resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusNotFound || calls.Load() != 1 {
			t.Errorf("status = %d after %d attempts, want 404 after 1", resp.StatusCode, calls.Load())
		}
	})

	t.Run("zero retries means a single attempt", func(t *testing.T) {
		t.Parallel()

		srv, calls := statusSequence(t, 500)
		rt := &RetryTransport{Policy: fastPolicy(0)}

		resp, err := get(t, rt, context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("RoundTrip() error = %v", err)
		}
		resp.Body.Close() //nolint:errcheck

		if calls.Load() != 1 {
			t.Errorf("attempts = %d, want 1", calls.Load())
		}
	})

	t.Run("retries transport errors then gives up", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		failing := roundTripFunc(func(*http.Request) (*http.Response, error) {
			calls.Add(1)
			return nil, errors.New("general SOCKS server failure")
		})
		rt := &RetryTransport{Base: failing, Policy: fastPolicy(2)}

		_, err := get(t, rt, context.Background(), "http://example.onion/")
		if err == nil {
			t.Fatal("expected error")
		}
		if calls.Load() != 3 {
			t.Errorf("attempts = %d, want 3", calls.Load())
		}
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		var calls atomic.Int32
		rt := &RetryTransport{
			Base: roundTripFunc(func(*http.Request) (*http.Response, error) {
				calls.Add(1)
				cancel()
				return nil, context.Canceled
			}),
			Policy: RetryPolicy{MaxRetries: 5, BackoffFactor: time.Hour},
		}

		_, err := get(t, rt, ctx, "http://example.onion/")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
		if calls.Load() != 1 {
			t.Errorf("attempts = %d, want 1", calls.Load())
		}
	})

	t.Run("sets user agent when missing", func(t *testing.T) {
		t.Parallel()

		var got atomic.Value
		srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			got.Store(r.Header.Get("User-Agent"))
		}))
		defer srv.Close()

		rt := &RetryTransport{Policy: fastPolicy(0), UserAgent: "chhaya/1"}
		resp, err := get(t, rt, context.Background(), srv.URL)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close() //nolint:errcheck

		if got.Load() != "chhaya/1" {
			t.Errorf("User-Agent = %v, want chhaya/1", got.Load())
		}
	})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// TestDefaultRetryPolicy documents the default retriable statuses.
func TestDefaultRetryPolicy(t *testing.T) {
	t.Parallel()

	p := DefaultRetryPolicy()
	for _, code := range []int{429, 500, 502, 503, 504} {
		if !p.Retriable(code) {
			t.Errorf("status %d should be retriable", code)
		}
	}
	for _, code := range []int{200, 301, 400, 403, 404, 501} {
		if p.Retriable(code) {
			t.Errorf("status %d should not be retriable", code)
		}
	}
	if p.MaxRetries != 3 || p.BackoffFactor != time.Second {
		t.Errorf("unexpected defaults: %+v", p)
	}
}
