package httpclient

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestDoSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New()
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestDoRetriesServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(WithMaxRetries(3), WithBaseDelay(time.Millisecond))
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do failed after retry: %v", err)
	}
	defer resp.Body.Close()
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestDoNoRetryOnClientError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(WithMaxRetries(3), WithBaseDelay(time.Millisecond))
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := client.Do(req)
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if resp != nil {
		resp.Body.Close()
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 4xx)", attempts)
	}
}

func TestDoRecreatesBodyOnRetry(t *testing.T) {
	var bodies []string
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		buf := make([]byte, 64)
		n, _ := r.Body.Read(buf)
		bodies = append(bodies, string(buf[:n]))
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(WithMaxRetries(2), WithBaseDelay(time.Millisecond))
	req, _ := http.NewRequest(http.MethodPost, server.URL, strings.NewReader("payload"))

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()

	if len(bodies) != 2 || bodies[0] != "payload" || bodies[1] != "payload" {
		t.Errorf("request bodies = %v, want payload twice", bodies)
	}
}

type trackedBody struct {
	io.ReadCloser
	closed *bool
}

func (b *trackedBody) Close() error {
	*b.closed = true
	return b.ReadCloser.Close()
}

// trackingTransport wraps every response body so tests can verify it was
// closed.
type trackingTransport struct {
	base   http.RoundTripper
	closed []*bool
}

func (tt *trackingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := tt.base.RoundTrip(req)
	if resp != nil {
		closed := false
		tt.closed = append(tt.closed, &closed)
		resp.Body = &trackedBody{ReadCloser: resp.Body, closed: &closed}
	}
	return resp, err
}

func TestDoClosesBodyBetweenRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("busy"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := &trackingTransport{base: http.DefaultTransport}
	client := New(
		WithHTTPClient(&http.Client{Transport: transport}),
		WithMaxRetries(3),
		WithBaseDelay(time.Millisecond),
	)
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	resp.Body.Close()

	if len(transport.closed) != 3 {
		t.Fatalf("responses = %d, want 3", len(transport.closed))
	}
	for i, closed := range transport.closed[:2] {
		if !*closed {
			t.Errorf("retried response %d body not closed", i)
		}
	}
}

func TestDefaultRetryStrategy(t *testing.T) {
	tests := []struct {
		status int
		want   RetryStrategy
	}{
		{http.StatusTooManyRequests, SmartRetry},
		{http.StatusServiceUnavailable, SmartRetry},
		{http.StatusInternalServerError, ConservativeRetry},
		{http.StatusBadGateway, ConservativeRetry},
		{http.StatusBadRequest, NoRetry},
		{http.StatusUnauthorized, NoRetry},
		{http.StatusOK, NoRetry},
	}

	for _, tt := range tests {
		if got := DefaultRetryStrategy(tt.status); got != tt.want {
			t.Errorf("DefaultRetryStrategy(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestParseOpenAIHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("Retry-After", "7")
	headers.Set("x-ratelimit-remaining-requests", "42")

	info := ParseOpenAIHeaders(headers)
	if info.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v, want 7s", info.RetryAfter)
	}
	if info.RequestsRemaining != 42 {
		t.Errorf("RequestsRemaining = %d, want 42", info.RequestsRemaining)
	}
}
