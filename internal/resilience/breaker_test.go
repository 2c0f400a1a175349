package resilience

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("breaker closed too early on attempt %d", i)
		}
		b.Report(false)
	}
	if b.Allow() {
		t.Fatal("expected breaker to reject after threshold")
	}
	if !b.Open() {
		t.Fatal("expected breaker to report open")
	}
}

func TestBreakerProbesAfterCoolOff(t *testing.T) {
	b := NewBreaker(1, 10*time.Millisecond)
	b.Report(false)
	if b.Allow() {
		t.Fatal("expected rejection while open")
	}
	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("expected a probe after cool-off")
	}
	// Only one probe at a time.
	if b.Allow() {
		t.Fatal("expected concurrent probe to be rejected")
	}
	b.Report(true)
	if !b.Allow() {
		t.Fatal("expected breaker to close after successful probe")
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cl := Client{HTTP: srv.Client(), MaxAttempts: 3, BaseBackoff: time.Millisecond}
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := cl.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	cl := Client{HTTP: srv.Client(), MaxAttempts: 3, BaseBackoff: time.Millisecond}
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := cl.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestClientRespectsOpenBreaker(t *testing.T) {
	cl := Client{HTTP: http.DefaultClient, Breaker: NewBreaker(1, time.Minute), MaxAttempts: 2}
	cl.Breaker.Report(false)
	req, _ := http.NewRequest(http.MethodGet, "http://127.0.0.1:0", nil)
	_, err := cl.Do(context.Background(), req)
	if err != ErrOpenCircuit {
		t.Fatalf("expected ErrOpenCircuit, got %v", err)
	}
}
