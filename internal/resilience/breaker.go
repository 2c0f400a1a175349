// Package resilience provides the retry and circuit-breaking primitives used
// for calls to the remote commerce backend.
package resilience

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

// ErrOpenCircuit is returned when the circuit breaker refuses a request.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// Breaker is a consecutive-failure circuit breaker. After the configured
// number of failures it opens for a cool-off period, then lets a single probe
// through to decide between closing again and re-opening.
type Breaker struct {
	mu          sync.Mutex
	failures    int
	maxFailures int
	openFor     time.Duration
	openedAt    time.Time
	probing     bool
}

// NewBreaker constructs a breaker that opens after maxFailures consecutive
// failures and stays open for openFor.
func NewBreaker(maxFailures int, openFor time.Duration) *Breaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{maxFailures: maxFailures, openFor: openFor}
}

// Allow reports whether a request may proceed. While open it permits one
// probe request once the cool-off has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.maxFailures {
		return true
	}
	if b.probing {
		return false
	}
	if time.Since(b.openedAt) >= b.openFor {
		b.probing = true
		return true
	}
	return false
}

// Report records a request outcome.
func (b *Breaker) Report(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if success {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.maxFailures {
		b.openedAt = time.Now()
	}
}

// Open reports whether the breaker currently rejects requests.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures >= b.maxFailures && time.Since(b.openedAt) < b.openFor
}

// Backoff returns the exponential backoff delay for the given attempt with
// proportional jitter in [0, jitter].
func Backoff(base time.Duration, attempt int, jitter float64) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	if jitter > 0 {
		d += time.Duration(rand.Float64() * jitter * float64(d))
	}
	return d
}
