package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrCircuitOpen is returned when a call is rejected because the provider's
// circuit is open. It is transient: the item can be retried after backoff.
var ErrCircuitOpen = NewTransientError(eris.New("circuit breaker is open"), 0)

// Breaker is a per-provider circuit breaker. After FailureThreshold
// consecutive transient failures it rejects calls for ResetTimeout, then
// lets a single probe through. Permanent errors do not trip it: an auth
// failure on one profile says nothing about provider health.
type Breaker struct {
	FailureThreshold int
	ResetTimeout     time.Duration

	mu           sync.Mutex
	failures     int
	openedAt     time.Time
	probeInFlight bool
}

// NewBreaker creates a breaker with the given threshold and reset timeout.
// Zero values fall back to 5 failures and 30s.
func NewBreaker(threshold int, reset time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if reset <= 0 {
		reset = 30 * time.Second
	}
	return &Breaker{FailureThreshold: threshold, ResetTimeout: reset}
}

// Allow reports whether a call may proceed. While open, only one probe is
// admitted per ResetTimeout window.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.FailureThreshold {
		return true
	}
	if time.Since(b.openedAt) < b.ResetTimeout {
		return false
	}
	if b.probeInFlight {
		return false
	}
	b.probeInFlight = true
	return true
}

// Record reports a call outcome. A success closes the circuit; a transient
// failure counts toward the threshold.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probeInFlight = false
	if err == nil || IsPermanent(err) {
		b.failures = 0
		return
	}
	if !IsTransient(err) {
		return
	}
	b.failures++
	if b.failures == b.FailureThreshold {
		b.openedAt = time.Now()
	}
	if b.failures > b.FailureThreshold {
		// Failed probe re-opens the window.
		b.openedAt = time.Now()
		b.failures = b.FailureThreshold
	}
}
