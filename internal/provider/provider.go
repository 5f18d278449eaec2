// Package provider binds the API clients to the two task kinds the
// scheduler dispatches. Each adapter owns its rate limiter and per-call
// timeout so the scheduler stays provider-agnostic.
package provider

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/prompt"
	"github.com/sells-group/outreach-cli/internal/resilience"
)

// ResearchProvider produces company/person research text for a profile.
type ResearchProvider interface {
	Research(ctx context.Context, p model.Profile, maxTokens int) (string, model.TokenUsage, error)
	Name() model.Provider
}

// EmailProvider produces an outreach email draft from a profile and its
// research text.
type EmailProvider interface {
	GenerateEmail(ctx context.Context, p model.Profile, researchText string, tmpl *prompt.Template, maxTokens int) (string, model.TokenUsage, error)
	Name() model.Provider
}

const (
	researchTemperature = 0.2
	emailTemperature    = 0.7
)

// wait blocks on the limiter and applies the per-call timeout. The returned
// cancel must be called when the provider call finishes.
func wait(ctx context.Context, limiter *rate.Limiter, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
	}
	if timeout > 0 {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		return callCtx, cancel, nil
	}
	return ctx, func() {}, nil
}

// guard wraps one provider call with the circuit breaker. While the circuit
// is open the call is rejected with ErrCircuitOpen, which retries like any
// other transient failure.
func guard(b *resilience.Breaker, fn func() (string, model.TokenUsage, error)) (string, model.TokenUsage, error) {
	if b != nil && !b.Allow() {
		return "", model.TokenUsage{}, resilience.ErrCircuitOpen
	}
	text, usage, err := fn()
	if b != nil {
		b.Record(err)
	}
	return text, usage, err
}
