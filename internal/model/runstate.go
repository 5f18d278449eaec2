package model

import (
	"sync/atomic"
	"time"
)

// RunConfig is the configuration snapshot taken at run start.
type RunConfig struct {
	MaxWorkers        int           `json:"max_workers"`
	MaxAttempts       int           `json:"max_attempts"`
	ResearchMaxTokens int           `json:"research_max_tokens"`
	EmailMaxTokens    int           `json:"email_max_tokens"`
	CallTimeout       time.Duration `json:"call_timeout"`
	ProfileLimit      int           `json:"profile_limit"`
}

// RunState carries per-run counters and the global cancellation flag. It is
// created at run start and never shared across runs.
type RunState struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Config    RunConfig `json:"config"`

	Planned   atomic.Int64 `json:"-"`
	Completed atomic.Int64 `json:"-"`
	Failed    atomic.Int64 `json:"-"`
	Skipped   atomic.Int64 `json:"-"`

	cancelled atomic.Bool
}

// NewRunState creates a run state with the given id and config snapshot.
func NewRunState(id string, cfg RunConfig) *RunState {
	return &RunState{
		ID:        id,
		StartedAt: time.Now().UTC(),
		Config:    cfg,
	}
}

// Cancel sets the global stop flag. In-flight calls run to their own
// timeout; undispatched items are reported as skipped.
func (s *RunState) Cancel() {
	s.cancelled.Store(true)
}

// Cancelled reports whether the stop flag has been set.
func (s *RunState) Cancelled() bool {
	return s.cancelled.Load()
}

// CountOutcome updates the run counters for one terminal result.
func (s *RunState) CountOutcome(outcome Outcome) {
	switch outcome {
	case OutcomeSuccess:
		s.Completed.Add(1)
	case OutcomeFailed:
		s.Failed.Add(1)
	case OutcomeSkipped:
		s.Skipped.Add(1)
	}
}

// Terminal returns the number of work items that reached a terminal outcome.
func (s *RunState) Terminal() int64 {
	return s.Completed.Load() + s.Failed.Load() + s.Skipped.Load()
}
