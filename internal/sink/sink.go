// Package sink applies terminal processing results: profile state in
// memory, ledger accounting, and batched writes back to the sheet.
package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/cost"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/pkg/sheets"
)

const (
	defaultBatchSize     = 10
	defaultFlushInterval = 15 * time.Second
)

// Config tunes batching and the flush retry policy.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	Retry         resilience.RetryConfig
}

// Sink collects results and persists cell updates in batches. A flush
// failure degrades to a warning; it never aborts the run.
type Sink struct {
	client sheets.Client
	sheet  *sheets.Sheet
	ledger *cost.Ledger
	calc   *cost.Calculator
	log    *zap.Logger
	cfg    Config

	mu          sync.Mutex
	staged      []sheets.CellUpdate
	annotations map[int][]model.FailureAnnotation
	skipped     int
	warnings    []string
	lastFlush   time.Time

	flushMu sync.Mutex
}

// New creates a sink writing through to the given sheet.
func New(client sheets.Client, sheet *sheets.Sheet, ledger *cost.Ledger, calc *cost.Calculator, log *zap.Logger, cfg Config) *Sink {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	return &Sink{
		client:      client,
		sheet:       sheet,
		ledger:      ledger,
		calc:        calc,
		log:         log,
		cfg:         cfg,
		annotations: make(map[int][]model.FailureAnnotation),
		lastFlush:   time.Now(),
	}
}

// Apply records one terminal result. Successful items update the in-memory
// profile, charge the ledger, and stage a cell write. Failures with realized
// usage still charge the ledger; gated failures carry zero usage and cost
// nothing.
func (s *Sink) Apply(ctx context.Context, res model.ProcessingResult) {
	switch res.Outcome {
	case model.OutcomeSuccess:
		s.applySuccess(ctx, res)
	case model.OutcomeFailed:
		s.applyFailure(res)
	case model.OutcomeSkipped:
		s.mu.Lock()
		s.skipped++
		s.mu.Unlock()
	}
}

func (s *Sink) applySuccess(ctx context.Context, res model.ProcessingResult) {
	p := res.Item.Profile

	var column string
	switch res.Item.Kind {
	case model.TaskResearch:
		p.Research = res.Text
		column = "research"
	case model.TaskEmail:
		p.Draft = res.Text
		column = "draft"
	}

	s.charge(res)

	s.mu.Lock()
	s.staged = append(s.staged, sheets.CellUpdate{
		Row:    p.Row,
		Column: s.sheet.Column(column),
		Value:  res.Text,
	})
	due := len(s.staged) >= s.cfg.BatchSize || time.Since(s.lastFlush) >= s.cfg.FlushInterval
	s.mu.Unlock()

	if due {
		s.Flush(ctx)
	}
}

func (s *Sink) applyFailure(res model.ProcessingResult) {
	s.charge(res)

	msg := "unknown failure"
	if res.Err != nil {
		msg = res.Err.Error()
	}

	s.mu.Lock()
	row := res.Item.Profile.Row
	s.annotations[row] = append(s.annotations[row], model.FailureAnnotation{
		Kind:     res.Item.Kind,
		Message:  msg,
		Attempts: res.Attempts,
	})
	s.mu.Unlock()
}

// charge appends a ledger entry for any realized usage. A result with zero
// tokens made no billable call.
func (s *Sink) charge(res model.ProcessingResult) {
	if res.Usage.Total() == 0 {
		return
	}
	requests := res.Attempts
	if requests == 0 {
		requests = 1
	}
	s.ledger.Append(cost.Entry{
		Provider:     res.Provider,
		Kind:         res.Item.Kind,
		Row:          res.Item.Profile.Row,
		InputTokens:  res.Usage.InputTokens,
		OutputTokens: res.Usage.OutputTokens,
		Requests:     requests,
		Cost:         s.calc.CostN(res.Provider, res.Usage, requests),
	})
}

// Flush writes staged updates through the sheets client. Single-flight: a
// concurrent flush waits its turn and picks up whatever is staged then.
func (s *Sink) Flush(ctx context.Context) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	updates := s.staged
	s.staged = nil
	s.lastFlush = time.Now()
	s.mu.Unlock()

	if len(updates) == 0 {
		return
	}

	_, _, err := resilience.Do(ctx, s.cfg.Retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.client.BatchUpdate(ctx, s.sheet, updates)
	})
	if err != nil {
		warning := fmt.Sprintf("failed to persist %d cell update(s): %v", len(updates), err)
		s.log.Warn("sheet flush failed",
			zap.Int("updates", len(updates)),
			zap.Error(err))
		s.mu.Lock()
		s.warnings = append(s.warnings, warning)
		s.mu.Unlock()
		return
	}
	s.log.Debug("flushed cell updates", zap.Int("updates", len(updates)))
}

// Close performs the final flush.
func (s *Sink) Close(ctx context.Context) {
	s.Flush(ctx)
}

// Annotations returns the per-row failure annotations recorded so far.
func (s *Sink) Annotations() map[int][]model.FailureAnnotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int][]model.FailureAnnotation, len(s.annotations))
	for row, anns := range s.annotations {
		out[row] = append([]model.FailureAnnotation(nil), anns...)
	}
	return out
}

// Skipped returns the number of skipped items recorded.
func (s *Sink) Skipped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}

// Warnings returns persistence warnings accumulated across flushes.
func (s *Sink) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.warnings...)
}

// Pending returns the number of staged, unflushed updates.
func (s *Sink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.staged)
}
