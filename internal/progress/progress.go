// Package progress delivers run progress events without exerting
// backpressure on the workers producing them.
package progress

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/cost"
)

// Event is a point-in-time snapshot of a run.
type Event struct {
	Completed int
	Failed    int
	Skipped   int
	Total     int
	Cost      cost.MicroUSD
	LastErr   string
}

// Done reports how many items have reached a terminal outcome.
func (e Event) Done() int {
	return e.Completed + e.Failed + e.Skipped
}

// Reporter receives progress events. Publish must never block the caller.
type Reporter interface {
	Publish(e Event)
	Close()
}

// ChannelReporter buffers events on a bounded channel. When the buffer is
// full an intermediate event is dropped; terminal accounting lives on the
// run state, so drops only cost display granularity.
type ChannelReporter struct {
	ch     chan Event
	closed sync.Once
}

// NewChannelReporter creates a reporter with the given buffer size.
func NewChannelReporter(buffer int) *ChannelReporter {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelReporter{ch: make(chan Event, buffer)}
}

// Publish delivers the event if there is room, or drops it.
func (r *ChannelReporter) Publish(e Event) {
	select {
	case r.ch <- e:
	default:
	}
}

// Events returns the receive side for a consumer loop.
func (r *ChannelReporter) Events() <-chan Event {
	return r.ch
}

// Close ends the stream. Safe to call more than once.
func (r *ChannelReporter) Close() {
	r.closed.Do(func() { close(r.ch) })
}

// LogReporter logs each event at debug level, promoting events that carry a
// new error to warn.
type LogReporter struct {
	log *zap.Logger

	mu      sync.Mutex
	lastErr string
}

// NewLogReporter creates a zap-backed reporter.
func NewLogReporter(log *zap.Logger) *LogReporter {
	return &LogReporter{log: log}
}

func (r *LogReporter) Publish(e Event) {
	fields := []zap.Field{
		zap.Int("done", e.Done()),
		zap.Int("total", e.Total),
		zap.Int("failed", e.Failed),
		zap.Int("skipped", e.Skipped),
		zap.String("cost", e.Cost.String()),
	}

	r.mu.Lock()
	newErr := e.LastErr != "" && e.LastErr != r.lastErr
	if newErr {
		r.lastErr = e.LastErr
	}
	r.mu.Unlock()

	if newErr {
		r.log.Warn("progress", append(fields, zap.String("last_error", e.LastErr))...)
		return
	}
	r.log.Debug("progress", fields...)
}

func (r *LogReporter) Close() {}

// Multi fans an event out to several reporters.
type Multi []Reporter

func (m Multi) Publish(e Event) {
	for _, r := range m {
		r.Publish(e)
	}
}

func (m Multi) Close() {
	for _, r := range m {
		r.Close()
	}
}
