package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestChannelReporterDelivers(t *testing.T) {
	t.Parallel()

	r := NewChannelReporter(4)
	r.Publish(Event{Completed: 1, Total: 3})
	r.Publish(Event{Completed: 2, Total: 3})
	r.Close()

	var got []Event
	for e := range r.Events() {
		got = append(got, e)
	}
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Completed)
	assert.Equal(t, 2, got[1].Completed)
}

func TestChannelReporterDropsWhenFull(t *testing.T) {
	t.Parallel()

	r := NewChannelReporter(1)
	r.Publish(Event{Completed: 1})
	// Buffer is full; this must not block.
	r.Publish(Event{Completed: 2})
	r.Close()

	var got []Event
	for e := range r.Events() {
		got = append(got, e)
	}
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Completed)
}

func TestChannelReporterCloseIdempotent(t *testing.T) {
	t.Parallel()

	r := NewChannelReporter(1)
	r.Close()
	r.Close()
}

func TestEventDone(t *testing.T) {
	t.Parallel()

	e := Event{Completed: 3, Failed: 2, Skipped: 1, Total: 10}
	assert.Equal(t, 6, e.Done())
}

func TestLogReporterPublish(t *testing.T) {
	t.Parallel()

	// Exercises both the debug and the promoted-warn paths.
	r := NewLogReporter(zap.NewNop())
	r.Publish(Event{Completed: 1, Total: 2})
	r.Publish(Event{Completed: 1, Total: 2, LastErr: "rate limited"})
	r.Publish(Event{Completed: 2, Total: 2, LastErr: "rate limited"})
	r.Close()
}

func TestMultiFansOut(t *testing.T) {
	t.Parallel()

	a := NewChannelReporter(2)
	b := NewChannelReporter(2)
	m := Multi{a, b}
	m.Publish(Event{Completed: 1})
	m.Close()

	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
}

func drain(r *ChannelReporter) []Event {
	var got []Event
	for e := range r.Events() {
		got = append(got, e)
	}
	return got
}
