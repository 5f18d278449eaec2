package cost

import (
	"sync"
	"time"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Entry records one realized (actually billed) API attempt, successful or
// not. Append-only.
type Entry struct {
	Provider     model.Provider `json:"provider"`
	Kind         model.TaskKind `json:"kind"`
	Row          int            `json:"row"`
	InputTokens  int            `json:"input_tokens"`
	OutputTokens int            `json:"output_tokens"`
	Requests     int            `json:"requests"`
	Cost         MicroUSD       `json:"cost_micro_usd"`
	At           time.Time      `json:"at"`
}

// Ledger is a concurrency-safe accumulator of realized spend. Appends update
// the running totals under the same lock, so a read never observes an entry
// without its contribution to the totals.
type Ledger struct {
	mu       sync.Mutex
	entries  []Entry
	total    MicroUSD
	byProv   map[model.Provider]MicroUSD
	requests int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{byProv: make(map[model.Provider]MicroUSD)}
}

// Append records one realized attempt.
func (l *Ledger) Append(e Entry) {
	if e.Requests == 0 {
		e.Requests = 1
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	l.total += e.Cost
	l.byProv[e.Provider] += e.Cost
	l.requests += e.Requests
}

// Total returns the running grand total.
func (l *Ledger) Total() MicroUSD {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Requests returns the number of billed requests.
func (l *Ledger) Requests() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requests
}

// ProviderTotals returns a copy of the per-provider running totals.
func (l *Ledger) ProviderTotals() map[model.Provider]MicroUSD {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[model.Provider]MicroUSD, len(l.byProv))
	for k, v := range l.byProv {
		out[k] = v
	}
	return out
}

// Entries returns a copy of the recorded entries in append order.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}
