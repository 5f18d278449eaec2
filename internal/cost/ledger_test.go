package cost

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
)

func TestLedgerAppend(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	l.Append(Entry{
		Provider: model.ProviderPerplexity,
		Kind:     model.TaskResearch,
		Row:      0,
		Cost:     FromUSD(0.01),
	})
	l.Append(Entry{
		Provider: model.ProviderOpenAI,
		Kind:     model.TaskEmail,
		Row:      0,
		Cost:     FromUSD(0.002),
	})

	assert.Equal(t, FromUSD(0.012), l.Total())
	assert.Equal(t, 2, l.Requests())
	assert.Len(t, l.Entries(), 2)

	totals := l.ProviderTotals()
	assert.Equal(t, FromUSD(0.01), totals[model.ProviderPerplexity])
	assert.Equal(t, FromUSD(0.002), totals[model.ProviderOpenAI])
}

func TestLedgerConcurrentAppends(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	const goroutines = 50
	const perGoroutine = 100

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				l.Append(Entry{
					Provider: model.ProviderPerplexity,
					Kind:     model.TaskResearch,
					Cost:     MicroUSD(7),
				})
			}
		}()
	}
	wg.Wait()

	// No lost updates: total equals the sum of individual entries.
	entries := l.Entries()
	require.Len(t, entries, goroutines*perGoroutine)
	var sum MicroUSD
	for _, e := range entries {
		sum += e.Cost
	}
	assert.Equal(t, sum, l.Total())
	assert.Equal(t, MicroUSD(goroutines*perGoroutine*7), l.Total())
	assert.Equal(t, goroutines*perGoroutine, l.Requests())
}
