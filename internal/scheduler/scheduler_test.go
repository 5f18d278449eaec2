package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/cost"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/progress"
	"github.com/sells-group/outreach-cli/internal/prompt"
	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/internal/sink"
	"github.com/sells-group/outreach-cli/pkg/sheets"
)

type fakeResearch struct {
	mu    sync.Mutex
	calls []int
	fn    func(p model.Profile) (string, model.TokenUsage, error)
}

func (f *fakeResearch) Name() model.Provider { return model.ProviderPerplexity }

func (f *fakeResearch) Research(_ context.Context, p model.Profile, _ int) (string, model.TokenUsage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, p.Row)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(p)
	}
	return "research for " + p.Name, model.TokenUsage{InputTokens: 100, OutputTokens: 300}, nil
}

func (f *fakeResearch) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type emailCall struct {
	row      int
	research string
	rendered string
}

type fakeEmail struct {
	mu    sync.Mutex
	calls []emailCall
	fn    func(p model.Profile) (string, model.TokenUsage, error)
}

func (f *fakeEmail) Name() model.Provider { return model.ProviderOpenAI }

func (f *fakeEmail) GenerateEmail(_ context.Context, p model.Profile, researchText string, tmpl *prompt.Template, _ int) (string, model.TokenUsage, error) {
	p.Research = researchText
	f.mu.Lock()
	f.calls = append(f.calls, emailCall{row: p.Row, research: researchText, rendered: tmpl.Render(p)})
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(p)
	}
	return "draft for " + p.Name, model.TokenUsage{InputTokens: 200, OutputTokens: 100}, nil
}

func (f *fakeEmail) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeSheets struct {
	mu      sync.Mutex
	updates []sheets.CellUpdate
}

func (f *fakeSheets) Load(context.Context, string, string) (*sheets.Sheet, error) { return nil, nil }

func (f *fakeSheets) BatchUpdate(_ context.Context, _ *sheets.Sheet, updates []sheets.CellUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updates...)
	return nil
}

type fixture struct {
	research *fakeResearch
	email    *fakeEmail
	sheets   *fakeSheets
	sink     *sink.Sink
	ledger   *cost.Ledger
	reporter *progress.ChannelReporter
	pool     *Pool
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		research: &fakeResearch{},
		email:    &fakeEmail{},
		sheets:   &fakeSheets{},
		ledger:   cost.NewLedger(),
		reporter: progress.NewChannelReporter(256),
	}
	sheet := &sheets.Sheet{
		Columns: map[string]int{"name": 0, "company": 1, "role": 2, "research": 3, "draft": 4},
	}
	f.sink = sink.New(f.sheets, sheet, f.ledger, cost.NewCalculator(cost.DefaultRates()), zap.NewNop(), sink.Config{BatchSize: 1000})
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
	}
	f.pool = NewPool(f.research, f.email, f.sink, f.ledger, f.reporter, zap.NewNop(), cfg)
	return f
}

func profileItems(rows ...int) ([]*model.Profile, []model.WorkItem) {
	var profiles []*model.Profile
	var items []model.WorkItem
	for _, row := range rows {
		p := &model.Profile{Row: row, Name: "Person", Company: "Acme", Role: "CTO"}
		profiles = append(profiles, p)
		items = append(items,
			model.WorkItem{Profile: p, Kind: model.TaskResearch},
			model.WorkItem{Profile: p, Kind: model.TaskEmail},
		)
	}
	return profiles, items
}

func TestRunHappyPath(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{Workers: 4})
	profiles, items := profileItems(2, 3)
	state := model.NewRunState("run-1", model.RunConfig{})

	f.pool.Run(context.Background(), state, items)

	assert.Equal(t, int64(4), state.Completed.Load())
	assert.Equal(t, int64(0), state.Failed.Load())
	assert.Equal(t, int64(0), state.Skipped.Load())

	for _, p := range profiles {
		assert.Equal(t, "research for Person", p.Research)
		assert.Equal(t, "draft for Person", p.Draft)
	}

	// Every email call saw its profile's research text.
	for _, c := range f.email.calls {
		assert.Equal(t, "research for Person", c.research)
		assert.Contains(t, c.rendered, "research for Person")
	}
	assert.Greater(t, f.ledger.Total(), cost.MicroUSD(0))
}

func TestEmailNeverRunsBeforeResearch(t *testing.T) {
	t.Parallel()

	var order sync.Map
	f := newFixture(Config{Workers: 8})
	f.research.fn = func(p model.Profile) (string, model.TokenUsage, error) {
		time.Sleep(10 * time.Millisecond)
		order.Store(p.Row, time.Now())
		return "notes", model.TokenUsage{InputTokens: 10, OutputTokens: 10}, nil
	}

	_, items := profileItems(1, 2, 3, 4)
	state := model.NewRunState("run-1", model.RunConfig{})
	f.pool.Run(context.Background(), state, items)

	require.Equal(t, int64(8), state.Completed.Load())
	for _, c := range f.email.calls {
		_, ok := order.Load(c.row)
		assert.True(t, ok, "email for row %d dispatched before research finished", c.row)
		assert.Equal(t, "notes", c.research)
	}
}

func TestResearchFailureGatesEmail(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{Workers: 2})
	f.research.fn = func(model.Profile) (string, model.TokenUsage, error) {
		return "", model.TokenUsage{InputTokens: 50}, resilience.NewPermanentError(eris.New("bad request"), 0)
	}

	_, items := profileItems(2)
	state := model.NewRunState("run-1", model.RunConfig{})
	f.pool.Run(context.Background(), state, items)

	assert.Equal(t, int64(0), state.Completed.Load())
	assert.Equal(t, int64(2), state.Failed.Load())
	assert.Equal(t, 0, f.email.callCount(), "gated email must not call the provider")
	assert.Equal(t, 1, f.research.callCount(), "permanent error is terminal after one attempt")

	anns := f.sink.Annotations()[2]
	require.Len(t, anns, 2)

	// Only the research attempt is billed: 50 input tokens plus its request fee.
	assert.Equal(t, cost.MicroUSD(5050), f.ledger.Total())
}

func TestTransientExhaustionUsesAllAttempts(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{Workers: 1})
	f.research.fn = func(model.Profile) (string, model.TokenUsage, error) {
		return "", model.TokenUsage{}, resilience.NewTransientError(eris.New("rate limited"), 0)
	}

	p := &model.Profile{Row: 2, Name: "Person", Company: "Acme", Role: "CTO"}
	items := []model.WorkItem{{Profile: p, Kind: model.TaskResearch}}
	state := model.NewRunState("run-1", model.RunConfig{})
	f.pool.Run(context.Background(), state, items)

	assert.Equal(t, int64(1), state.Failed.Load())
	assert.Equal(t, 3, f.research.callCount())
	assert.Equal(t, 3, items[0].Attempts)
}

func TestTransientThenSuccess(t *testing.T) {
	t.Parallel()

	var calls int
	var mu sync.Mutex
	f := newFixture(Config{Workers: 1})
	f.research.fn = func(p model.Profile) (string, model.TokenUsage, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			return "", model.TokenUsage{InputTokens: 40}, resilience.NewTransientError(eris.New("overloaded"), 0)
		}
		return "notes", model.TokenUsage{InputTokens: 40, OutputTokens: 80}, nil
	}

	p := &model.Profile{Row: 2, Name: "Person", Company: "Acme", Role: "CTO"}
	items := []model.WorkItem{{Profile: p, Kind: model.TaskResearch}}
	state := model.NewRunState("run-1", model.RunConfig{})
	f.pool.Run(context.Background(), state, items)

	assert.Equal(t, int64(1), state.Completed.Load())
	assert.Equal(t, 2, items[0].Attempts)
	assert.Equal(t, "notes", p.Research)

	// Both attempts' usage is billed: 80 in + 80 out, two request fees.
	entries := f.ledger.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 80, entries[0].InputTokens)
	assert.Equal(t, 2, entries[0].Requests)
}

func TestCancelSkipsUndispatched(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{Workers: 1})
	state := model.NewRunState("run-1", model.RunConfig{})
	f.research.fn = func(p model.Profile) (string, model.TokenUsage, error) {
		state.Cancel()
		return "notes", model.TokenUsage{InputTokens: 10, OutputTokens: 10}, nil
	}

	var items []model.WorkItem
	for row := 2; row <= 6; row++ {
		p := &model.Profile{Row: row, Name: "Person", Company: "Acme", Role: "CTO"}
		items = append(items, model.WorkItem{Profile: p, Kind: model.TaskResearch})
	}
	f.pool.Run(context.Background(), state, items)

	assert.Equal(t, int64(5), state.Terminal(), "every item reaches a terminal outcome")
	assert.GreaterOrEqual(t, state.Skipped.Load(), int64(3))
	assert.LessOrEqual(t, f.research.callCount(), 2, "no new dispatches after cancel")
}

func TestSkipGateBypassesOrdering(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{Workers: 1})
	p := &model.Profile{Row: 2, Name: "Person", Company: "Acme", Role: "CTO", Research: "existing notes"}
	items := []model.WorkItem{{Profile: p, Kind: model.TaskEmail, SkipGate: true}}
	state := model.NewRunState("run-1", model.RunConfig{})
	f.pool.Run(context.Background(), state, items)

	assert.Equal(t, int64(1), state.Completed.Load())
	require.Equal(t, 1, f.email.callCount())
	assert.Equal(t, "existing notes", f.email.calls[0].research)
}

func TestEmailWithoutQueuedResearchDispatches(t *testing.T) {
	t.Parallel()

	// Partial state: research already on the sheet, only email planned.
	f := newFixture(Config{Workers: 2})
	p := &model.Profile{Row: 2, Name: "Person", Company: "Acme", Role: "CTO", Research: "prior notes"}
	items := []model.WorkItem{{Profile: p, Kind: model.TaskEmail}}
	state := model.NewRunState("run-1", model.RunConfig{})
	f.pool.Run(context.Background(), state, items)

	assert.Equal(t, int64(1), state.Completed.Load())
	require.Equal(t, 1, f.email.callCount())
	assert.Equal(t, "prior notes", f.email.calls[0].research)
}

func TestInvalidPromptOverrideFailsWithoutCall(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{Workers: 1})
	p := &model.Profile{Row: 2, Name: "Person", Company: "Acme", Role: "CTO", Research: "notes"}
	items := []model.WorkItem{{Profile: p, Kind: model.TaskEmail, SkipGate: true, PromptOverride: "no placeholders here"}}
	state := model.NewRunState("run-1", model.RunConfig{})
	f.pool.Run(context.Background(), state, items)

	assert.Equal(t, int64(1), state.Failed.Load())
	assert.Equal(t, 0, f.email.callCount())
	assert.Equal(t, cost.MicroUSD(0), f.ledger.Total())
}

func TestProgressEventsPublished(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{Workers: 2})
	_, items := profileItems(2)
	state := model.NewRunState("run-1", model.RunConfig{})
	f.pool.Run(context.Background(), state, items)
	f.reporter.Close()

	var events []progress.Event
	for e := range f.reporter.Events() {
		events = append(events, e)
	}
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, 2, last.Total)
	assert.Equal(t, 2, last.Done())
	assert.Greater(t, last.Cost, cost.MicroUSD(0))
}
