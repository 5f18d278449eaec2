package regen

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/cost"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/progress"
	"github.com/sells-group/outreach-cli/internal/prompt"
	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/internal/scheduler"
	"github.com/sells-group/outreach-cli/internal/sink"
	"github.com/sells-group/outreach-cli/pkg/sheets"
)

type stubResearch struct{}

func (stubResearch) Name() model.Provider { return model.ProviderPerplexity }

func (stubResearch) Research(context.Context, model.Profile, int) (string, model.TokenUsage, error) {
	return "unused", model.TokenUsage{}, nil
}

type recordingEmail struct {
	mu      sync.Mutex
	prompts []string
	rows    []int
}

func (r *recordingEmail) Name() model.Provider { return model.ProviderOpenAI }

func (r *recordingEmail) GenerateEmail(_ context.Context, p model.Profile, researchText string, tmpl *prompt.Template, _ int) (string, model.TokenUsage, error) {
	p.Research = researchText
	r.mu.Lock()
	r.prompts = append(r.prompts, tmpl.Render(p))
	r.rows = append(r.rows, p.Row)
	r.mu.Unlock()
	return "regenerated draft", model.TokenUsage{InputTokens: 100, OutputTokens: 50}, nil
}

type noopSheets struct{}

func (noopSheets) Load(context.Context, string, string) (*sheets.Sheet, error) { return nil, nil }

func (noopSheets) BatchUpdate(context.Context, *sheets.Sheet, []sheets.CellUpdate) error {
	return nil
}

func newController(profiles ...*model.Profile) (*Controller, *recordingEmail) {
	email := &recordingEmail{}
	ledger := cost.NewLedger()
	sheet := &sheets.Sheet{Columns: map[string]int{"research": 3, "draft": 4}}
	s := sink.New(noopSheets{}, sheet, ledger, cost.NewCalculator(cost.DefaultRates()), zap.NewNop(), sink.Config{})
	pool := scheduler.NewPool(stubResearch{}, email, s, ledger, progress.NewChannelReporter(16), zap.NewNop(), scheduler.Config{
		Workers: 2,
		Retry:   resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond},
	})
	return NewController(pool, profiles), email
}

func profileAt(row int, research string) *model.Profile {
	return &model.Profile{Row: row, Name: "Jane", Company: "Acme", Role: "CTO", Research: research, Draft: "old draft"}
}

func TestRegenerateReplacesDraft(t *testing.T) {
	t.Parallel()

	p := profileAt(2, "solid research")
	c, email := newController(p)
	state := model.NewRunState("run-1", model.RunConfig{})

	err := c.Regenerate(context.Background(), state, 2, "")
	require.NoError(t, err)
	assert.Equal(t, "regenerated draft", p.Draft)
	require.Len(t, email.prompts, 1)
	assert.Contains(t, email.prompts[0], "solid research")
}

func TestRegenerateWithOverride(t *testing.T) {
	t.Parallel()

	p := profileAt(2, "notes")
	c, email := newController(p)
	state := model.NewRunState("run-1", model.RunConfig{})

	err := c.Regenerate(context.Background(), state, 2, "Short note to {name}, {role} at {company}. Context: {research}")
	require.NoError(t, err)
	require.Len(t, email.prompts, 1)
	assert.Equal(t, "Short note to Jane, CTO at Acme. Context: notes", email.prompts[0])
}

func TestRegenerateRejectsBadOverride(t *testing.T) {
	t.Parallel()

	p := profileAt(2, "notes")
	c, email := newController(p)
	state := model.NewRunState("run-1", model.RunConfig{})

	err := c.Regenerate(context.Background(), state, 2, "missing placeholders")
	require.Error(t, err)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, email.prompts)
	assert.Equal(t, "old draft", p.Draft)
}

func TestRegenerateUnknownRow(t *testing.T) {
	t.Parallel()

	c, _ := newController(profileAt(2, "notes"))
	state := model.NewRunState("run-1", model.RunConfig{})

	err := c.Regenerate(context.Background(), state, 99, "")
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 99, verr.Row)
}

func TestRegenerateRequiresResearch(t *testing.T) {
	t.Parallel()

	c, email := newController(profileAt(2, ""))
	state := model.NewRunState("run-1", model.RunConfig{})

	err := c.Regenerate(context.Background(), state, 2, "")
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "research", verr.Field)
	assert.Empty(t, email.prompts)
}

func TestRegenerateAllMixesOutcomes(t *testing.T) {
	t.Parallel()

	good := profileAt(2, "notes a")
	alsoGood := profileAt(3, "notes b")
	missing := profileAt(4, "")
	c, email := newController(good, alsoGood, missing)
	state := model.NewRunState("run-1", model.RunConfig{})

	failures := c.RegenerateAll(context.Background(), state, []int{2, 3, 4, 99}, "")
	require.Len(t, failures, 2)

	assert.Equal(t, int64(2), state.Completed.Load())
	assert.ElementsMatch(t, []int{2, 3}, email.rows)
	assert.Equal(t, "regenerated draft", good.Draft)
	assert.Equal(t, "regenerated draft", alsoGood.Draft)
	assert.Equal(t, "old draft", missing.Draft)
}
