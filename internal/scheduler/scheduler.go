// Package scheduler runs planned work items across a bounded worker pool,
// enforcing the research-before-email ordering per profile.
package scheduler

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/outreach-cli/internal/cost"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/progress"
	"github.com/sells-group/outreach-cli/internal/prompt"
	"github.com/sells-group/outreach-cli/internal/provider"
	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/internal/sink"
)

const (
	defaultWorkers           = 4
	defaultResearchMaxTokens = 2000
	defaultEmailMaxTokens    = 1000
)

// Config tunes the pool.
type Config struct {
	Workers           int
	Retry             resilience.RetryConfig
	ResearchMaxTokens int
	EmailMaxTokens    int
	// EmailTemplate is the default template; items may carry an override.
	EmailTemplate *prompt.Template
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.ResearchMaxTokens <= 0 {
		c.ResearchMaxTokens = defaultResearchMaxTokens
	}
	if c.EmailMaxTokens <= 0 {
		c.EmailMaxTokens = defaultEmailMaxTokens
	}
	if c.EmailTemplate == nil {
		c.EmailTemplate = prompt.DefaultEmailTemplate()
	}
	return c
}

// gate blocks a profile's email item until its research item reaches a
// terminal outcome. The outcome is written before the channel closes.
type gate struct {
	ch      chan struct{}
	outcome model.Outcome
}

// Pool dispatches work items to providers and hands terminal results to the
// sink.
type Pool struct {
	research provider.ResearchProvider
	email    provider.EmailProvider
	sink     *sink.Sink
	ledger   *cost.Ledger
	reporter progress.Reporter
	log      *zap.Logger
	cfg      Config
}

// NewPool wires a pool. The ledger is read only for progress cost snapshots;
// all appends happen in the sink.
func NewPool(research provider.ResearchProvider, email provider.EmailProvider, s *sink.Sink, ledger *cost.Ledger, reporter progress.Reporter, log *zap.Logger, cfg Config) *Pool {
	return &Pool{
		research: research,
		email:    email,
		sink:     s,
		ledger:   ledger,
		reporter: reporter,
		log:      log,
		cfg:      cfg.withDefaults(),
	}
}

// Run processes all items and returns when every one has reached a terminal
// outcome. Cancellation via state.Cancel lets in-flight calls finish and
// reports everything not yet dispatched as skipped.
func (p *Pool) Run(ctx context.Context, state *model.RunState, items []model.WorkItem) {
	total := len(items)
	state.Planned.Store(int64(total))
	if total == 0 {
		return
	}

	// One gate per profile that has research queued this run. Email items
	// for profiles whose research is already on the sheet have no gate.
	gates := make(map[int]*gate)
	for i := range items {
		if items[i].Kind == model.TaskResearch {
			gates[items[i].Profile.Row] = &gate{ch: make(chan struct{})}
		}
	}

	queue := make(chan *model.WorkItem)
	var producers sync.WaitGroup

	producers.Add(1)
	go func() {
		defer producers.Done()
		for i := range items {
			item := &items[i]
			if state.Cancelled() {
				p.finish(ctx, state, model.ProcessingResult{Item: item, Outcome: model.OutcomeSkipped}, total)
				continue
			}
			g := gates[item.Profile.Row]
			if item.Kind == model.TaskEmail && !item.SkipGate && g != nil {
				producers.Add(1)
				go func() {
					defer producers.Done()
					p.waitGate(ctx, state, g, item, queue, total)
				}()
				continue
			}
			select {
			case queue <- item:
			case <-ctx.Done():
				p.finish(ctx, state, model.ProcessingResult{Item: item, Outcome: model.OutcomeSkipped}, total)
			}
		}
	}()
	go func() {
		producers.Wait()
		close(queue)
	}()

	var workers errgroup.Group
	for range p.cfg.Workers {
		workers.Go(func() error {
			for item := range queue {
				p.process(ctx, state, item, gates[item.Profile.Row], total)
			}
			return nil
		})
	}
	_ = workers.Wait()
}

// waitGate parks an email item until its profile's research settles, then
// either enqueues it or terminates it without a provider call.
func (p *Pool) waitGate(ctx context.Context, state *model.RunState, g *gate, item *model.WorkItem, queue chan<- *model.WorkItem, total int) {
	select {
	case <-g.ch:
	case <-ctx.Done():
		p.finish(ctx, state, model.ProcessingResult{Item: item, Outcome: model.OutcomeSkipped}, total)
		return
	}

	switch g.outcome {
	case model.OutcomeSuccess:
		if state.Cancelled() {
			p.finish(ctx, state, model.ProcessingResult{Item: item, Outcome: model.OutcomeSkipped}, total)
			return
		}
		select {
		case queue <- item:
		case <-ctx.Done():
			p.finish(ctx, state, model.ProcessingResult{Item: item, Outcome: model.OutcomeSkipped}, total)
		}
	case model.OutcomeFailed:
		// No call is made, so nothing reaches the ledger.
		p.finish(ctx, state, model.ProcessingResult{
			Item:    item,
			Outcome: model.OutcomeFailed,
			Err:     eris.New("research failed, email not attempted"),
		}, total)
	case model.OutcomeSkipped:
		p.finish(ctx, state, model.ProcessingResult{Item: item, Outcome: model.OutcomeSkipped}, total)
	}
}

// process runs one item through the retry loop and delivers its terminal
// result. Usage accumulates across attempts so failed attempts stay billable.
func (p *Pool) process(ctx context.Context, state *model.RunState, item *model.WorkItem, g *gate, total int) {
	tmpl := p.cfg.EmailTemplate
	if item.PromptOverride != "" {
		parsed, err := prompt.Parse(item.PromptOverride)
		if err != nil {
			p.terminate(ctx, state, item, g, model.ProcessingResult{
				Item:    item,
				Outcome: model.OutcomeFailed,
				Err:     err,
			}, total)
			return
		}
		tmpl = parsed
	}

	var (
		usage   model.TokenUsage
		attempt int
	)
	retryCfg := p.cfg.Retry
	retryCfg.OnAttempt = func(n int, err error) {
		if err == nil {
			return
		}
		p.publish(state, total, err)
		p.log.Debug("attempt failed",
			zap.Int("row", item.Profile.Row),
			zap.String("kind", string(item.Kind)),
			zap.Int("attempt", n),
			zap.Error(err))
	}

	text, attempts, err := resilience.Do(ctx, retryCfg, func(ctx context.Context) (string, error) {
		attempt++
		if attempt > 1 && state.Cancelled() {
			return "", resilience.NewPermanentError(eris.New("run cancelled"), 0)
		}
		var (
			t string
			u model.TokenUsage
			e error
		)
		switch item.Kind {
		case model.TaskResearch:
			t, u, e = p.research.Research(ctx, *item.Profile, p.cfg.ResearchMaxTokens)
		case model.TaskEmail:
			t, u, e = p.email.GenerateEmail(ctx, *item.Profile, item.Profile.Research, tmpl, p.cfg.EmailMaxTokens)
		}
		usage.Add(u)
		return t, e
	})

	item.Attempts = attempts
	res := model.ProcessingResult{
		Item:     item,
		Text:     text,
		Usage:    usage,
		Provider: p.providerFor(item.Kind),
		Attempts: attempts,
	}
	if err != nil {
		res.Outcome = model.OutcomeFailed
		res.Err = err
	} else {
		res.Outcome = model.OutcomeSuccess
	}
	p.terminate(ctx, state, item, g, res, total)
}

// terminate delivers a terminal result and, for research items, releases the
// profile's gate. The sink applies the result first so the research text is
// on the profile before any email prompt renders.
func (p *Pool) terminate(ctx context.Context, state *model.RunState, item *model.WorkItem, g *gate, res model.ProcessingResult, total int) {
	p.finish(ctx, state, res, total)
	if item.Kind == model.TaskResearch && g != nil {
		g.outcome = res.Outcome
		close(g.ch)
	}
}

func (p *Pool) finish(ctx context.Context, state *model.RunState, res model.ProcessingResult, total int) {
	state.CountOutcome(res.Outcome)
	p.sink.Apply(ctx, res)
	p.publish(state, total, res.Err)
}

func (p *Pool) publish(state *model.RunState, total int, err error) {
	e := progress.Event{
		Completed: int(state.Completed.Load()),
		Failed:    int(state.Failed.Load()),
		Skipped:   int(state.Skipped.Load()),
		Total:     total,
		Cost:      p.ledger.Total(),
	}
	if err != nil {
		e.LastErr = err.Error()
	}
	p.reporter.Publish(e)
}

func (p *Pool) providerFor(kind model.TaskKind) model.Provider {
	switch kind {
	case model.TaskResearch:
		return p.research.Name()
	case model.TaskEmail:
		return p.email.Name()
	}
	return ""
}
