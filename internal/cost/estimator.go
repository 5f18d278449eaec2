package cost

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/prompt"
)

// Output token projection ratios relative to input size. Research responses
// run long; emails are capped at 150 words of body.
const (
	researchOutputRatio = 3.0
	emailOutputRatio    = 0.5
)

// Confidence labels for a projection.
const (
	ConfidenceExact       = "exact"       // every count came from the configured Counter
	ConfidenceApproximate = "approximate" // at least one count fell back to the heuristic
)

// EstimateConfig controls a projection.
type EstimateConfig struct {
	ResearchProvider  model.Provider
	ResearchMaxTokens int
	EmailMaxTokens    int
	EmailTemplate     *prompt.Template
}

// KindEstimate is the projected spend for one task kind.
type KindEstimate struct {
	Profiles     int      `json:"profiles"`
	Requests     int      `json:"requests"`
	InputTokens  int      `json:"input_tokens"`
	OutputTokens int      `json:"output_tokens"`
	Cost         MicroUSD `json:"cost_micro_usd"`
}

// ProfileEstimate is the projected spend for one profile.
type ProfileEstimate struct {
	Row      int      `json:"row"`
	Name     string   `json:"name"`
	Research MicroUSD `json:"research_micro_usd"`
	Email    MicroUSD `json:"email_micro_usd"`
	Total    MicroUSD `json:"total_micro_usd"`
}

// RunEstimate is the full pre-flight projection for a planned run.
type RunEstimate struct {
	ByKind     map[model.TaskKind]KindEstimate `json:"by_kind"`
	Profiles   []ProfileEstimate               `json:"profiles"`
	Total      MicroUSD                        `json:"total_micro_usd"`
	Confidence string                          `json:"confidence"`
}

// Estimator projects the cost of planned work. It performs no side effects
// and triggers no completion calls; it is safe to call repeatedly.
type Estimator struct {
	calc    *Calculator
	counter Counter
}

// NewEstimator creates an estimator. counter may be nil, in which case the
// heuristic is used for every count.
func NewEstimator(calc *Calculator, counter Counter) *Estimator {
	return &Estimator{calc: calc, counter: counter}
}

// EstimateRun projects the cost of the given work items. Prompts are
// rendered exactly as they would be at dispatch time; output tokens are
// projected by per-kind ratio and capped at the task's max tokens.
func (e *Estimator) EstimateRun(ctx context.Context, items []model.WorkItem, cfg EstimateConfig) RunEstimate {
	if cfg.EmailTemplate == nil {
		cfg.EmailTemplate = prompt.DefaultEmailTemplate()
	}

	est := RunEstimate{
		ByKind:     make(map[model.TaskKind]KindEstimate),
		Confidence: ConfidenceExact,
	}
	perProfile := make(map[int]*ProfileEstimate)
	var order []int

	for _, item := range items {
		p := item.Profile

		var text string
		var provider model.Provider
		var ratio float64
		var maxTokens int
		switch item.Kind {
		case model.TaskResearch:
			text = prompt.ResearchSystem + prompt.Research(*p)
			provider = cfg.ResearchProvider
			ratio = researchOutputRatio
			maxTokens = cfg.ResearchMaxTokens
		case model.TaskEmail:
			text = prompt.EmailSystem + cfg.EmailTemplate.Render(*p)
			provider = model.ProviderOpenAI
			ratio = emailOutputRatio
			maxTokens = cfg.EmailMaxTokens
		}

		inTokens, exact := e.count(ctx, text)
		if !exact {
			est.Confidence = ConfidenceApproximate
		}
		outTokens := int(float64(inTokens) * ratio)
		if maxTokens > 0 && outTokens > maxTokens {
			outTokens = maxTokens
		}

		c := e.calc.Cost(provider, model.TokenUsage{InputTokens: inTokens, OutputTokens: outTokens})

		k := est.ByKind[item.Kind]
		k.Profiles++
		k.Requests++
		k.InputTokens += inTokens
		k.OutputTokens += outTokens
		k.Cost += c
		est.ByKind[item.Kind] = k
		est.Total += c

		pe, ok := perProfile[p.Row]
		if !ok {
			pe = &ProfileEstimate{Row: p.Row, Name: p.Name}
			perProfile[p.Row] = pe
			order = append(order, p.Row)
		}
		switch item.Kind {
		case model.TaskResearch:
			pe.Research += c
		case model.TaskEmail:
			pe.Email += c
		}
		pe.Total += c
	}

	for _, row := range order {
		est.Profiles = append(est.Profiles, *perProfile[row])
	}
	return est
}

// count returns the token count for text and whether it came from the
// configured Counter (as opposed to the heuristic fallback).
func (e *Estimator) count(ctx context.Context, text string) (int, bool) {
	if e.counter != nil {
		n, err := e.counter.Count(ctx, text)
		if err == nil {
			return n, true
		}
		zap.L().Warn("token counting unavailable, using heuristic", zap.Error(err))
	}
	n, _ := HeuristicCounter{}.Count(ctx, text)
	return n, false
}
