package provider

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/prompt"
	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
	"github.com/sells-group/outreach-cli/pkg/perplexity"
)

// PerplexityResearch adapts the Perplexity client as a ResearchProvider.
type PerplexityResearch struct {
	client      perplexity.Client
	limiter     *rate.Limiter
	breaker     *resilience.Breaker
	callTimeout time.Duration
}

// NewPerplexityResearch wires a Perplexity client with its pacing. A nil
// limiter disables pacing, a nil breaker disables circuit breaking, and a
// zero timeout leaves calls bounded only by the caller's context.
func NewPerplexityResearch(client perplexity.Client, limiter *rate.Limiter, breaker *resilience.Breaker, callTimeout time.Duration) *PerplexityResearch {
	return &PerplexityResearch{client: client, limiter: limiter, breaker: breaker, callTimeout: callTimeout}
}

func (r *PerplexityResearch) Name() model.Provider { return model.ProviderPerplexity }

func (r *PerplexityResearch) Research(ctx context.Context, p model.Profile, maxTokens int) (string, model.TokenUsage, error) {
	callCtx, cancel, err := wait(ctx, r.limiter, r.callTimeout)
	if err != nil {
		return "", model.TokenUsage{}, err
	}
	defer cancel()

	return guard(r.breaker, func() (string, model.TokenUsage, error) {
		temp := researchTemperature
		resp, err := r.client.ChatCompletion(callCtx, perplexity.ChatCompletionRequest{
			Messages: []perplexity.Message{
				{Role: "system", Content: prompt.ResearchSystem},
				{Role: "user", Content: prompt.Research(p)},
			},
			Temperature: &temp,
			MaxTokens:   &maxTokens,
		})
		if err != nil {
			return "", model.TokenUsage{}, err
		}

		usage := model.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
		text := strings.TrimSpace(resp.Text())
		if text == "" {
			return "", usage, resilience.NewPermanentError(eris.New("perplexity returned an empty completion"), 0)
		}
		return text, usage, nil
	})
}

// AnthropicResearch adapts the Anthropic client as an alternate
// ResearchProvider.
type AnthropicResearch struct {
	client      anthropic.Client
	limiter     *rate.Limiter
	breaker     *resilience.Breaker
	callTimeout time.Duration
}

func NewAnthropicResearch(client anthropic.Client, limiter *rate.Limiter, breaker *resilience.Breaker, callTimeout time.Duration) *AnthropicResearch {
	return &AnthropicResearch{client: client, limiter: limiter, breaker: breaker, callTimeout: callTimeout}
}

func (r *AnthropicResearch) Name() model.Provider { return model.ProviderAnthropic }

func (r *AnthropicResearch) Research(ctx context.Context, p model.Profile, maxTokens int) (string, model.TokenUsage, error) {
	callCtx, cancel, err := wait(ctx, r.limiter, r.callTimeout)
	if err != nil {
		return "", model.TokenUsage{}, err
	}
	defer cancel()

	return guard(r.breaker, func() (string, model.TokenUsage, error) {
		temp := researchTemperature
		resp, err := r.client.CreateMessage(callCtx, anthropic.MessageRequest{
			MaxTokens:   int64(maxTokens),
			System:      prompt.ResearchSystem,
			Prompt:      prompt.Research(p),
			Temperature: &temp,
		})
		if err != nil {
			return "", model.TokenUsage{}, err
		}

		usage := model.TokenUsage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		}
		text := strings.TrimSpace(resp.Text)
		if text == "" {
			return "", usage, resilience.NewPermanentError(eris.New("anthropic returned an empty completion"), 0)
		}
		return text, usage, nil
	})
}
