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
	"github.com/sells-group/outreach-cli/pkg/openai"
)

// OpenAIEmail adapts the OpenAI client as an EmailProvider.
type OpenAIEmail struct {
	client      openai.Client
	limiter     *rate.Limiter
	breaker     *resilience.Breaker
	callTimeout time.Duration
}

func NewOpenAIEmail(client openai.Client, limiter *rate.Limiter, breaker *resilience.Breaker, callTimeout time.Duration) *OpenAIEmail {
	return &OpenAIEmail{client: client, limiter: limiter, breaker: breaker, callTimeout: callTimeout}
}

func (e *OpenAIEmail) Name() model.Provider { return model.ProviderOpenAI }

func (e *OpenAIEmail) GenerateEmail(ctx context.Context, p model.Profile, researchText string, tmpl *prompt.Template, maxTokens int) (string, model.TokenUsage, error) {
	callCtx, cancel, err := wait(ctx, e.limiter, e.callTimeout)
	if err != nil {
		return "", model.TokenUsage{}, err
	}
	defer cancel()

	// The template reads research off the profile.
	p.Research = researchText
	if tmpl == nil {
		tmpl = prompt.DefaultEmailTemplate()
	}

	return guard(e.breaker, func() (string, model.TokenUsage, error) {
		temp := emailTemperature
		resp, err := e.client.ChatCompletion(callCtx, openai.ChatCompletionRequest{
			System:      prompt.EmailSystem,
			Prompt:      tmpl.Render(p),
			MaxTokens:   maxTokens,
			Temperature: &temp,
		})
		if err != nil {
			return "", model.TokenUsage{}, err
		}

		usage := model.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
		text := strings.TrimSpace(resp.Text)
		if text == "" {
			return "", usage, resilience.NewPermanentError(eris.New("openai returned an empty completion"), 0)
		}
		return text, usage, nil
	})
}
