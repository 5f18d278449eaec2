package anthropic

import "context"

// TokenCounter adapts the CountTokens endpoint to the estimator's Counter
// interface, giving exact pre-flight counts instead of heuristics.
type TokenCounter struct {
	client Client
}

// NewTokenCounter wraps a client for token counting.
func NewTokenCounter(client Client) *TokenCounter {
	return &TokenCounter{client: client}
}

// Count returns the exact token count for the text.
func (t *TokenCounter) Count(ctx context.Context, text string) (int, error) {
	return t.client.CountTokens(ctx, "", text)
}
