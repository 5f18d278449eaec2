package cost

import "context"

// Counter estimates the token count of a prompt text. Implementations may
// call a provider's counting endpoint; the estimator falls back to
// HeuristicCounter when a Counter errors or is absent.
type Counter interface {
	Count(ctx context.Context, text string) (int, error)
}

// messageOverheadTokens approximates per-message framing (role, separators).
const messageOverheadTokens = 4

// HeuristicCounter approximates tokens as characters divided by a fixed
// ratio. Good enough for pre-flight projection, not for exact billing.
type HeuristicCounter struct {
	CharsPerToken int // defaults to 4 if zero
}

func (h HeuristicCounter) ratio() int {
	if h.CharsPerToken <= 0 {
		return 4
	}
	return h.CharsPerToken
}

// Count never fails.
func (h HeuristicCounter) Count(_ context.Context, text string) (int, error) {
	return len(text)/h.ratio() + messageOverheadTokens, nil
}
