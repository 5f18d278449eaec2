package model

// TaskKind identifies the two enrichment operations.
type TaskKind string

const (
	TaskResearch TaskKind = "research"
	TaskEmail    TaskKind = "email"
)

// Provider identifies an upstream API.
type Provider string

const (
	ProviderPerplexity Provider = "perplexity"
	ProviderOpenAI     Provider = "openai"
	ProviderAnthropic  Provider = "anthropic"
)

// WorkItem is one unit of dispatchable work: a profile plus a task kind.
type WorkItem struct {
	Profile *Profile
	Kind    TaskKind

	// Attempts counts realized provider calls for this item.
	Attempts int

	// PromptOverride replaces the default email template. Email items only.
	PromptOverride string

	// SkipGate marks an email item whose research dependency is already
	// satisfied (regeneration path). The scheduler dispatches it directly.
	SkipGate bool
}

// TokenUsage tracks token consumption for a single call.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates usage from another call.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Total returns combined input and output tokens.
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Outcome is the terminal disposition of a work item.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// ProcessingResult is emitted once per work item when it reaches a terminal
// outcome.
type ProcessingResult struct {
	Item     *WorkItem
	Outcome  Outcome
	Text     string
	Usage    TokenUsage
	Provider Provider
	Err      error
	Attempts int
}
