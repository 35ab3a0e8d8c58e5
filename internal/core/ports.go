package core

import (
	"context"
	"time"
)

// Preprocessor derives linguistic features from email text.
// Implementations must never fail; a degraded feature set is acceptable.
type Preprocessor interface {
	Preprocess(text string) Features
}

// CompletionRequest is one call to a completion backend
type CompletionRequest struct {
	Messages  []PromptMessage
	Schema    *OutputSchema
	MaxTokens int
}

// Completion is the raw answer of a completion backend
type Completion struct {
	Content      string
	FinishReason string
	Truncated    bool
	Usage        Usage
}

// CompletionBackend sends a single request to a completion provider.
// Any returned error is treated as a transport failure.
type CompletionBackend interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	Name() string
	Model() string
}

// GatewayResult is returned by the gateway on success and on failure
type GatewayResult struct {
	Result   *ClassificationResult
	Attempts []CompletionAttempt
	Provider string
	Model    string
}

// TotalUsage sums the usage of every attempt
func (r GatewayResult) TotalUsage() Usage {
	var total Usage
	for _, a := range r.Attempts {
		total = total.Add(a.Usage)
	}
	return total
}

// CompletionGateway classifies a prompt under a strict output schema
type CompletionGateway interface {
	Classify(ctx context.Context, messages []PromptMessage, schema *OutputSchema) (GatewayResult, error)
}

// UsageLedger stores token accounting rows
type UsageLedger interface {
	Record(ctx context.Context, record *UsageRecord) error
	Summary(ctx context.Context, since time.Time) (*UsageSummary, error)
}

// RateLimiter admits or rejects a request for an identity.
// A rejection is returned as a *RateLimitError.
type RateLimiter interface {
	Admit(ctx context.Context, identity string) error
}

// Observer receives classification events, typically for metrics
type Observer interface {
	ObserveAttempt(provider string, attempt CompletionAttempt)
	ObserveClassification(outcome string, duration time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt(string, CompletionAttempt) {}
func (nopObserver) ObserveClassification(string, time.Duration) {}

// NopObserver returns an Observer that discards every event
func NopObserver() Observer { return nopObserver{} }
