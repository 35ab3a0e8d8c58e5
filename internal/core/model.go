package core

import "time"

// Category is the label assigned to a classified email
type Category string

const (
	// CategoryProductive marks an email that requires an action or a reply
	CategoryProductive Category = "Produtivo"
	// CategoryUnproductive marks an email that needs no immediate action
	CategoryUnproductive Category = "Improdutivo"
)

// Categories lists every allowed category in schema order
var Categories = []Category{CategoryProductive, CategoryUnproductive}

// Valid reports whether c is one of the allowed categories
func (c Category) Valid() bool {
	for _, allowed := range Categories {
		if c == allowed {
			return true
		}
	}
	return false
}

// Role identifies the author of a prompt message
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// PromptMessage is one message sent to the completion service
type PromptMessage struct {
	Role    Role
	Content string
}

// Features holds the linguistic features derived from the email text.
// Tokens are capped at 50 and key phrases at 10.
type Features struct {
	Tokens     []string
	KeyPhrases []string
}

// Usage holds the token counters reported by the completion service
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the sum of u and other
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// AttemptOutcome is the result of a single completion attempt
type AttemptOutcome string

const (
	OutcomeSuccess        AttemptOutcome = "success"
	OutcomeTruncated      AttemptOutcome = "truncated"
	OutcomeEmpty          AttemptOutcome = "empty"
	OutcomeTransportError AttemptOutcome = "transport_error"
)

// CompletionAttempt records one call made by the gateway
type CompletionAttempt struct {
	Index        int
	TokenBudget  int
	Outcome      AttemptOutcome
	FinishReason string
	Usage        Usage
	Duration     time.Duration
}

// ClassificationResult is the normalized outcome of a classification
type ClassificationResult struct {
	Category          Category `json:"category"`
	SuggestedResponse string   `json:"suggested_response"`
	Confidence        float64  `json:"confidence"`
	Highlights        []string `json:"highlights"`
	Justification     *string  `json:"justification"`
	Usage             *Usage   `json:"usage"`
	RawLabels         []string `json:"raw_labels"`
	NormalizedText    string   `json:"normalized_text,omitempty"`
}

// UsageRecord is one accounting row written after every classification call.
// It never carries the email text nor the classification itself.
type UsageRecord struct {
	RequestedAt time.Time
	Provider    string
	Model       string
	Attempts    int
	Usage       Usage
	Outcome     string
}

// UsageSummary aggregates usage records since a point in time
type UsageSummary struct {
	Since     time.Time      `json:"since"`
	Requests  int            `json:"requests"`
	Usage     Usage          `json:"usage"`
	ByOutcome map[string]int `json:"by_outcome"`
}
