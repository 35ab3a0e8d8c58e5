package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TokenBudgets returns the escalating output budgets for the three attempts
func TokenBudgets(configured int) []int {
	return []int{
		max(configured, 2000),
		max(configured*2, 3000),
		max(configured*3, 4000),
	}
}

// GatewayConfig holds the retry policy of the gateway
type GatewayConfig struct {
	MaxOutputTokens int
	Timeout         time.Duration
}

type attemptState int

const (
	stateAttempt attemptState = iota
	stateSuccess
	stateRetryableTruncation
	stateFatal
)

// step is the tagged result of one attempt
type step struct {
	state      attemptState
	attempt    CompletionAttempt
	completion *Completion
	err        error
}

// RetryingGateway implements CompletionGateway over a single backend.
// Retries only recover from token-budget truncation and run back to back.
type RetryingGateway struct {
	backend   CompletionBackend
	validator *ResponseValidator
	observer  Observer
	logger    *zap.Logger
	cfg       GatewayConfig
}

// NewRetryingGateway creates a new gateway.
// A nil backend means no credential was configured; every call then fails
// with ErrCredentialMissing.
func NewRetryingGateway(
	backend CompletionBackend,
	validator *ResponseValidator,
	observer Observer,
	logger *zap.Logger,
	cfg GatewayConfig,
) *RetryingGateway {
	if observer == nil {
		observer = NopObserver()
	}
	return &RetryingGateway{
		backend:   backend,
		validator: validator,
		observer:  observer,
		logger:    logger,
		cfg:       cfg,
	}
}

// Classify runs the attempt loop and validates the accepted content
func (g *RetryingGateway) Classify(ctx context.Context, messages []PromptMessage, schema *OutputSchema) (GatewayResult, error) {
	var out GatewayResult
	if g.backend == nil {
		return out, ErrCredentialMissing
	}
	out.Provider = g.backend.Name()
	out.Model = g.backend.Model()

	budgets := TokenBudgets(g.cfg.MaxOutputTokens)
	req := CompletionRequest{Messages: messages, Schema: schema}

	current := step{state: stateAttempt}
	for i := 0; current.state == stateAttempt || current.state == stateRetryableTruncation; i++ {
		current = g.attempt(ctx, req, i+1, budgets[i], i == len(budgets)-1)
		out.Attempts = append(out.Attempts, current.attempt)
		g.observer.ObserveAttempt(out.Provider, current.attempt)

		g.logger.Debug("Completion attempt finished",
			zap.String("provider", out.Provider),
			zap.Int("attempt", current.attempt.Index),
			zap.Int("token_budget", current.attempt.TokenBudget),
			zap.String("outcome", string(current.attempt.Outcome)),
			zap.String("finish_reason", current.attempt.FinishReason),
			zap.Duration("duration", current.attempt.Duration))

		if current.state == stateRetryableTruncation {
			g.logger.Warn("Completion truncated, retrying with a larger budget",
				zap.String("provider", out.Provider),
				zap.Int("attempt", current.attempt.Index),
				zap.Int("next_budget", budgets[i+1]))
		}
	}

	if current.state == stateFatal {
		return out, current.err
	}

	result, err := g.validator.Parse(current.completion.Content)
	if err != nil {
		return out, err
	}
	usage := current.completion.Usage
	result.Usage = &usage
	out.Result = result
	return out, nil
}

func (g *RetryingGateway) attempt(ctx context.Context, req CompletionRequest, index, budget int, last bool) step {
	s := step{attempt: CompletionAttempt{Index: index, TokenBudget: budget}}

	callCtx := ctx
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	req.MaxTokens = budget
	start := time.Now()
	completion, err := g.backend.Complete(callCtx, req)
	s.attempt.Duration = time.Since(start)
	if err == nil && completion == nil {
		err = errors.New("backend returned no completion")
	}
	if err != nil {
		s.attempt.Outcome = OutcomeTransportError
		s.state = stateFatal
		s.err = &UpstreamError{Provider: g.backend.Name(), Err: err}
		return s
	}

	s.attempt.FinishReason = completion.FinishReason
	s.attempt.Usage = completion.Usage

	switch {
	case completion.Truncated && last:
		s.attempt.Outcome = OutcomeTruncated
		s.state = stateFatal
		s.err = fmt.Errorf("%w: still truncated after %d attempts (budget %d)", ErrTruncatedResponse, index, budget)
	case completion.Truncated:
		s.attempt.Outcome = OutcomeTruncated
		s.state = stateRetryableTruncation
	case strings.TrimSpace(completion.Content) == "":
		s.attempt.Outcome = OutcomeEmpty
		s.state = stateFatal
		s.err = &EmptyResponseError{FinishReason: completion.FinishReason}
	default:
		s.attempt.Outcome = OutcomeSuccess
		s.state = stateSuccess
		s.completion = completion
	}
	return s
}
