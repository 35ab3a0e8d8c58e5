package ratelimit

import (
	"context"

	"github.com/mikey/email-classifier/internal/core"
	"github.com/mikey/email-classifier/internal/whitelist"
)

// ExemptLimiter skips admission for whitelisted identities
type ExemptLimiter struct {
	next    core.RateLimiter
	checker *whitelist.Checker
}

// NewExemptLimiter wraps next so identities accepted by checker always pass
func NewExemptLimiter(next core.RateLimiter, checker *whitelist.Checker) *ExemptLimiter {
	return &ExemptLimiter{next: next, checker: checker}
}

// Admit delegates to the wrapped limiter unless identity is exempt
func (l *ExemptLimiter) Admit(ctx context.Context, identity string) error {
	if l.checker != nil && l.checker.IsWhitelisted(identity) {
		return nil
	}
	return l.next.Admit(ctx, identity)
}

// Unwrap returns the wrapped limiter
func (l *ExemptLimiter) Unwrap() core.RateLimiter {
	return l.next
}
