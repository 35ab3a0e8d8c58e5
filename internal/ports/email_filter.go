package ports

import (
	"context"
	"strings"

	"github.com/mikey/email-classifier/internal/core"
)

// Email is a message handed to an intake filter
type Email struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Text returns the classification input of the message
func (e *Email) Text() string {
	subject := strings.TrimSpace(e.Subject)
	if subject == "" {
		return e.Body
	}
	return "Assunto: " + subject + "\n\n" + e.Body
}

// EmailFilter defines the interface for email intake surfaces
type EmailFilter interface {
	// ProcessEmail classifies an email and returns the result
	ProcessEmail(ctx context.Context, email *Email) (*core.ClassificationResult, error)

	// Start starts the email filter service
	Start() error

	// Stop stops the email filter service
	Stop() error
}

// Classifier is the classification use case consumed by the filters
type Classifier interface {
	ClassifyEmail(ctx context.Context, text string) (*core.ClassificationResult, error)
}
