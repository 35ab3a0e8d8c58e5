package core

import (
	"errors"
	"fmt"
	"strings"
)

// Input-stage errors, detected before any call to the completion service
var (
	ErrEmptyInput        = errors.New("empty input")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrEmptyFile         = errors.New("empty file")
	ErrExtractionFailure = errors.New("text extraction failed")
)

// Admission and configuration errors
var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrCredentialMissing = errors.New("completion service credential missing")
)

// Completion and validation errors
var (
	ErrUpstreamUnavailable = errors.New("completion service unavailable")
	ErrTruncatedResponse   = errors.New("completion truncated by token limit")
	ErrEmptyResponse       = errors.New("empty response")
	ErrMalformedPayload    = errors.New("malformed payload")
	ErrMissingFields       = errors.New("missing fields")
	ErrInvalidCategory     = errors.New("invalid category")
	ErrInvalidConfidence   = errors.New("invalid confidence")
)

// RateLimitError is returned when an identity exhausted its window
type RateLimitError struct {
	RetryAfter int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %ds", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimitExceeded }

// MissingFieldsError names the required payload fields that were absent
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing fields: %s", strings.Join(e.Fields, ", "))
}

func (e *MissingFieldsError) Unwrap() error { return ErrMissingFields }

// InvalidCategoryError carries the rejected category value
type InvalidCategoryError struct {
	Value string
}

func (e *InvalidCategoryError) Error() string {
	return fmt.Sprintf("invalid category %q", e.Value)
}

func (e *InvalidCategoryError) Unwrap() error { return ErrInvalidCategory }

// EmptyResponseError is returned when the completion service produced no content
type EmptyResponseError struct {
	FinishReason string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("empty response from completion service (finish_reason=%s)", e.FinishReason)
}

func (e *EmptyResponseError) Unwrap() error { return ErrEmptyResponse }

// UpstreamError wraps a transport or service failure of a completion backend
type UpstreamError struct {
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("completion service %s unavailable: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() []error { return []error{ErrUpstreamUnavailable, e.Err} }

// ErrorCode maps an error to a stable snake_case code
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrEmptyFile):
		return "empty_file"
	case errors.Is(err, ErrExtractionFailure):
		return "extraction_failure"
	case errors.Is(err, ErrRateLimitExceeded):
		return "rate_limit_exceeded"
	case errors.Is(err, ErrCredentialMissing):
		return "credential_missing"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, ErrTruncatedResponse):
		return "truncated_response"
	case errors.Is(err, ErrEmptyResponse):
		return "empty_response"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, ErrMissingFields):
		return "missing_fields"
	case errors.Is(err, ErrInvalidCategory):
		return "invalid_category"
	case errors.Is(err, ErrInvalidConfidence):
		return "invalid_confidence"
	default:
		return "internal_error"
	}
}

// IsInputError reports whether err is a user-correctable input failure
func IsInputError(err error) bool {
	return errors.Is(err, ErrEmptyInput) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrEmptyFile) ||
		errors.Is(err, ErrExtractionFailure)
}

// IsCompletionError reports whether err originated in the gateway or the validator
func IsCompletionError(err error) bool {
	for _, target := range []error{
		ErrUpstreamUnavailable, ErrTruncatedResponse, ErrEmptyResponse, ErrMalformedPayload,
		ErrMissingFields, ErrInvalidCategory, ErrInvalidConfidence,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
