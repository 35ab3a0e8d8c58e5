package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	maxHighlights  = 3
	maxPreviewSize = 200
)

var requiredFields = []string{"category", "confidence", "suggested_response"}

// ResponseValidator turns raw completion content into a ClassificationResult
type ResponseValidator struct {
	logger       *zap.Logger
	debugPayload bool
}

// NewResponseValidator creates a new validator.
// When debugPayload is set the raw content is logged at debug level.
func NewResponseValidator(logger *zap.Logger, debugPayload bool) *ResponseValidator {
	return &ResponseValidator{
		logger:       logger,
		debugPayload: debugPayload,
	}
}

// Parse validates raw content and returns the normalized result
func (v *ResponseValidator) Parse(raw string) (*ClassificationResult, error) {
	if v.debugPayload {
		v.logger.Debug("Raw completion payload", zap.String("content", raw))
	}

	span, ok := extractObject(stripCodeFence(raw))
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in %q", ErrMalformedPayload, preview(raw))
	}

	var decoded any
	if err := json.Unmarshal([]byte(span), &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	payload, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: payload is not an object", ErrMalformedPayload)
	}

	var missing []string
	for _, name := range requiredFields {
		if value, present := payload[name]; !present || value == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}

	categoryValue, isString := payload["category"].(string)
	category := Category(categoryValue)
	if !isString || !category.Valid() {
		return nil, &InvalidCategoryError{Value: fmt.Sprint(payload["category"])}
	}

	confidence, isNumber := payload["confidence"].(float64)
	if !isNumber {
		return nil, fmt.Errorf("%w: %v is not a number", ErrInvalidConfidence, payload["confidence"])
	}
	confidence = min(max(confidence, 0), 1)

	suggested, _ := payload["suggested_response"].(string)
	suggested = strings.TrimSpace(suggested)
	if suggested == "" {
		return nil, fmt.Errorf("%w: suggested_response is blank", ErrEmptyResponse)
	}

	result := &ClassificationResult{
		Category:          category,
		SuggestedResponse: suggested,
		Confidence:        confidence,
		Highlights:        stringList(payload["highlights"], maxHighlights),
		RawLabels:         stringList(payload["raw_labels"], 0),
	}
	if justification, ok := payload["justification"].(string); ok {
		result.Justification = &justification
	}

	return result, nil
}

// stripCodeFence removes a leading and a trailing fence marker line
func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[idx+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// extractObject returns the span between the first '{' and the last '}'
func extractObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// stringList converts a JSON array to strings, nil for anything else.
// A positive limit caps the number of items.
func stringList(value any, limit int) []string {
	items, ok := value.([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if limit > 0 && len(out) == limit {
			break
		}
		switch typed := item.(type) {
		case string:
			out = append(out, typed)
		case nil:
		default:
			out = append(out, fmt.Sprint(typed))
		}
	}
	return out
}

func preview(raw string) string {
	if len(raw) <= maxPreviewSize {
		return raw
	}
	cut := raw[:maxPreviewSize]
	for !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut + "..."
}
