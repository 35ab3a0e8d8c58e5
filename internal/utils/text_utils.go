package utils

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// TruncationMarker is appended to text cut by TruncateText
const TruncationMarker = "\n[... conteúdo truncado ...]"

// TextProcessor bounds and sanitizes email text before classification
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		logger: logger,
	}
}

// TruncateText cuts text to at most maxRunes characters.
// A non-positive maxRunes disables truncation.
func (tp *TextProcessor) TruncateText(text string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}

	count := 0
	cut := len(text)
	for i := range text {
		if count == maxRunes {
			cut = i
			break
		}
		count++
	}
	truncated := strings.TrimRightFunc(text[:cut], isSpace)

	tp.logger.Debug("Text truncated",
		zap.Int("original_bytes", len(text)),
		zap.Int("truncated_bytes", len(truncated)),
		zap.Int("max_runes", maxRunes))

	return truncated + TruncationMarker
}

// SanitizeUTF8 drops invalid UTF-8 sequences and NUL bytes
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) && !strings.ContainsRune(text, 0) {
		return text
	}

	sanitized := strings.ToValidUTF8(text, "")
	sanitized = strings.ReplaceAll(sanitized, "\x00", "")

	tp.logger.Debug("Text sanitized",
		zap.Int("original_bytes", len(text)),
		zap.Int("sanitized_bytes", len(sanitized)))

	return sanitized
}

// NormalizeLineEndings converts CRLF and CR line breaks to LF
func (tp *TextProcessor) NormalizeLineEndings(text string) string {
	if !strings.ContainsRune(text, '\r') {
		return text
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// ProcessText sanitizes, normalizes and truncates text in one operation
func (tp *TextProcessor) ProcessText(text string, maxRunes int) string {
	sanitized := tp.SanitizeUTF8(text)
	normalized := tp.NormalizeLineEndings(sanitized)
	return tp.TruncateText(strings.TrimSpace(normalized), maxRunes)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
