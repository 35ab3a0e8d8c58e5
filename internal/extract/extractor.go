package extract

import (
	"bytes"
	"fmt"
	"mime"
	"net/mail"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/core"
)

// Accepted declared content types
const (
	TypeText   = "text/plain"
	TypePDF    = "application/pdf"
	TypeBinary = "application/octet-stream"
	TypeEmail  = "message/rfc822"
)

var allowedTypes = map[string]struct{}{
	TypeText:   {},
	TypePDF:    {},
	TypeBinary: {},
	TypeEmail:  {},
}

// Extractor turns uploaded files into plain text
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor creates a new extractor
func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract returns the text of an uploaded file.
// It fails with core.ErrUnsupportedFormat, core.ErrEmptyFile or core.ErrExtractionFailure.
func (e *Extractor) Extract(filename, contentType string, raw []byte) (string, error) {
	declared, err := declaredType(contentType)
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", core.ErrEmptyFile
	}

	ext := strings.ToLower(filepath.Ext(filename))
	detected := mimetype.Detect(raw)

	e.logger.Debug("Extracting uploaded file",
		zap.String("filename", filename),
		zap.String("declared_type", declared),
		zap.String("detected_type", detected.String()),
		zap.Int("size", len(raw)))

	switch {
	case ext == ".pdf" || declared == TypePDF || detected.Is(TypePDF):
		return e.readPDF(raw)
	case ext == ".eml" || declared == TypeEmail:
		return readEmail(raw)
	case declared == TypeBinary && !isTextual(detected):
		return "", fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, detected.String())
	default:
		return strings.ToValidUTF8(string(raw), ""), nil
	}
}

func declaredType(contentType string) (string, error) {
	if strings.TrimSpace(contentType) == "" {
		return TypeBinary, nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, contentType)
	}
	if _, ok := allowedTypes[mediaType]; !ok {
		return "", fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, mediaType)
	}
	return mediaType, nil
}

func isTextual(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "text/") {
			return true
		}
	}
	return false
}

func (e *Extractor) readPDF(raw []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("PDF reader panicked", zap.Any("panic", r))
			text, err = "", fmt.Errorf("%w: unreadable PDF", core.ErrExtractionFailure)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("%w: failed to open PDF: %v", core.ErrExtractionFailure, err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: failed to read PDF: %v", core.ErrExtractionFailure, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("%w: failed to read PDF: %v", core.ErrExtractionFailure, err)
	}

	text = strings.TrimSpace(strings.ToValidUTF8(buf.String(), ""))
	if text == "" {
		return "", fmt.Errorf("%w: no text found in PDF", core.ErrExtractionFailure)
	}
	return text, nil
}

func readEmail(raw []byte) (string, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: failed to parse message: %v", core.ErrExtractionFailure, err)
	}

	body, err := MessageText(msg)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read message body: %v", core.ErrExtractionFailure, err)
	}

	var parts []string
	if subject := strings.TrimSpace(DecodeHeader(msg.Header.Get("Subject"))); subject != "" {
		parts = append(parts, "Assunto: "+subject)
	}
	if body != "" {
		parts = append(parts, body)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: message has no text content", core.ErrExtractionFailure)
	}
	return strings.ToValidUTF8(strings.Join(parts, "\n\n"), ""), nil
}
