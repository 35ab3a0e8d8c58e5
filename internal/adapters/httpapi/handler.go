package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/core"
)

const defaultUsageWindow = 24 * time.Hour

// Classifier classifies raw email text
type Classifier interface {
	ClassifyEmail(ctx context.Context, text string) (*core.ClassificationResult, error)
}

// TextExtractor turns an uploaded file into text
type TextExtractor interface {
	Extract(filename, contentType string, raw []byte) (string, error)
}

// Handler serves the classification endpoints
type Handler struct {
	classifier     Classifier
	extractor      TextExtractor
	ledger         core.UsageLedger
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewHandler creates a new handler. ledger may be nil.
func NewHandler(classifier Classifier, extractor TextExtractor, ledger core.UsageLedger, maxUploadBytes int64, logger *zap.Logger) *Handler {
	return &Handler{
		classifier:     classifier,
		extractor:      extractor,
		ledger:         ledger,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Analyze handles POST /analyze
func (h *Handler) Analyze(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondDetail(c, http.StatusBadRequest, msgUploadTooLarge)
			return
		}
		h.logger.Debug("Failed to parse form", zap.Error(err))
		respondDetail(c, http.StatusBadRequest, msgInvalidForm)
		return
	}

	text := c.Request.PostFormValue("text")
	fileHeader := formFile(c.Request, "file")

	switch {
	case text == "" && fileHeader == nil:
		respondDetail(c, http.StatusBadRequest, msgMissingInput)
		return
	case strings.TrimSpace(text) != "" && fileHeader != nil:
		respondDetail(c, http.StatusBadRequest, msgAmbiguousInput)
		return
	}

	if fileHeader != nil {
		extracted, err := h.readUpload(fileHeader)
		if err != nil {
			HandleError(c, err)
			return
		}
		text = extracted
	}

	result, err := h.classifier.ClassifyEmail(c.Request.Context(), text)
	if err != nil {
		HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Usage handles GET /usage?since=<duration>
func (h *Handler) Usage(c *gin.Context) {
	window := defaultUsageWindow
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			respondDetail(c, http.StatusBadRequest, msgInvalidSince)
			return
		}
		window = parsed
	}

	summary, err := h.ledger.Summary(c.Request.Context(), time.Now().Add(-window))
	if err != nil {
		HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *Handler) readUpload(fileHeader *multipart.FileHeader) (string, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}

	return h.extractor.Extract(fileHeader.Filename, fileHeader.Header.Get("Content-Type"), raw)
}

func formFile(r *http.Request, field string) *multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	if headers := r.MultipartForm.File[field]; len(headers) > 0 {
		return headers[0]
	}
	return nil
}
