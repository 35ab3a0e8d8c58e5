package core

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TextNormalizer bounds and sanitizes email text before it is classified
type TextNormalizer interface {
	ProcessText(text string, maxSize int) string
}

// ClassificationService is the core service for email classification
type ClassificationService struct {
	preprocessor Preprocessor
	gateway      CompletionGateway
	normalizer   TextNormalizer
	ledger       UsageLedger
	observer     Observer
	schema       *OutputSchema
	logger       *zap.Logger
	maxBodySize  int
}

// NewClassificationService creates a new classification service.
// ledger and observer may be nil.
func NewClassificationService(
	preprocessor Preprocessor,
	gateway CompletionGateway,
	normalizer TextNormalizer,
	ledger UsageLedger,
	observer Observer,
	logger *zap.Logger,
	maxBodySize int,
) *ClassificationService {
	if observer == nil {
		observer = NopObserver()
	}
	return &ClassificationService{
		preprocessor: preprocessor,
		gateway:      gateway,
		normalizer:   normalizer,
		ledger:       ledger,
		observer:     observer,
		schema:       NewClassificationSchema(),
		logger:       logger,
		maxBodySize:  maxBodySize,
	}
}

// ClassifyEmail classifies email text and drafts a reply
func (s *ClassificationService) ClassifyEmail(ctx context.Context, text string) (*ClassificationResult, error) {
	start := time.Now()
	var normalized string
	if trimmed := strings.TrimSpace(text); trimmed != "" {
		normalized = strings.TrimSpace(s.normalizer.ProcessText(trimmed, s.maxBodySize))
	}
	if normalized == "" {
		s.observer.ObserveClassification(ErrorCode(ErrEmptyInput), time.Since(start))
		return nil, ErrEmptyInput
	}

	features := s.preprocessor.Preprocess(normalized)
	messages := BuildPrompt(normalized, features)

	outcome, err := s.gateway.Classify(ctx, messages, s.schema)
	s.recordUsage(ctx, outcome, err)
	s.observer.ObserveClassification(ErrorCode(err), time.Since(start))
	if err != nil {
		s.logger.Error("Failed to classify email",
			zap.Error(err),
			zap.String("code", ErrorCode(err)),
			zap.Int("attempts", len(outcome.Attempts)))
		return nil, err
	}

	result := outcome.Result
	result.NormalizedText = normalized

	s.logger.Info("Classified email",
		zap.String("category", string(result.Category)),
		zap.Float64("confidence", result.Confidence),
		zap.String("provider", outcome.Provider),
		zap.Int("attempts", len(outcome.Attempts)))

	return result, nil
}

// recordUsage writes an accounting row; failures are logged only
func (s *ClassificationService) recordUsage(ctx context.Context, outcome GatewayResult, err error) {
	if s.ledger == nil || len(outcome.Attempts) == 0 {
		return
	}
	record := &UsageRecord{
		RequestedAt: time.Now(),
		Provider:    outcome.Provider,
		Model:       outcome.Model,
		Attempts:    len(outcome.Attempts),
		Usage:       outcome.TotalUsage(),
		Outcome:     ErrorCode(err),
	}
	if err := s.ledger.Record(context.WithoutCancel(ctx), record); err != nil {
		s.logger.Error("Failed to record usage", zap.Error(err))
	}
}
