package factory

import (
	"context"

	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/adapters/gemini"
	"github.com/mikey/email-classifier/internal/config"
)

// GeminiFactory creates Gemini completion backends
type GeminiFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewGeminiFactory creates a new Gemini factory
func NewGeminiFactory(cfg *config.Config, logger *zap.Logger) *GeminiFactory {
	return &GeminiFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateBackend creates a Gemini backend, or nil when no API key is configured
func (f *GeminiFactory) CreateBackend(ctx context.Context) (*gemini.Client, error) {
	geminiCfg := f.cfg.GetGemini()
	if geminiCfg.APIKey == "" {
		return nil, nil
	}

	return gemini.NewClient(
		ctx,
		geminiCfg.APIKey,
		geminiCfg.ModelName,
		geminiCfg.Temperature,
		geminiCfg.TopP,
		f.logger,
	)
}
