package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/adapters/openai"
	"github.com/mikey/email-classifier/internal/config"
	"github.com/mikey/email-classifier/internal/core"
)

// OpenAIFactory creates OpenAI completion backends
type OpenAIFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewOpenAIFactory creates a new OpenAI factory
func NewOpenAIFactory(cfg *config.Config, logger *zap.Logger) *OpenAIFactory {
	return &OpenAIFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateBackend creates an OpenAI backend, or nil when no API key is configured
func (f *OpenAIFactory) CreateBackend() (core.CompletionBackend, error) {
	openaiCfg := f.cfg.GetOpenAI()
	if openaiCfg.APIKey == "" {
		return nil, nil
	}

	return openai.NewClient(
		openaiCfg.APIKey,
		openaiCfg.BaseURL,
		openaiCfg.ModelName,
		openaiCfg.Temperature,
		f.logger,
	), nil
}
