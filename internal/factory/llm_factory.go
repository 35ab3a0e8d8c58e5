package factory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/config"
	"github.com/mikey/email-classifier/internal/core"
)

// LLMFactory creates the completion gateway for the configured provider
type LLMFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	closers []func() error
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger) *LLMFactory {
	return &LLMFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateBackend creates the backend for llm.provider.
// A nil backend with a nil error means the provider has no credential.
func (f *LLMFactory) CreateBackend(ctx context.Context) (core.CompletionBackend, error) {
	provider := f.cfg.GetLLM().Provider

	switch provider {
	case config.ProviderOpenAI:
		return NewOpenAIFactory(f.cfg, f.logger).CreateBackend()
	case config.ProviderGemini:
		client, err := NewGeminiFactory(f.cfg, f.logger).CreateBackend(ctx)
		if err != nil || client == nil {
			return nil, err
		}
		f.closers = append(f.closers, client.Close)
		return client, nil
	case config.ProviderBedrock:
		return NewBedrockFactory(f.cfg, f.logger).CreateBackend(ctx)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

// CreateGateway creates the retrying gateway over the configured backend.
// observer may be nil.
func (f *LLMFactory) CreateGateway(observer core.Observer) (*core.RetryingGateway, error) {
	llmCfg := f.cfg.GetLLM()

	backend, err := f.CreateBackend(context.Background())
	if err != nil {
		return nil, err
	}
	if backend == nil {
		f.logger.Warn("Completion service credential missing, classification requests will fail",
			zap.String("provider", llmCfg.Provider))
	} else {
		f.logger.Info("Completion backend ready",
			zap.String("provider", backend.Name()),
			zap.String("model", backend.Model()))
	}

	return core.NewRetryingGateway(
		backend,
		core.NewResponseValidator(f.logger, llmCfg.DebugPayload),
		observer,
		f.logger,
		core.GatewayConfig{
			MaxOutputTokens: llmCfg.MaxOutputTokens,
			Timeout:         llmCfg.Timeout,
		},
	), nil
}

// Close releases provider clients created by the factory
func (f *LLMFactory) Close() {
	for _, closeFn := range f.closers {
		if err := closeFn(); err != nil {
			f.logger.Warn("Failed to close completion client", zap.Error(err))
		}
	}
	f.closers = nil
}
