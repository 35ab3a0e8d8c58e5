package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/adapters/httpapi"
	"github.com/mikey/email-classifier/internal/config"
	"github.com/mikey/email-classifier/internal/core"
	"github.com/mikey/email-classifier/internal/factory"
	"github.com/mikey/email-classifier/internal/logging"
	"github.com/mikey/email-classifier/internal/metrics"
	"github.com/mikey/email-classifier/internal/ports"
)

// BuildContainer creates and configures the dependency injection container of the daemon
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register metrics
	if err := container.Provide(metrics.New); err != nil {
		return nil, err
	}

	if err := provideFactories(container); err != nil {
		return nil, err
	}

	// Register completion gateway
	if err := container.Provide(func(f *factory.LLMFactory, m *metrics.Metrics) (core.CompletionGateway, error) {
		return f.CreateGateway(m)
	}); err != nil {
		return nil, err
	}

	// Register rate limiter
	if err := container.Provide(func(f *factory.LimiterFactory) (factory.Limiter, error) {
		return f.CreateLimiter()
	}); err != nil {
		return nil, err
	}

	// Register usage ledger
	if err := container.Provide(func(f *factory.UsageFactory) (factory.Ledger, error) {
		return f.CreateLedger()
	}); err != nil {
		return nil, err
	}

	// Register classification service
	if err := container.Provide(func(
		cfg *config.Config,
		logger *zap.Logger,
		tp *factory.TextProcessorFactory,
		gateway core.CompletionGateway,
		ledger factory.Ledger,
		m *metrics.Metrics,
	) *core.ClassificationService {
		return newService(cfg, logger, tp, gateway, usageLedger(ledger), m)
	}); err != nil {
		return nil, err
	}

	// Register HTTP surface
	if err := container.Provide(func(
		cfg *config.Config,
		logger *zap.Logger,
		tp *factory.TextProcessorFactory,
		service *core.ClassificationService,
		limiter factory.Limiter,
		ledger factory.Ledger,
		m *metrics.Metrics,
	) (*httpapi.Server, error) {
		serverCfg, err := cfg.GetServer()
		if err != nil {
			return nil, err
		}

		handler := httpapi.NewHandler(service, tp.CreateExtractor(), usageLedger(ledger), serverCfg.MaxUploadBytes, logger)
		opts := httpapi.RouterOptions{
			AllowedOrigins: serverCfg.AllowedOrigins,
			TrustedProxies: serverCfg.TrustedProxies,
			OnRateLimited:  func() { m.RateLimited(metrics.SurfaceHTTP) },
		}
		if serverCfg.MetricsEnabled {
			opts.Metrics = m.Handler()
		}

		router, err := httpapi.NewRouter(handler, rateLimiter(limiter), opts, logger)
		if err != nil {
			return nil, err
		}

		return httpapi.NewServer(serverCfg.ListenAddress, router, serverCfg.ReadTimeout, serverCfg.WriteTimeout, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register SMTP intake filter
	if err := container.Provide(func(f *factory.FilterFactory, limiter factory.Limiter, m *metrics.Metrics) (ports.EmailFilter, error) {
		return f.CreateSMTPFilter(rateLimiter(limiter), func() { m.RateLimited(metrics.SurfaceSMTP) })
	}); err != nil {
		return nil, err
	}

	// Register daemon
	if err := container.Provide(newDaemon); err != nil {
		return nil, err
	}

	return container, nil
}

func provideFactories(container *dig.Container) error {
	for _, constructor := range []any{
		factory.NewLLMFactory,
		factory.NewLimiterFactory,
		factory.NewUsageFactory,
		factory.NewTextProcessorFactory,
		factory.NewFilterFactory,
	} {
		if err := container.Provide(constructor); err != nil {
			return err
		}
	}
	return nil
}

// newService creates the classification service. ledger and observer may be nil.
func newService(
	cfg *config.Config,
	logger *zap.Logger,
	tp *factory.TextProcessorFactory,
	gateway core.CompletionGateway,
	ledger core.UsageLedger,
	observer core.Observer,
) *core.ClassificationService {
	return core.NewClassificationService(
		tp.CreatePreprocessor(),
		gateway,
		tp.CreateTextProcessor(),
		ledger,
		observer,
		logger,
		cfg.GetText().MaxBodySize,
	)
}

// usageLedger narrows an optional factory ledger without producing a typed nil
func usageLedger(ledger factory.Ledger) core.UsageLedger {
	if ledger == nil {
		return nil
	}
	return ledger
}

// rateLimiter narrows an optional factory limiter without producing a typed nil
func rateLimiter(limiter factory.Limiter) core.RateLimiter {
	if limiter == nil {
		return nil
	}
	return limiter
}
