package di

import (
	"io"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/config"
	"github.com/mikey/email-classifier/internal/core"
	"github.com/mikey/email-classifier/internal/extract"
	"github.com/mikey/email-classifier/internal/factory"
	"github.com/mikey/email-classifier/internal/logging"
	"github.com/mikey/email-classifier/internal/ports"
)

// CLIFlags contains the command line flags of the CLI application
type CLIFlags struct {
	Text       string
	InputFile  string
	Provider   string
	JSON       bool
	Verbose    bool
	JSONLog    bool
	ConfigFile string
	Out        io.Writer
}

// CLI bundles what the classify command needs
type CLI struct {
	Filter    ports.EmailFilter
	Extractor *extract.Extractor
	Logger    *zap.Logger
	llm       *factory.LLMFactory
}

// Close releases the provider clients
func (c *CLI) Close() {
	c.llm.Close()
	_ = c.Logger.Sync()
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		cfg, err := config.Load(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		applyFlags(cfg, flags)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if used := cfg.GetViper().ConfigFileUsed(); used != "" {
			logger.Debug("Loaded configuration from file", zap.String("file", used))
		}
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}

	// Register completion gateway
	if err := container.Provide(func(f *factory.LLMFactory) (core.CompletionGateway, error) {
		return f.CreateGateway(nil)
	}); err != nil {
		return nil, err
	}

	// Register classification service without usage ledger or metrics
	if err := container.Provide(func(
		cfg *config.Config,
		logger *zap.Logger,
		tp *factory.TextProcessorFactory,
		gateway core.CompletionGateway,
	) *core.ClassificationService {
		return newService(cfg, logger, tp, gateway, nil, nil)
	}); err != nil {
		return nil, err
	}

	// Register CLI
	if err := container.Provide(func(
		flags *CLIFlags,
		logger *zap.Logger,
		tp *factory.TextProcessorFactory,
		ff *factory.FilterFactory,
		llm *factory.LLMFactory,
	) *CLI {
		return &CLI{
			Filter:    ff.CreateCliFilter(flags.Out, flags.Verbose, flags.JSON),
			Extractor: tp.CreateExtractor(),
			Logger:    logger,
			llm:       llm,
		}
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// applyFlags layers explicit command line flags over the loaded configuration
func applyFlags(cfg *config.Config, flags *CLIFlags) {
	if flags.Provider != "" {
		cfg.GetViper().Set("llm.provider", flags.Provider)
	}
}
