package factory

import (
	"io"

	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/adapters/filter"
	"github.com/mikey/email-classifier/internal/config"
	"github.com/mikey/email-classifier/internal/core"
	"github.com/mikey/email-classifier/internal/ports"
)

// FilterFactory creates email intake filters based on configuration
type FilterFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service ports.Classifier
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, service *core.ClassificationService) *FilterFactory {
	return &FilterFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
	}
}

// CreateSMTPFilter creates the SMTP intake filter, or nil when smtp.enabled is false.
// limiter and onRateLimited may be nil.
func (f *FilterFactory) CreateSMTPFilter(limiter core.RateLimiter, onRateLimited func()) (ports.EmailFilter, error) {
	smtpCfg, err := f.cfg.GetSMTP()
	if err != nil {
		return nil, err
	}
	if !smtpCfg.Enabled {
		return nil, nil
	}

	return filter.NewSMTPFilter(f.service, limiter, onRateLimited, f.logger, filter.SMTPOptions{
		ListenAddr:      smtpCfg.ListenAddress,
		Domain:          smtpCfg.Domain,
		MaxMessageBytes: smtpCfg.MaxMessageBytes,
		ClassifyTimeout: smtpCfg.ClassifyTimeout,
		RelayEnabled:    smtpCfg.RelayEnabled,
		RelayAddr:       smtpCfg.RelayAddress,
		RelayPort:       smtpCfg.RelayPort,
	}), nil
}

// CreateCliFilter creates the command-line filter writing to out
func (f *FilterFactory) CreateCliFilter(out io.Writer, verbose, jsonOutput bool) ports.EmailFilter {
	return filter.NewCliFilter(f.service, out, f.logger, verbose, jsonOutput)
}
