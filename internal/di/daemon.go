package di

import (
	"context"
	"fmt"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/adapters/httpapi"
	"github.com/mikey/email-classifier/internal/config"
	"github.com/mikey/email-classifier/internal/factory"
	"github.com/mikey/email-classifier/internal/ports"
)

type daemonParams struct {
	dig.In

	Config     *config.Config
	Logger     *zap.Logger
	Server     *httpapi.Server
	SMTP       ports.EmailFilter
	LLMFactory *factory.LLMFactory
	Limiter    factory.Limiter
	Ledger     factory.Ledger
}

// Daemon runs the HTTP API and the optional SMTP intake
type Daemon struct {
	params daemonParams
}

func newDaemon(p daemonParams) *Daemon {
	return &Daemon{params: p}
}

// Run serves until ctx is cancelled or a listener fails, then shuts down
func (d *Daemon) Run(ctx context.Context) error {
	p := d.params
	defer d.close()

	if p.SMTP != nil {
		if err := p.SMTP.Start(); err != nil {
			return fmt.Errorf("failed to start SMTP filter: %w", err)
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- p.Server.Start()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		p.Logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	serverCfg, err := p.Config.GetServer()
	if err != nil {
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer cancel()

	if err := p.Server.Shutdown(shutdownCtx); err != nil {
		p.Logger.Error("Failed to shut down HTTP server", zap.Error(err))
	}
	if p.SMTP != nil {
		if err := p.SMTP.Stop(); err != nil {
			p.Logger.Error("Failed to stop SMTP filter", zap.Error(err))
		}
	}

	return runErr
}

func (d *Daemon) close() {
	p := d.params
	if p.Limiter != nil {
		p.Limiter.Stop()
	}
	if p.Ledger != nil {
		p.Ledger.Stop()
	}
	p.LLMFactory.Close()
	_ = p.Logger.Sync()
}
