package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/adapters/usage"
	"github.com/mikey/email-classifier/internal/config"
	"github.com/mikey/email-classifier/internal/core"
)

// Ledger is a usage ledger with background resources
type Ledger interface {
	core.UsageLedger
	Stop()
}

// UsageFactory creates usage ledgers based on configuration
type UsageFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewUsageFactory creates a new usage factory
func NewUsageFactory(cfg *config.Config, logger *zap.Logger) *UsageFactory {
	return &UsageFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateLedger creates the ledger for usage.type, or nil when usage.enabled is false
func (f *UsageFactory) CreateLedger() (Ledger, error) {
	usageCfg, err := f.cfg.GetUsage()
	if err != nil {
		return nil, err
	}
	if !usageCfg.Enabled {
		return nil, nil
	}

	switch usageCfg.Type {
	case config.LedgerMemory:
		return usage.NewMemoryLedger(usageCfg.Retention, usageCfg.CleanupFrequency, f.logger), nil
	case config.LedgerSQLite:
		if err := os.MkdirAll(filepath.Dir(usageCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return sqlLedger(usage.NewSQLiteLedger(usageCfg.SQLitePath, usageCfg.Retention, usageCfg.CleanupFrequency, f.logger))
	case config.LedgerMySQL:
		return sqlLedger(usage.NewMySQLLedger(usageCfg.MySQLDSN, usageCfg.Retention, usageCfg.CleanupFrequency, f.logger))
	default:
		return nil, fmt.Errorf("unsupported usage ledger type: %s", usageCfg.Type)
	}
}

// sqlLedger keeps a failed constructor from yielding a non-nil interface
func sqlLedger(ledger *usage.SQLLedger, err error) (Ledger, error) {
	if err != nil {
		return nil, err
	}
	return ledger, nil
}
