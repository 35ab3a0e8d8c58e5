package usage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// NewMySQLLedger connects to a MySQL usage ledger
func NewMySQLLedger(dsn string, retention, cleanupFreq time.Duration, logger *zap.Logger) (*SQLLedger, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	return newSQLLedger(db, "mysql", []string{
		`CREATE TABLE IF NOT EXISTS usage_records (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			requested_at BIGINT NOT NULL,
			provider VARCHAR(64) NOT NULL,
			model VARCHAR(255) NOT NULL,
			attempts INT NOT NULL,
			prompt_tokens INT NOT NULL,
			completion_tokens INT NOT NULL,
			total_tokens INT NOT NULL,
			outcome VARCHAR(64) NOT NULL,
			INDEX idx_usage_requested_at (requested_at)
		)`,
	}, retention, cleanupFreq, logger)
}
