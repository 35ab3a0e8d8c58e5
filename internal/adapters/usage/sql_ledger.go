package usage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/core"
)

// SQLLedger is a database/sql implementation of core.UsageLedger.
// Timestamps are stored as unix seconds so both dialects share the queries.
type SQLLedger struct {
	db          *sql.DB
	dialect     string
	logger      *zap.Logger
	retention   time.Duration
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

func newSQLLedger(db *sql.DB, dialect string, schema []string, retention, cleanupFreq time.Duration, logger *zap.Logger) (*SQLLedger, error) {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create %s usage schema: %w", dialect, err)
		}
	}

	ledger := &SQLLedger{
		db:          db,
		dialect:     dialect,
		logger:      logger,
		retention:   retention,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go ledger.startCleanupTask()
	}

	return ledger, nil
}

// Record stores a usage record
func (l *SQLLedger) Record(ctx context.Context, record *core.UsageRecord) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO usage_records
			(requested_at, provider, model, attempts, prompt_tokens, completion_tokens, total_tokens, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, record.RequestedAt.Unix(), record.Provider, record.Model, record.Attempts,
		record.Usage.PromptTokens, record.Usage.CompletionTokens, record.Usage.TotalTokens, record.Outcome)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

// Summary aggregates the records requested at or after since
func (l *SQLLedger) Summary(ctx context.Context, since time.Time) (*core.UsageSummary, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT outcome, COUNT(*),
			COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0), COALESCE(SUM(total_tokens), 0)
		FROM usage_records
		WHERE requested_at >= ?
		GROUP BY outcome
	`, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query usage summary: %w", err)
	}
	defer rows.Close()

	summary := newSummary(since)
	for rows.Next() {
		var outcome string
		var requests int
		var u core.Usage
		if err := rows.Scan(&outcome, &requests, &u.PromptTokens, &u.CompletionTokens, &u.TotalTokens); err != nil {
			return nil, fmt.Errorf("failed to scan usage summary: %w", err)
		}
		summary.add(outcome, requests, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read usage summary: %w", err)
	}

	return summary.UsageSummary, nil
}

// Cleanup removes records older than the retention period
func (l *SQLLedger) Cleanup(ctx context.Context) error {
	if l.retention <= 0 {
		return nil
	}

	result, err := l.db.ExecContext(ctx, `
		DELETE FROM usage_records
		WHERE requested_at <= ?
	`, time.Now().Add(-l.retention).Unix())
	if err != nil {
		return fmt.Errorf("failed to clean up expired usage records: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		l.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		l.logger.Debug("Cleaned up expired usage records",
			zap.String("dialect", l.dialect),
			zap.Int64("expired_count", rowsAffected))
	}

	return nil
}

func (l *SQLLedger) startCleanupTask() {
	ticker := time.NewTicker(l.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := l.Cleanup(context.Background()); err != nil {
				l.logger.Error("Failed to clean up usage records", zap.Error(err))
			}
		case <-l.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task and closes the database connection
func (l *SQLLedger) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		if err := l.db.Close(); err != nil {
			l.logger.Error("Failed to close usage database", zap.String("dialect", l.dialect), zap.Error(err))
		}
	})
}
