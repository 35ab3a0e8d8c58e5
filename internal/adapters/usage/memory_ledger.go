package usage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/core"
)

// MemoryLedger is an in-memory implementation of core.UsageLedger
type MemoryLedger struct {
	records     []core.UsageRecord
	mu          sync.RWMutex
	retention   time.Duration
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMemoryLedger creates a new in-memory ledger
func NewMemoryLedger(retention, cleanupFreq time.Duration, logger *zap.Logger) *MemoryLedger {
	ledger := &MemoryLedger{
		retention:   retention,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go ledger.startCleanupTask()
	}

	return ledger
}

// Record stores a usage record
func (l *MemoryLedger) Record(_ context.Context, record *core.UsageRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, *record)
	return nil
}

// Summary aggregates the records requested at or after since
func (l *MemoryLedger) Summary(_ context.Context, since time.Time) (*core.UsageSummary, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	summary := newSummary(since)
	for _, r := range l.records {
		if r.RequestedAt.Before(since) {
			continue
		}
		summary.add(r.Outcome, 1, r.Usage)
	}
	return summary.UsageSummary, nil
}

// Cleanup removes records older than the retention period
func (l *MemoryLedger) Cleanup(_ context.Context) error {
	if l.retention <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-l.retention)
	kept := l.records[:0]
	for _, r := range l.records {
		if r.RequestedAt.After(cutoff) {
			kept = append(kept, r)
		}
	}
	removed := len(l.records) - len(kept)
	l.records = kept

	l.logger.Debug("Cleaned up expired usage records", zap.Int("expired_count", removed))
	return nil
}

func (l *MemoryLedger) startCleanupTask() {
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

// Stop stops the background cleanup task
func (l *MemoryLedger) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// summaryBuilder accumulates per-outcome totals
type summaryBuilder struct {
	*core.UsageSummary
}

func newSummary(since time.Time) summaryBuilder {
	return summaryBuilder{&core.UsageSummary{Since: since, ByOutcome: make(map[string]int)}}
}

func (b summaryBuilder) add(outcome string, requests int, usage core.Usage) {
	b.Requests += requests
	b.Usage = b.Usage.Add(usage)
	b.ByOutcome[outcome] += requests
}
