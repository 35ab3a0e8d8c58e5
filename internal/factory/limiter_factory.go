package factory

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/config"
	"github.com/mikey/email-classifier/internal/core"
	"github.com/mikey/email-classifier/internal/ratelimit"
	"github.com/mikey/email-classifier/internal/whitelist"
)

// Limiter is a rate limiter with background resources
type Limiter interface {
	core.RateLimiter
	Stop()
}

type limiter struct {
	core.RateLimiter
	stop func()
}

func (l *limiter) Stop() { l.stop() }

// LimiterFactory creates rate limiters based on configuration
type LimiterFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewLimiterFactory creates a new limiter factory
func NewLimiterFactory(cfg *config.Config, logger *zap.Logger) *LimiterFactory {
	return &LimiterFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateLimiter creates the limiter for ratelimit.backend.
// It returns nil when ratelimit.requests is not positive.
func (f *LimiterFactory) CreateLimiter() (Limiter, error) {
	rlCfg, err := f.cfg.GetRateLimit()
	if err != nil {
		return nil, err
	}
	if rlCfg.Requests <= 0 {
		f.logger.Info("Rate limiting disabled")
		return nil, nil
	}

	var out *limiter
	switch rlCfg.Backend {
	case config.LimiterMemory:
		memory := ratelimit.NewMemoryLimiter(rlCfg.Requests, rlCfg.Window, rlCfg.CleanupFrequency, f.logger)
		out = &limiter{RateLimiter: memory, stop: memory.Stop}
	case config.LimiterRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     rlCfg.Redis.Address,
			Password: rlCfg.Redis.Password,
			DB:       rlCfg.Redis.DB,
		})
		shared := ratelimit.NewRedisLimiter(client, rlCfg.Requests, rlCfg.Window, rlCfg.Redis.Prefix, f.logger)
		out = &limiter{RateLimiter: shared, stop: func() {
			if err := shared.Close(); err != nil {
				f.logger.Warn("Failed to close Redis client", zap.Error(err))
			}
		}}
	default:
		return nil, fmt.Errorf("unsupported rate limit backend: %s", rlCfg.Backend)
	}

	if len(rlCfg.Exempt) > 0 {
		checker, err := whitelist.NewChecker(rlCfg.Exempt, f.logger)
		if err != nil {
			out.stop()
			return nil, fmt.Errorf("invalid ratelimit.exempt: %w", err)
		}
		out.RateLimiter = ratelimit.NewExemptLimiter(out.RateLimiter, checker)
	}

	f.logger.Info("Rate limiting enabled",
		zap.String("backend", rlCfg.Backend),
		zap.Int("requests", rlCfg.Requests),
		zap.Duration("window", rlCfg.Window),
		zap.Int("exempt", len(rlCfg.Exempt)))

	return out, nil
}
