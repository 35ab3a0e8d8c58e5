package factory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/config"
	"github.com/mikey/email-classifier/internal/core"
)

func newConfig(t *testing.T, overrides map[string]any) *config.Config {
	t.Helper()
	v := config.NewEmptyViper()
	v.Set("openai.api_key", "")
	for key, value := range overrides {
		v.Set(key, value)
	}
	return config.NewFromViper(v)
}

func TestLLMFactory_CreateGateway(t *testing.T) {
	t.Run("missing key yields credential error", func(t *testing.T) {
		f := NewLLMFactory(newConfig(t, nil), zap.NewNop())
		gateway, err := f.CreateGateway(nil)
		require.NoError(t, err)

		_, err = gateway.Classify(context.Background(), core.BuildPrompt("oi", core.Features{}), core.NewClassificationSchema())
		assert.ErrorIs(t, err, core.ErrCredentialMissing)
	})

	t.Run("openai backend with key", func(t *testing.T) {
		f := NewLLMFactory(newConfig(t, map[string]any{"openai.api_key": "sk-test"}), zap.NewNop())
		backend, err := f.CreateBackend(context.Background())
		require.NoError(t, err)
		require.NotNil(t, backend)
		assert.Equal(t, "openai", backend.Name())
		assert.Equal(t, "gpt-5-mini", backend.Model())
	})

	t.Run("unknown provider", func(t *testing.T) {
		f := NewLLMFactory(newConfig(t, map[string]any{"llm.provider": "anthropic"}), zap.NewNop())
		_, err := f.CreateBackend(context.Background())
		assert.Error(t, err)
	})
}

func TestLimiterFactory_CreateLimiter(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		f := NewLimiterFactory(newConfig(t, map[string]any{"ratelimit.requests": 0}), zap.NewNop())
		limiter, err := f.CreateLimiter()
		require.NoError(t, err)
		assert.Nil(t, limiter)
	})

	t.Run("memory with exemptions", func(t *testing.T) {
		f := NewLimiterFactory(newConfig(t, map[string]any{
			"ratelimit.requests": 1,
			"ratelimit.exempt":   []string{"10.0.0.0/8"},
		}), zap.NewNop())
		limiter, err := f.CreateLimiter()
		require.NoError(t, err)
		require.NotNil(t, limiter)
		t.Cleanup(limiter.Stop)

		ctx := context.Background()
		require.NoError(t, limiter.Admit(ctx, "192.0.2.1"))
		assert.ErrorIs(t, limiter.Admit(ctx, "192.0.2.1"), core.ErrRateLimitExceeded)
		for i := 0; i < 5; i++ {
			assert.NoError(t, limiter.Admit(ctx, "10.1.2.3"))
		}
	})

	t.Run("invalid exemption", func(t *testing.T) {
		f := NewLimiterFactory(newConfig(t, map[string]any{"ratelimit.exempt": []string{"10.0.0.0/99"}}), zap.NewNop())
		_, err := f.CreateLimiter()
		assert.Error(t, err)
	})
}

func TestUsageFactory_CreateLedger(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		f := NewUsageFactory(newConfig(t, map[string]any{"usage.enabled": false}), zap.NewNop())
		ledger, err := f.CreateLedger()
		require.NoError(t, err)
		assert.Nil(t, ledger)
	})

	t.Run("memory", func(t *testing.T) {
		f := NewUsageFactory(newConfig(t, nil), zap.NewNop())
		ledger, err := f.CreateLedger()
		require.NoError(t, err)
		require.NotNil(t, ledger)
		ledger.Stop()
	})

	t.Run("sqlite", func(t *testing.T) {
		f := NewUsageFactory(newConfig(t, map[string]any{
			"usage.type":        "sqlite",
			"usage.sqlite_path": filepath.Join(t.TempDir(), "nested", "usage.db"),
		}), zap.NewNop())
		ledger, err := f.CreateLedger()
		require.NoError(t, err)
		require.NotNil(t, ledger)
		ledger.Stop()
	})
}
