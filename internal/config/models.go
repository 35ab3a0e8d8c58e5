package config

import (
	"fmt"
	"time"
)

// Supported providers and backends
const (
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
	ProviderBedrock = "bedrock"

	LimiterMemory = "memory"
	LimiterRedis  = "redis"

	LedgerMemory = "memory"
	LedgerSQLite = "sqlite"
	LedgerMySQL  = "mysql"
)

// LLMConfig represents the provider-independent completion settings
type LLMConfig struct {
	Provider        string
	MaxOutputTokens int
	Timeout         time.Duration
	DebugPayload    bool
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	BaseURL     string
	Temperature float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	Temperature float32
	TopP        float32
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	Temperature float32
	TopP        float32
}

// TextConfig represents the text normalization settings
type TextConfig struct {
	MaxBodySize int
}

// RedisConfig represents the connection of the distributed limiter
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// RateLimitConfig represents the sliding window limiter settings.
// A non-positive Requests disables the limiter.
type RateLimitConfig struct {
	Requests         int
	Window           time.Duration
	Backend          string
	CleanupFrequency time.Duration
	Exempt           []string
	Redis            RedisConfig
}

// ServerConfig represents the HTTP API settings
type ServerConfig struct {
	ListenAddress   string
	MaxUploadBytes  int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	TrustedProxies  []string
	MetricsEnabled  bool
}

// SMTPConfig represents the SMTP intake settings
type SMTPConfig struct {
	Enabled         bool
	ListenAddress   string
	Domain          string
	MaxMessageBytes int64
	ClassifyTimeout time.Duration
	RelayEnabled    bool
	RelayAddress    string
	RelayPort       int
}

// UsageConfig represents the usage ledger settings
type UsageConfig struct {
	Enabled          bool
	Type             string
	Retention        time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider:        c.GetString("llm.provider"),
		MaxOutputTokens: c.GetInt("llm.max_output_tokens"),
		Timeout:         time.Duration(c.GetInt("llm.timeout_seconds")) * time.Second,
		DebugPayload:    c.GetBool("llm.debug_payload"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		BaseURL:     c.GetString("openai.base_url"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetText returns the text normalization configuration
func (c *Config) GetText() TextConfig {
	return TextConfig{
		MaxBodySize: c.GetInt("text.max_body_size"),
	}
}

// GetRateLimit returns the rate limit configuration
func (c *Config) GetRateLimit() (RateLimitConfig, error) {
	cleanup, err := c.GetDuration("ratelimit.cleanup_frequency")
	if err != nil {
		return RateLimitConfig{}, err
	}
	return RateLimitConfig{
		Requests:         c.GetInt("ratelimit.requests"),
		Window:           time.Duration(c.GetInt("ratelimit.window_seconds")) * time.Second,
		Backend:          c.GetString("ratelimit.backend"),
		CleanupFrequency: cleanup,
		Exempt:           c.GetStringSlice("ratelimit.exempt"),
		Redis: RedisConfig{
			Address:  c.GetString("ratelimit.redis.address"),
			Password: c.GetString("ratelimit.redis.password"),
			DB:       c.GetInt("ratelimit.redis.db"),
			Prefix:   c.GetString("ratelimit.redis.prefix"),
		},
	}, nil
}

// GetServer returns the HTTP server configuration
func (c *Config) GetServer() (ServerConfig, error) {
	durations, err := c.durations("server.read_timeout", "server.write_timeout", "server.shutdown_timeout")
	if err != nil {
		return ServerConfig{}, err
	}
	return ServerConfig{
		ListenAddress:   c.GetString("server.listen_address"),
		MaxUploadBytes:  c.v.GetInt64("server.max_upload_bytes"),
		ReadTimeout:     durations[0],
		WriteTimeout:    durations[1],
		ShutdownTimeout: durations[2],
		AllowedOrigins:  c.GetStringSlice("server.cors.allowed_origins"),
		TrustedProxies:  c.GetStringSlice("server.trusted_proxies"),
		MetricsEnabled:  c.GetBool("metrics.enabled"),
	}, nil
}

// GetSMTP returns the SMTP intake configuration
func (c *Config) GetSMTP() (SMTPConfig, error) {
	timeout, err := c.GetDuration("smtp.classify_timeout")
	if err != nil {
		return SMTPConfig{}, err
	}
	return SMTPConfig{
		Enabled:         c.GetBool("smtp.enabled"),
		ListenAddress:   c.GetString("smtp.listen_address"),
		Domain:          c.GetString("smtp.domain"),
		MaxMessageBytes: c.v.GetInt64("smtp.max_message_bytes"),
		ClassifyTimeout: timeout,
		RelayEnabled:    c.GetBool("smtp.relay.enabled"),
		RelayAddress:    c.GetString("smtp.relay.address"),
		RelayPort:       c.GetInt("smtp.relay.port"),
	}, nil
}

// GetUsage returns the usage ledger configuration
func (c *Config) GetUsage() (UsageConfig, error) {
	durations, err := c.durations("usage.retention", "usage.cleanup_frequency")
	if err != nil {
		return UsageConfig{}, err
	}
	return UsageConfig{
		Enabled:          c.GetBool("usage.enabled"),
		Type:             c.GetString("usage.type"),
		Retention:        durations[0],
		CleanupFrequency: durations[1],
		SQLitePath:       c.GetString("usage.sqlite_path"),
		MySQLDSN:         c.GetString("usage.mysql_dsn"),
	}, nil
}

func (c *Config) durations(keys ...string) ([]time.Duration, error) {
	out := make([]time.Duration, len(keys))
	for i, key := range keys {
		d, err := c.GetDuration(key)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

// Validate rejects configurations that cannot be wired
func (c *Config) Validate() error {
	switch provider := c.GetLLM().Provider; provider {
	case ProviderOpenAI, ProviderGemini, ProviderBedrock:
	default:
		return fmt.Errorf("unsupported LLM provider: %s", provider)
	}

	if llm := c.GetLLM(); llm.Timeout <= 0 {
		return fmt.Errorf("llm.timeout_seconds must be positive")
	}

	rl, err := c.GetRateLimit()
	if err != nil {
		return err
	}
	if rl.Requests > 0 {
		if rl.Window <= 0 {
			return fmt.Errorf("ratelimit.window_seconds must be positive when the limiter is enabled")
		}
		switch rl.Backend {
		case LimiterMemory, LimiterRedis:
		default:
			return fmt.Errorf("unsupported rate limit backend: %s", rl.Backend)
		}
	}

	usage, err := c.GetUsage()
	if err != nil {
		return err
	}
	if usage.Enabled {
		switch usage.Type {
		case LedgerMemory, LedgerSQLite, LedgerMySQL:
		default:
			return fmt.Errorf("unsupported usage ledger type: %s", usage.Type)
		}
	}

	if _, err := c.GetServer(); err != nil {
		return err
	}
	if _, err := c.GetSMTP(); err != nil {
		return err
	}

	return nil
}
