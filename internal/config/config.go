package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// envBindings maps configuration keys to environment variable names
// that predate the EMAIL_CLASSIFIER_ prefix
var envBindings = map[string][]string{
	"llm.provider":             {"LLM_PROVIDER"},
	"llm.max_output_tokens":    {"OPENAI_MAX_OUTPUT_TOKENS"},
	"llm.timeout_seconds":      {"OPENAI_TIMEOUT_SECONDS"},
	"llm.debug_payload":        {"OPENAI_DEBUG_PAYLOAD"},
	"openai.api_key":           {"OPENAI_API_KEY"},
	"openai.model_name":        {"OPENAI_MODEL"},
	"openai.base_url":          {"OPENAI_BASE_URL"},
	"gemini.api_key":           {"GEMINI_API_KEY"},
	"ratelimit.requests":       {"RATE_LIMIT_REQUESTS"},
	"ratelimit.window_seconds": {"RATE_LIMIT_WINDOW_SECONDS"},
}

// New creates a new configuration instance from the default search paths
func New() (*Config, error) {
	return Load("")
}

// Load creates a configuration instance. A non-empty configFile replaces the search paths.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/email-classifier/")
		v.AddConfigPath("$HOME/.email-classifier")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{v: v}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults and environment bindings
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	_ = bindEnv(v)
	return v
}

func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix("EMAIL_CLASSIFIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range envBindings {
		prefixed := "EMAIL_CLASSIFIER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, prefixed}, names...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// LLM defaults
	v.SetDefault("llm.provider", ProviderOpenAI)
	v.SetDefault("llm.max_output_tokens", 1000)
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("llm.debug_payload", false)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model_name", "gpt-5-mini")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.temperature", 0)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-1.5-flash")
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("gemini.top_p", 0.9)

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("bedrock.temperature", 0.1)
	v.SetDefault("bedrock.top_p", 0.9)

	// Text defaults
	v.SetDefault("text.max_body_size", 20000)

	// Rate limit defaults
	v.SetDefault("ratelimit.requests", 60)
	v.SetDefault("ratelimit.window_seconds", 60)
	v.SetDefault("ratelimit.backend", LimiterMemory)
	v.SetDefault("ratelimit.cleanup_frequency", "5m")
	v.SetDefault("ratelimit.exempt", []string{})
	v.SetDefault("ratelimit.redis.address", "localhost:6379")
	v.SetDefault("ratelimit.redis.password", "")
	v.SetDefault("ratelimit.redis.db", 0)
	v.SetDefault("ratelimit.redis.prefix", "email_classifier:ratelimit")

	// Server defaults
	v.SetDefault("server.listen_address", "0.0.0.0:8000")
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "4m")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.trusted_proxies", []string{})

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)

	// Usage ledger defaults
	v.SetDefault("usage.enabled", true)
	v.SetDefault("usage.type", LedgerMemory)
	v.SetDefault("usage.retention", "720h")
	v.SetDefault("usage.cleanup_frequency", "1h")
	v.SetDefault("usage.sqlite_path", "/data/usage.db")
	v.SetDefault("usage.mysql_dsn", "user:password@tcp(localhost:3306)/email_classifier")

	// SMTP intake defaults
	v.SetDefault("smtp.enabled", false)
	v.SetDefault("smtp.listen_address", "0.0.0.0:10025")
	v.SetDefault("smtp.domain", "localhost")
	v.SetDefault("smtp.max_message_bytes", 30<<20)
	v.SetDefault("smtp.classify_timeout", "4m")
	v.SetDefault("smtp.relay.enabled", false)
	v.SetDefault("smtp.relay.address", "localhost")
	v.SetDefault("smtp.relay.port", 10026)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
