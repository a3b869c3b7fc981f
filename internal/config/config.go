// Package config loads the application configuration through viper from
// defaults, an optional file, environment variables and bound flags.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. NFE_SERVER_ADDRESS
const EnvPrefix = "NFE"

// Config groups every setting of the CLI and the server
type Config struct {
	LLM    LLMConfig    `mapstructure:"llm"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	Batch  BatchConfig  `mapstructure:"batch"`
	Trust  TrustConfig  `mapstructure:"trust"`
}

// LLMConfig configures the narrative collaborator. An empty APIKey disables it.
type LLMConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Model         string        `mapstructure:"model"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	MaxRetries    int           `mapstructure:"max_retries"`
}

// Enabled reports whether narrative analysis can run
func (c LLMConfig) Enabled() bool {
	return c.APIKey != ""
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Address        string        `mapstructure:"address"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	Debug          bool          `mapstructure:"debug"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type BatchConfig struct {
	Workers int `mapstructure:"workers"`
}

// TrustConfig configures signature chain verification
type TrustConfig struct {
	CAFile   string `mapstructure:"ca_file"`
	SkipOCSP bool   `mapstructure:"skip_ocsp"`
}

// SetDefaults registers every key with its default value
func SetDefaults(v *viper.Viper) {
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("llm.model", "google/gemini-2.0-flash-001")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.rate_per_second", 1.0)
	v.SetDefault("llm.burst", 2)
	v.SetDefault("llm.max_retries", 2)

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.max_upload_bytes", int64(32<<20))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("batch.workers", runtime.NumCPU())

	v.SetDefault("trust.ca_file", "")
	v.SetDefault("trust.skip_ocsp", false)
}

// Load resolves the configuration. Precedence: bound flags, environment,
// config file (key "config"), defaults.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed names kept for existing deployments.
	_ = v.BindEnv("llm.api_key", EnvPrefix+"_LLM_API_KEY", "LLM_API_KEY")
	_ = v.BindEnv("llm.base_url", EnvPrefix+"_LLM_BASE_URL", "LLM_BASE_URL")
	_ = v.BindEnv("llm.model", EnvPrefix+"_LLM_MODEL", "LLM_MODEL")

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the components cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Batch.Workers < 1 {
		errs = append(errs, fmt.Errorf("batch.workers must be >= 1, got %d", c.Batch.Workers))
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("llm.timeout must be positive, got %s", c.LLM.Timeout))
	}
	if c.LLM.RatePerSecond < 0 {
		errs = append(errs, fmt.Errorf("llm.rate_per_second must be >= 0, got %v", c.LLM.RatePerSecond))
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("llm.max_retries must be >= 0, got %d", c.LLM.MaxRetries))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes must be positive, got %d", c.Server.MaxUploadBytes))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
