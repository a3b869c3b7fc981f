package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/nfe-validator/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, runtime.NumCPU(), cfg.Batch.Workers)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 1.0, cfg.LLM.RatePerSecond)
	assert.Equal(t, 2, cfg.LLM.Burst)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Trust.SkipOCSP)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("NFE_SERVER_ADDRESS", ":9090")
	t.Setenv("NFE_BATCH_WORKERS", "3")
	t.Setenv("NFE_LLM_TIMEOUT", "5s")
	t.Setenv("NFE_TRUST_SKIP_OCSP", "true")
	t.Setenv("LLM_API_KEY", "legacy-key")
	t.Setenv("LLM_MODEL", "openai/gpt-4o-mini")

	cfg, err := config.Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 3, cfg.Batch.Workers)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.True(t, cfg.Trust.SkipOCSP)
	assert.Equal(t, "legacy-key", cfg.LLM.APIKey)
	assert.Equal(t, "openai/gpt-4o-mini", cfg.LLM.Model)
	assert.True(t, cfg.LLM.Enabled())
}

func TestLoad_PrefixedKeyWins(t *testing.T) {
	t.Setenv("NFE_LLM_API_KEY", "prefixed")
	t.Setenv("LLM_API_KEY", "legacy")

	cfg, err := config.Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.LLM.APIKey)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nfe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":7000"
log:
  format: console
trust:
  ca_file: /etc/nfe/icp-brasil.pem
`), 0o600))

	v := viper.New()
	v.Set("config", path)
	cfg, err := config.Load(v)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Address)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "/etc/nfe/icp-brasil.pem", cfg.Trust.CAFile)
}

func TestLoad_MissingFile(t *testing.T) {
	v := viper.New()
	v.Set("config", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := config.Load(v)
	assert.Error(t, err)
}

func TestLoad_Flags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("workers", 0, "")
	require.NoError(t, fs.Parse([]string{"--workers", "7"}))

	v := viper.New()
	require.NoError(t, v.BindPFlag("batch.workers", fs.Lookup("workers")))

	cfg, err := config.Load(v)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Batch.Workers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		errMsg string
	}{
		{"workers", func(c *config.Config) { c.Batch.Workers = 0 }, "batch.workers"},
		{"timeout", func(c *config.Config) { c.LLM.Timeout = 0 }, "llm.timeout"},
		{"rate", func(c *config.Config) { c.LLM.RatePerSecond = -1 }, "llm.rate_per_second"},
		{"retries", func(c *config.Config) { c.LLM.MaxRetries = -1 }, "llm.max_retries"},
		{"upload", func(c *config.Config) { c.Server.MaxUploadBytes = 0 }, "server.max_upload_bytes"},
		{"log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load(viper.New())
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
