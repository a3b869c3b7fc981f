package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/rezonia/nfe-validator/internal/config"
	"github.com/rezonia/nfe-validator/internal/llm"
	"github.com/rezonia/nfe-validator/internal/logger"
	"github.com/rezonia/nfe-validator/internal/processor"
	"github.com/rezonia/nfe-validator/internal/validator"
)

var (
	version = "1.0.0"

	// Global flags
	verbose      bool
	outputFormat string

	v   = viper.New()
	cfg *config.Config
	log = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "nfe-validator",
	Short: "Extract and validate Brazilian NF-e invoices",
	Long: `NF-e Validator extracts structured data from NF-e XML documents (modelo 55)
and checks them for fiscal consistency.

Checks:
  - CNPJ, CPF and access key check digits
  - Line items (quantity x unit price) and invoice totals
  - High value, item count and discount alerts
  - Optional narrative analysis through an OpenAI-compatible LLM

Examples:
  # Validate a single document
  nfe-validator validate nota.xml

  # Process a folder and a ZIP archive into CSV
  nfe-validator process notas/ lote.zip -f csv -o resultado.csv

  # Add an LLM narrative
  nfe-validator process nota.xml --api-key <openrouter-key>

  # Verify the XMLDSig signature against ICP-Brasil roots
  nfe-validator verify --ca-file icp-brasil.pem nota.xml`,
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command. ctx is canceled on SIGINT/SIGTERM.
func Execute(ctx context.Context) error {
	defer func() { _ = log.Sync() }()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (yaml, json or toml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	flags.StringVarP(&outputFormat, "format", "f", "json", "Output format (json, csv, table)")
	flags.String("api-key", "", "API key for the LLM provider (env: LLM_API_KEY)")
	flags.String("llm-base-url", llm.DefaultBaseURL, "LLM API base URL (env: LLM_BASE_URL)")
	flags.String("llm-model", llm.ModelGeminiFlash, "LLM model for narrative analysis (env: LLM_MODEL)")
	flags.Duration("llm-timeout", validator.DefaultNarrativeTimeout, "Timeout of each narrative call")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", logger.FormatJSON, "Log format (json, console)")
	flags.Int("workers", 0, "Parallel documents in a batch (default: number of CPUs)")

	mustBind("config", flags.Lookup("config"))
	mustBind("llm.api_key", flags.Lookup("api-key"))
	mustBind("llm.base_url", flags.Lookup("llm-base-url"))
	mustBind("llm.model", flags.Lookup("llm-model"))
	mustBind("llm.timeout", flags.Lookup("llm-timeout"))
	mustBind("log.level", flags.Lookup("log-level"))
	mustBind("log.format", flags.Lookup("log-format"))
	mustBind("batch.workers", flags.Lookup("workers"))
}

func mustBind(key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

// commandKeys maps flags defined by more than one subcommand to their config key
var commandKeys = map[string]string{
	"ca-file":   "trust.ca_file",
	"skip-ocsp": "trust.skip_ocsp",
}

func loadConfig(cmd *cobra.Command, args []string) error {
	for name, key := range commandKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			mustBind(key, f)
		}
	}

	c, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = c

	l, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	log = l

	return nil
}

// newPipeline wires extraction, validation and, when an API key is
// configured, the LLM narrator.
func newPipeline() *processor.Pipeline {
	vopts := []validator.Option{
		validator.WithLogger(log),
		validator.WithNarrativeTimeout(cfg.LLM.Timeout),
	}

	if cfg.LLM.Enabled() {
		client := llm.NewClient(cfg.LLM.APIKey,
			llm.WithBaseURL(cfg.LLM.BaseURL),
			llm.WithDefaultModel(cfg.LLM.Model),
			llm.WithMaxRetries(cfg.LLM.MaxRetries),
		)
		narrator := llm.NewNarrator(client,
			llm.WithRateLimit(cfg.LLM.RatePerSecond, cfg.LLM.Burst),
			llm.WithLogger(log),
		)
		vopts = append(vopts, validator.WithNarrator(narrator))
		printVerbose("LLM narrative enabled (model: %s)\n", cfg.LLM.Model)
	}

	return processor.NewPipeline(
		processor.WithValidator(validator.New(vopts...)),
		processor.WithWorkers(cfg.Batch.Workers),
		processor.WithLogger(log),
	)
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
