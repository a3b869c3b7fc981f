package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/nfe-validator/internal/llm"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models offered by the LLM provider",
	Long: `Show the narrative LLM configuration and list the models the
configured OpenAI-compatible endpoint offers through GET /models.

Requires an API key (--api-key, NFE_LLM_API_KEY or LLM_API_KEY). Pick a
model for narratives with --llm-model or LLM_MODEL; the current one is
marked with *.`,
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

// vendors maps model-id fragments to their provider when the id has no "vendor/" prefix
var vendors = []struct {
	fragment string
	prefix   bool
	vendor   string
}{
	{"claude", false, "anthropic"},
	{"gpt", false, "openai"},
	{"o1", true, "openai"},
	{"o3", true, "openai"},
	{"gemini", false, "google"},
	{"llama", false, "meta"},
	{"mistral", false, "mistral"},
	{"mixtral", false, "mistral"},
	{"qwen", false, "alibaba"},
	{"deepseek", false, "deepseek"},
}

func runModels(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Current Configuration:")
	fmt.Fprintf(out, "  Base URL: %s\n", cfg.LLM.BaseURL)
	fmt.Fprintf(out, "  Model:    %s\n", cfg.LLM.Model)
	fmt.Fprintf(out, "  API key:  %s\n\n", maskKey(cfg.LLM.APIKey))

	if !cfg.LLM.Enabled() {
		fmt.Fprintln(out, "⚠️  An API key is required. Set LLM_API_KEY or pass --api-key.")
		return nil
	}

	printVerbose("Fetching %s/models\n", strings.TrimSuffix(cfg.LLM.BaseURL, "/"))
	client := llm.NewClient(cfg.LLM.APIKey,
		llm.WithBaseURL(cfg.LLM.BaseURL),
		llm.WithTimeout(30*time.Second),
	)
	models, err := client.ListModels(cmd.Context())
	if err != nil {
		fmt.Fprintf(out, "⚠️  Could not fetch models: %v\n", err)
		fmt.Fprintln(out, "Some providers do not serve /models; LLM_MODEL can still be set directly.")
		return nil
	}
	if len(models) == 0 {
		fmt.Fprintln(out, "The provider returned no models.")
		return nil
	}

	fmt.Fprintf(out, "Available Models (%d):\n\n", len(models))
	return writeModels(out, models, cfg.LLM.Model)
}

func writeModels(w io.Writer, models []llm.Model, current string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL ID\tOWNER\tCREATED")
	for _, m := range models {
		id := m.ID
		if id == current {
			id += " *"
		}
		owner := m.OwnedBy
		if owner == "" {
			owner = inferProvider(m.ID)
		}
		created := ""
		if m.Created > 0 {
			created = time.Unix(m.Created, 0).UTC().Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", id, owner, created)
	}
	return tw.Flush()
}

func maskKey(key string) string {
	switch {
	case key == "":
		return "Not set"
	case len(key) > 8:
		return "Set (" + key[:8] + "...)"
	}
	return "Set"
}

// inferProvider guesses the vendor of a model id such as "google/gemini-2.0-flash-001"
func inferProvider(modelID string) string {
	if vendor, _, ok := strings.Cut(modelID, "/"); ok {
		return vendor
	}
	id := strings.ToLower(modelID)
	for _, v := range vendors {
		if (v.prefix && strings.HasPrefix(id, v.fragment)) || (!v.prefix && strings.Contains(id, v.fragment)) {
			return v.vendor
		}
	}
	return "-"
}
