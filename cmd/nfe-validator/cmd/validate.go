package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/nfe-validator/internal/processor"
)

var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Validate NF-e files",
	Long: `Validate one or more NF-e documents and print a pass/fail summary.

Checks performed:
  - Emitter CNPJ, recipient CPF/CNPJ and access key check digits
  - Line items: quantity x unit price within R$ 0.01
  - Totals: products + freight + insurance + IPI - discount within R$ 0.10
  - Alerts for high value (> R$ 100,000.00), more than 50 items and estimated issue date

The command exits non-zero when any document is invalid or unreadable.

Examples:
  nfe-validator validate nota.xml
  nfe-validator validate notas/*.xml lote.zip -f json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	docs, err := loadDocuments(args)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no files found to validate")
	}

	results := newPipeline().ProcessBatch(cmd.Context(), docs)

	var failed int
	out := make([]*ProcessResult, len(results))
	for i, r := range results {
		out[i] = newProcessResult(r)
		if !r.OK() || !r.Validation.Valid {
			failed++
		}
	}

	if outputFormat == "json" {
		if err := outputJSON(os.Stdout, out); err != nil {
			return err
		}
	} else {
		printSummary(os.Stdout, results)
	}

	if failed > 0 {
		return fmt.Errorf("validation failed for %d of %d documents", failed, len(results))
	}
	return nil
}

func printSummary(w io.Writer, results []*processor.Result) {
	for _, r := range results {
		if r.Error != nil {
			fmt.Fprintf(w, "✗ %s: ERROR\n", r.Name)
			fmt.Fprintf(w, "  - %v\n", r.Error)
			continue
		}

		v := r.Validation
		if v.Valid {
			fmt.Fprintf(w, "✓ %s: VALID (nota %s, score %.1f)\n", r.Name, v.InvoiceNumber, v.Score)
		} else {
			fmt.Fprintf(w, "✗ %s: INVALID (nota %s, score %.1f)\n", r.Name, v.InvoiceNumber, v.Score)
		}
		for _, e := range v.Inconsistencies {
			fmt.Fprintf(w, "  - %s\n", e)
		}
		for _, a := range v.Alerts {
			fmt.Fprintf(w, "  ⚠ %s\n", a)
		}
		for _, rec := range v.Recommendations {
			fmt.Fprintf(w, "  → %s\n", rec)
		}
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  ? %s\n", warn)
		}
		if verbose && v.Narrative != "" {
			fmt.Fprintf(w, "\n%s\n\n", v.Narrative)
		}
	}
}
