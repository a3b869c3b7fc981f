package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
)

var csvHeader = []string{
	"file", "access_key", "number", "series", "date",
	"emitter_cnpj", "emitter_name", "recipient_document", "recipient_name",
	"total", "valid", "score", "inconsistencies", "alerts", "error",
}

// writeResults renders process results in the --format chosen, to
// --output or stdout.
func writeResults(results []*ProcessResult) error {
	var w io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch outputFormat {
	case "json":
		return outputJSON(w, results)
	case "table":
		return writeTable(w, results)
	case "csv":
		return writeCSV(w, results)
	}
	return fmt.Errorf("unsupported output format: %s", outputFormat)
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable(w io.Writer, results []*ProcessResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tNUMBER\tSERIES\tDATE\tEMITTER\tTOTAL\tVALID\tSCORE\tFINDINGS")

	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(tw, "%s\tERROR: %s\t\t\t\t\t\t\t\n", r.File, r.Error)
			continue
		}
		inv, v := r.Invoice, r.Validation
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%t\t%.1f\t%d\n",
			r.File, inv.Number, inv.Series, inv.IssuedAt.Format("2006-01-02"),
			inv.Emitter.CNPJ, inv.Totals.InvoiceTotal.StringFixed(2),
			v.Valid, v.Score, len(v.Inconsistencies)+len(v.Alerts))
	}
	return tw.Flush()
}

func writeCSV(w io.Writer, results []*ProcessResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range results {
		if err := cw.Write(csvRecord(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// csvRecord flattens the plain records of the invoice and its validation
// into one row.
func csvRecord(r *ProcessResult) []string {
	row := make([]string, len(csvHeader))
	row[0] = r.File
	if r.Error != "" {
		row[len(row)-1] = r.Error
		return row
	}

	inv, v := r.Invoice.Record(), r.Validation.Record()
	emitter := inv["emitente"].(map[string]any)
	recipient := inv["destinatario"].(map[string]any)
	totals := inv["totalizadores"].(map[string]any)

	copy(row[1:], []string{
		fmt.Sprint(inv["chave_acesso"]),
		fmt.Sprint(inv["numero"]),
		fmt.Sprint(inv["serie"]),
		fmt.Sprint(inv["data_emissao"]),
		fmt.Sprint(emitter["cnpj"]),
		fmt.Sprint(emitter["razao_social"]),
		fmt.Sprint(recipient["cpf_cnpj"]),
		fmt.Sprint(recipient["nome"]),
		strconv.FormatFloat(totals["valor_total_nota"].(float64), 'f', 2, 64),
		strconv.FormatBool(v["valido"].(bool)),
		strconv.FormatFloat(v["score_confianca"].(float64), 'f', 1, 64),
		strings.Join(v["inconsistencias"].([]string), "; "),
		strings.Join(v["alertas"].([]string), "; "),
	})
	return row
}
