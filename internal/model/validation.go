package model

// ValidationResult is the outcome of one validation pass over an Invoice.
// It references the invoice by number only.
type ValidationResult struct {
	InvoiceNumber   string   `json:"numero_nota,omitempty"`
	Valid           bool     `json:"valido"`
	Score           float64  `json:"score_confianca"`
	Inconsistencies []string `json:"inconsistencias"`
	Alerts          []string `json:"alertas"`
	Recommendations []string `json:"recomendacoes"`
	Narrative       string   `json:"analise_ia,omitempty"`
}

// Record returns the result as plain nested values
func (r *ValidationResult) Record() map[string]any {
	rec := map[string]any{
		"valido":          r.Valid,
		"score_confianca": r.Score,
		"inconsistencias": stringsOrEmpty(r.Inconsistencies),
		"alertas":         stringsOrEmpty(r.Alerts),
		"recomendacoes":   stringsOrEmpty(r.Recommendations),
	}
	if r.InvoiceNumber != "" {
		rec["numero_nota"] = r.InvoiceNumber
	}
	if r.Narrative != "" {
		rec["analise_ia"] = r.Narrative
	}
	return rec
}

func stringsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
