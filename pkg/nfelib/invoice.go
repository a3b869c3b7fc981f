// Package nfelib provides a public API for extracting and validating
// Brazilian electronic invoices (NF-e, modelo 55).
//
// Example usage:
//
//	proc := nfelib.NewDefaultProcessor()
//	result, err := proc.Process(ctx, reader)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Validation.Valid, result.Validation.Score)
package nfelib

import (
	"github.com/rezonia/nfe-validator/internal/docid"
	"github.com/rezonia/nfe-validator/internal/model"
)

// Re-export core types for public API
type (
	Invoice             = model.Invoice
	LineItem            = model.LineItem
	Emitter             = model.Emitter
	Recipient           = model.Recipient
	Address             = model.Address
	Taxes               = model.Taxes
	Totals              = model.Totals
	Layout              = model.Layout
	DocumentKind        = model.DocumentKind
	ValidationResult    = model.ValidationResult
	NarrativeProjection = model.NarrativeProjection
	FieldIssue          = model.FieldIssue
	AccessKey           = docid.AccessKey
)

// Re-export layouts
const (
	LayoutProc    = model.LayoutProc
	LayoutNFe     = model.LayoutNFe
	LayoutUnknown = model.LayoutUnknown
)

// Re-export recipient document kinds
const (
	DocumentCPF     = model.DocumentCPF
	DocumentCNPJ    = model.DocumentCNPJ
	DocumentUnknown = model.DocumentUnknown
)

// Re-export error types
type (
	ParseError      = model.ParseError
	InvariantError  = model.InvariantError
	ExtractionError = model.ExtractionError
)

// ErrInvariant matches every InvariantError via errors.Is
var ErrInvariant = model.ErrInvariant

// ValidCNPJ reports whether s carries a valid CNPJ. Punctuation is ignored.
func ValidCNPJ(s string) bool { return docid.ValidCNPJ(s) }

// ValidCPF reports whether s carries a valid CPF. Punctuation is ignored.
func ValidCPF(s string) bool { return docid.ValidCPF(s) }

// ValidAccessKey reports whether s is a 44-digit access key with a correct check digit
func ValidAccessKey(s string) bool { return docid.ValidAccessKey(s) }

// ParseAccessKey splits an access key into its fields
func ParseAccessKey(s string) (AccessKey, error) { return docid.ParseAccessKey(s) }
