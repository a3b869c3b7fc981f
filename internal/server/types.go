package server

import (
	"github.com/rezonia/nfe-validator/internal/docid"
	"github.com/rezonia/nfe-validator/internal/model"
	"github.com/rezonia/nfe-validator/internal/signature"
)

// ExtractResponse is the response for the extract endpoint
type ExtractResponse struct {
	Invoice  *model.Invoice `json:"invoice"`
	Layout   model.Layout   `json:"layout"`
	Warnings []string       `json:"warnings,omitempty"`
}

// ValidationResponse is the response for the validate endpoint
type ValidationResponse struct {
	Invoice    *model.Invoice          `json:"invoice"`
	Layout     model.Layout            `json:"layout"`
	Validation *model.ValidationResult `json:"validation"`
	Warnings   []string                `json:"warnings,omitempty"`
}

// BatchItem is the outcome of one document of a batch
type BatchItem struct {
	Name       string                  `json:"name"`
	Validation *model.ValidationResult `json:"validation,omitempty"`
	Warnings   []string                `json:"warnings,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// BatchResponse is the response for the batch endpoint. Results follow upload order.
type BatchResponse struct {
	Total   int         `json:"total"`
	Valid   int         `json:"valid"`
	Invalid int         `json:"invalid"`
	Failed  int         `json:"failed"`
	Results []BatchItem `json:"results"`
}

// InfoResponse is the response for the info endpoint
type InfoResponse struct {
	Format    string           `json:"format"`
	Size      int              `json:"size"`
	Layout    model.Layout     `json:"layout,omitempty"`
	AccessKey *docid.AccessKey `json:"access_key,omitempty"`
	Entries   int              `json:"entries,omitempty"`
	Warnings  []string         `json:"warnings,omitempty"`
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error    string   `json:"error"`
	Details  string   `json:"details,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// VerifyResponse is the response for the signature verification endpoint
type VerifyResponse struct {
	Valid          bool                  `json:"valid"`
	SignatureFound bool                  `json:"signature_found"`
	SignatureValid bool                  `json:"signature_valid"`
	CertChainValid bool                  `json:"cert_chain_valid"`
	NotRevoked     bool                  `json:"not_revoked"`
	AccessKey      string                `json:"access_key,omitempty"`
	EmitterCNPJ    string                `json:"emitter_cnpj,omitempty"`
	CNPJMatches    bool                  `json:"cnpj_matches"`
	Signer         *signature.SignerInfo `json:"signer,omitempty"`
	Warnings       []string              `json:"warnings,omitempty"`
	Errors         []string              `json:"errors,omitempty"`
}

func newVerifyResponse(r *signature.VerificationResult) VerifyResponse {
	return VerifyResponse{
		Valid:          r.Valid,
		SignatureFound: r.SignatureFound,
		SignatureValid: r.SignatureValid,
		CertChainValid: r.CertChainValid,
		NotRevoked:     r.NotRevoked,
		AccessKey:      r.AccessKey,
		EmitterCNPJ:    r.EmitterCNPJ,
		CNPJMatches:    r.CNPJMatches,
		Signer:         r.Signer,
		Warnings:       r.Warnings,
		Errors:         r.Errors,
	}
}
