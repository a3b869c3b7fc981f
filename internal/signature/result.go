package signature

import (
	"crypto/x509"
	"strings"
	"time"

	"github.com/rezonia/nfe-validator/internal/docid"
)

// VerificationResult is the verdict on one NF-e signature. Valid holds only
// when every check passed and no error was recorded; a signer whose CNPJ
// root differs from the emitter's is reported through CNPJMatches and a
// warning, not an error.
type VerificationResult struct {
	Valid bool `json:"valid"`

	SignatureFound bool `json:"signature_found"`
	SignatureValid bool `json:"signature_valid"`
	CertChainValid bool `json:"cert_chain_valid"`
	NotRevoked     bool `json:"not_revoked"`

	// AccessKey is the infNFe Id without its "NFe" prefix
	AccessKey    string `json:"access_key,omitempty"`
	ReferenceURI string `json:"reference_uri,omitempty"`

	EmitterCNPJ string `json:"emitter_cnpj,omitempty"`
	CNPJMatches bool   `json:"cnpj_matches"`

	Signer *SignerInfo `json:"signer,omitempty"`

	// VerifiedAt is the instant the certificate was checked against, the
	// issue date when the document carries one
	VerifiedAt *time.Time `json:"verified_at,omitempty"`

	CertChain []*x509.Certificate `json:"-"`

	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`

	Format string `json:"format,omitempty"`
}

// SignerInfo describes the signing certificate
type SignerInfo struct {
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
	// CNPJ from an e-CNPJ common name, "RAZAO SOCIAL:CNPJ"
	CNPJ         string    `json:"cnpj,omitempty"`
	SerialNumber string    `json:"serial_number"`
	Issuer       string    `json:"issuer"`
	ValidFrom    time.Time `json:"valid_from"`
	ValidTo      time.Time `json:"valid_to"`
}

func NewVerificationResult() *VerificationResult {
	return &VerificationResult{Format: FormatXML, Warnings: []string{}, Errors: []string{}}
}

func (r *VerificationResult) AddWarning(msg string) { r.Warnings = append(r.Warnings, msg) }

// AddError records a failed check and clears Valid
func (r *VerificationResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Valid = false
}

// SetSigner describes cert; a nil cert leaves Signer unset.
func (r *VerificationResult) SetSigner(cert *x509.Certificate) {
	if cert == nil {
		return
	}
	r.Signer = &SignerInfo{
		Name:         cert.Subject.CommonName,
		Organization: first(cert.Subject.Organization),
		CNPJ:         CNPJFromCommonName(cert.Subject.CommonName),
		SerialNumber: cert.SerialNumber.String(),
		Issuer:       cert.Issuer.CommonName,
		ValidFrom:    cert.NotBefore,
		ValidTo:      cert.NotAfter,
	}
	if r.Signer.Issuer == "" {
		r.Signer.Issuer = first(cert.Issuer.Organization)
	}
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// MatchEmitter records the emitter CNPJ and whether it shares the signer's
// 8-digit root. Branches of one company sign with the head office certificate.
func (r *VerificationResult) MatchEmitter(emitterCNPJ string) {
	r.EmitterCNPJ = docid.OnlyDigits(emitterCNPJ)
	r.CNPJMatches = r.Signer != nil &&
		len(r.Signer.CNPJ) == docid.CNPJLength &&
		len(r.EmitterCNPJ) == docid.CNPJLength &&
		r.Signer.CNPJ[:8] == r.EmitterCNPJ[:8]
}

// ComputeValidity derives Valid from the individual checks
func (r *VerificationResult) ComputeValidity() {
	r.Valid = r.SignatureFound && r.SignatureValid && r.CertChainValid && r.NotRevoked && len(r.Errors) == 0
}

// CNPJFromCommonName returns the 14 digits after the last colon of an
// e-CNPJ common name, or "".
func CNPJFromCommonName(cn string) string {
	i := strings.LastIndexByte(cn, ':')
	if i < 0 {
		return ""
	}
	if digits := docid.OnlyDigits(cn[i+1:]); len(digits) == docid.CNPJLength {
		return digits
	}
	return ""
}
