// Package signature defines the outcome of verifying the XMLDSig signature
// carried by an NF-e document.
package signature

import "context"

// FormatXML is the only signed container NF-e uses
const FormatXML = "xml"

// Verifier checks the digital signature of a document
type Verifier interface {
	// Verify returns a result for any parseable document; the error is set
	// only when no verification could be attempted.
	Verify(ctx context.Context, data []byte) (*VerificationResult, error)

	// CanVerify returns true if this verifier can handle the given data format
	CanVerify(data []byte) bool

	// Format returns the format this verifier handles
	Format() string
}
