package signature

import (
	"fmt"
	"strings"
)

// Code classifies a verification failure
type Code string

const (
	ErrCodeNoSignature       Code = "NO_SIGNATURE"
	ErrCodeInvalidSignature  Code = "INVALID_SIGNATURE"
	ErrCodeMalformedDocument Code = "MALFORMED_DOCUMENT"
	ErrCodeCertificate       Code = "BAD_CERTIFICATE"
	ErrCodeChainInvalid      Code = "CHAIN_INVALID"
	ErrCodeCertRevoked       Code = "CERT_REVOKED"
	ErrCodeOCSPUnavailable   Code = "OCSP_UNAVAILABLE"
)

// where each code points at in the NF-e, and what it reports
var codeText = map[Code][2]string{
	ErrCodeNoSignature:       {"NFe/Signature", "no signature found in document"},
	ErrCodeInvalidSignature:  {"Signature", "signature validation failed"},
	ErrCodeMalformedDocument: {"", "document is not a readable NF-e"},
	ErrCodeCertificate:       {"KeyInfo/X509Data", "signing certificate unreadable"},
	ErrCodeChainInvalid:      {"chain", "certificate chain validation failed"},
	ErrCodeCertRevoked:       {"certificate", "certificate revoked"},
	ErrCodeOCSPUnavailable:   {"ocsp", "OCSP check unavailable"},
}

// SignatureError is a classified verification failure
type SignatureError struct {
	Code    Code
	Field   string
	Message string
	Cause   error
}

func (e *SignatureError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] ", e.Code)
	if e.Field != "" {
		b.WriteString(e.Field)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, " (%v)", e.Cause)
	}
	return b.String()
}

func (e *SignatureError) Unwrap() error { return e.Cause }

// Is matches any SignatureError carrying the same code
func (e *SignatureError) Is(target error) bool {
	t, ok := target.(*SignatureError)
	return ok && t.Code == e.Code
}

func newError(code Code, cause error) *SignatureError {
	text := codeText[code]
	return &SignatureError{Code: code, Field: text[0], Message: text[1], Cause: cause}
}

func ErrNoSignature() *SignatureError { return newError(ErrCodeNoSignature, nil) }

func ErrMalformedDocument(cause error) *SignatureError {
	return newError(ErrCodeMalformedDocument, cause)
}

func ErrInvalidSignature(cause error) *SignatureError {
	return newError(ErrCodeInvalidSignature, cause)
}

func ErrCertificate(cause error) *SignatureError { return newError(ErrCodeCertificate, cause) }

func ErrChainInvalid(cause error) *SignatureError { return newError(ErrCodeChainInvalid, cause) }

// ErrCertRevoked names the revoked certificate by subject
func ErrCertRevoked(subject string) *SignatureError {
	e := newError(ErrCodeCertRevoked, nil)
	e.Message += ": " + subject
	return e
}

// ErrOCSPUnavailable is recorded when no responder answered and soft-fail is off
func ErrOCSPUnavailable(cause error) *SignatureError {
	return newError(ErrCodeOCSPUnavailable, cause)
}
