package xml

import (
	"context"
	"crypto/x509"
	"fmt"
	"time"

	dsig "github.com/russellhaering/goxmldsig"
	"go.uber.org/zap"

	"github.com/rezonia/nfe-validator/internal/signature"
	"github.com/rezonia/nfe-validator/internal/signature/trust"
)

// XMLVerifier verifies the XMLDSig signature of NF-e documents
type XMLVerifier struct {
	trustStore *trust.TrustStore
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures the verifier
type Option func(*XMLVerifier)

// WithClock sets the fallback verification time used when the document has no issue date
func WithClock(now func() time.Time) Option {
	return func(v *XMLVerifier) {
		v.now = now
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(v *XMLVerifier) {
		if l != nil {
			v.logger = l
		}
	}
}

// NewXMLVerifier creates a new XML signature verifier
func NewXMLVerifier(ts *trust.TrustStore, opts ...Option) *XMLVerifier {
	v := &XMLVerifier{
		trustStore: ts,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks, in order, the XMLDSig signature over infNFe, the signer's
// chain and its revocation status. Certificate validity is judged at the
// document's issue date. An error is returned only when the document is not
// an NF-e or carries no signature.
func (v *XMLVerifier) Verify(ctx context.Context, data []byte) (*signature.VerificationResult, error) {
	result := signature.NewVerificationResult()

	signed, err := Locate(data)
	if err != nil {
		sigErr := signature.ErrMalformedDocument(err)
		result.AddError(sigErr.Error())
		return result, sigErr
	}
	result.AccessKey = signed.AccessKey()

	if signed.Signature == nil {
		sigErr := signature.ErrNoSignature()
		result.AddError(sigErr.Error())
		return result, sigErr
	}
	result.SignatureFound = true
	result.ReferenceURI = signed.ReferenceURI

	at, ok := signed.IssuedAt()
	if !ok {
		at = v.now()
		result.AddWarning("no issue date, certificate validity checked at verification time")
	}
	result.VerifiedAt = &at

	cert, extra, err := signerCertificate(signed)
	if err != nil {
		result.AddError(signature.ErrCertificate(err).Error())
		result.ComputeValidity()
		return result, nil
	}
	result.SetSigner(cert)

	if err := validateSignature(signed, cert, at); err != nil {
		result.AddError(signature.ErrInvalidSignature(err).Error())
	} else {
		result.SignatureValid = true
	}

	chain, err := v.trustStore.VerifyChainAt(cert, extra, at)
	if err != nil {
		result.AddError(signature.ErrChainInvalid(err).Error())
	} else {
		result.CertChain = chain
		result.CertChainValid = true
		v.checkRevocation(ctx, result, cert, chain)
	}

	result.MatchEmitter(signed.EmitterCNPJ())
	if !result.CNPJMatches && result.Signer.CNPJ != "" {
		result.AddWarning(fmt.Sprintf("signer CNPJ %s does not match emitter %s", result.Signer.CNPJ, result.EmitterCNPJ))
	}

	result.ComputeValidity()

	v.logger.Debug("signature verified",
		zap.String("chave", result.AccessKey),
		zap.Bool("valid", result.Valid),
		zap.Strings("errors", result.Errors),
	)

	return result, nil
}

func (v *XMLVerifier) checkRevocation(ctx context.Context, result *signature.VerificationResult, cert *x509.Certificate, chain []*x509.Certificate) {
	if v.trustStore.RevocationDisabled() {
		result.NotRevoked = true
		result.AddWarning("revocation check disabled")
		return
	}
	if len(chain) < 2 {
		// Self-signed or no issuer in chain - skip revocation check
		result.NotRevoked = true
		result.AddWarning("revocation check skipped: no issuer certificate in chain")
		return
	}

	notRevoked, err := v.trustStore.CheckRevocation(ctx, cert, chain[1])
	switch {
	case err != nil && v.trustStore.IsSoftFail():
		result.AddWarning(fmt.Sprintf("OCSP check: %v (soft-fail enabled)", err))
		result.NotRevoked = true
	case err != nil:
		result.AddError(signature.ErrOCSPUnavailable(err).Error())
	case !notRevoked:
		result.AddError(signature.ErrCertRevoked(cert.Subject.CommonName).Error())
	default:
		result.NotRevoked = true
	}
}

// validateSignature checks digest and signature value with the certificate
// carried in KeyInfo. Trust in that certificate is established separately.
func validateSignature(signed *Signed, cert *x509.Certificate, at time.Time) error {
	vctx := dsig.NewDefaultValidationContext(&dsig.MemoryX509CertificateStore{
		Roots: []*x509.Certificate{cert},
	})
	vctx.IdAttribute = "Id"
	vctx.Clock = dsig.NewFakeClockAt(at)

	_, err := vctx.Validate(signed.Enveloped())
	return err
}

// signerCertificate returns the first KeyInfo certificate and any others as intermediates
func signerCertificate(signed *Signed) (*x509.Certificate, []*x509.Certificate, error) {
	ders, err := signed.Certificates()
	if err != nil {
		return nil, nil, err
	}

	certs := make([]*x509.Certificate, 0, len(ders))
	for _, der := range ders {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse certificate: %w", err)
		}
		certs = append(certs, cert)
	}

	return certs[0], certs[1:], nil
}

// CanVerify returns true if the data looks like a signed NF-e
func (v *XMLVerifier) CanVerify(data []byte) bool {
	return CanLocate(data)
}

// Format returns the format this verifier handles
func (v *XMLVerifier) Format() string {
	return signature.FormatXML
}
