package trust

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type revocationPolicy struct {
	disabled bool
	softFail bool
	timeout  time.Duration
}

// WithoutRevocation skips OCSP; every certificate counts as not revoked.
func WithoutRevocation() TrustStoreOption {
	return func(s *TrustStore) { s.revocation.disabled = true }
}

// WithSoftFail treats an unreachable or undecided responder as not revoked.
// CheckRevocation still returns the error so callers can warn about it.
func WithSoftFail() TrustStoreOption {
	return func(s *TrustStore) { s.revocation.softFail = true }
}

// WithOCSPTimeout bounds one revocation check across all responders
func WithOCSPTimeout(d time.Duration) TrustStoreOption {
	return func(s *TrustStore) {
		if d > 0 {
			s.revocation.timeout = d
		}
	}
}

// WithOCSPCacheTTL caps how long an answer is reused
func WithOCSPCacheTTL(d time.Duration) TrustStoreOption {
	return func(s *TrustStore) { s.answers = NewOCSPCache(d) }
}

// WithHTTPClient sets the client used to reach OCSP responders
func WithHTTPClient(c *http.Client) TrustStoreOption {
	return func(s *TrustStore) {
		if c != nil {
			s.client = c
		}
	}
}

// CheckRevocation reports whether cert is still good according to the OCSP
// responders it lists. Certificates without responders are taken as good.
// Answers are cached per issuer and serial.
func (s *TrustStore) CheckRevocation(ctx context.Context, cert, issuer *x509.Certificate) (bool, error) {
	if s.revocation.disabled {
		return true, nil
	}
	if cert == nil || issuer == nil {
		return false, errors.New("revocation check needs the certificate and its issuer")
	}
	if good, ok := s.answers.Get(cert); ok {
		return good, nil
	}
	if len(cert.OCSPServer) == 0 {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.revocation.timeout)
	defer cancel()

	answer, err := checkOCSP(ctx, s.client, cert, issuer)
	if err != nil {
		if s.revocation.softFail {
			return true, fmt.Errorf("OCSP check failed (soft-fail enabled): %w", err)
		}
		return false, fmt.Errorf("OCSP check failed: %w", err)
	}

	s.answers.SetUntil(cert, !answer.Revoked, answer.NextUpdate)
	return !answer.Revoked, nil
}

// Roots returns the trusted root pool
func (s *TrustStore) Roots() *x509.CertPool { return s.roots }

// IsSoftFail reports whether OCSP failures are tolerated
func (s *TrustStore) IsSoftFail() bool { return s.revocation.softFail }

// RevocationDisabled reports whether OCSP is skipped
func (s *TrustStore) RevocationDisabled() bool { return s.revocation.disabled }
