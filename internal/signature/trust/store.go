// Package trust decides whether an NF-e signing certificate chains to a
// trusted ICP-Brasil root and whether it was revoked.
package trust

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"
)

// TrustStore holds the roots NF-e signing certificates chain to and checks revocation.
// ICP-Brasil roots are not in most system pools, so they are usually supplied with a CA file.
type TrustStore struct {
	roots         *x509.CertPool
	intermediates *x509.CertPool
	revocation    revocationPolicy
	answers       *OCSPCache
	client        *http.Client

	// CA-file failures, reported by NewTrustStore
	loadErr error
}

// TrustStoreOption configures a TrustStore
type TrustStoreOption func(*TrustStore)

// NewTrustStore seeds the roots from the system pool and applies opts.
func NewTrustStore(opts ...TrustStoreOption) (*TrustStore, error) {
	roots, err := x509.SystemCertPool()
	if err != nil || roots == nil {
		roots = x509.NewCertPool()
	}
	s := build(roots, opts)
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s, nil
}

// NewEmptyTrustStore starts with no roots at all. CA-file errors are dropped.
func NewEmptyTrustStore(opts ...TrustStoreOption) *TrustStore {
	return build(x509.NewCertPool(), opts)
}

func build(roots *x509.CertPool, opts []TrustStoreOption) *TrustStore {
	s := &TrustStore{
		roots:         roots,
		intermediates: x509.NewCertPool(),
		revocation:    revocationPolicy{timeout: DefaultOCSPTimeout},
		answers:       NewOCSPCache(DefaultOCSPCacheTTL),
		client:        http.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithCAFile loads a PEM bundle. Self-signed certificates become roots and
// the rest intermediates.
func WithCAFile(path string) TrustStoreOption {
	return func(s *TrustStore) {
		if path == "" {
			return
		}
		data, err := os.ReadFile(path)
		if err == nil {
			err = s.AddCertificatesFromPEM(data)
		}
		if err != nil {
			s.loadErr = errors.Join(s.loadErr, fmt.Errorf("CA file %s: %w", path, err))
		}
	}
}

// AddCertificates trusts each certificate as a root
func (s *TrustStore) AddCertificates(certs ...*x509.Certificate) {
	for _, c := range certs {
		if c != nil {
			s.roots.AddCert(c)
		}
	}
}

// AddIntermediate makes cert available for chain building without trusting it
func (s *TrustStore) AddIntermediate(cert *x509.Certificate) {
	if cert != nil {
		s.intermediates.AddCert(cert)
	}
}

// AddCertificatesFromPEM sorts every CERTIFICATE block into roots or
// intermediates. Other block types are skipped.
func (s *TrustStore) AddCertificatesFromPEM(data []byte) error {
	n := 0
	for block, rest := pem.Decode(data); block != nil; block, rest = pem.Decode(rest) {
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return fmt.Errorf("certificate %d: %w", n+1, err)
		}
		if cert.CheckSignatureFrom(cert) == nil {
			s.roots.AddCert(cert)
		} else {
			s.intermediates.AddCert(cert)
		}
		n++
	}
	if n == 0 {
		return errors.New("no certificates in PEM data")
	}
	return nil
}

// VerifyChainAt builds a chain from cert to a trusted root as of at, which
// for an NF-e is its issue date. extra holds certificates shipped in the
// document's KeyInfo. The returned chain starts with cert.
func (s *TrustStore) VerifyChainAt(cert *x509.Certificate, extra []*x509.Certificate, at time.Time) ([]*x509.Certificate, error) {
	if cert == nil {
		return nil, errors.New("no certificate to verify")
	}

	pool := s.intermediates
	if len(extra) > 0 {
		pool = pool.Clone()
		for _, c := range extra {
			pool.AddCert(c)
		}
	}

	chains, err := cert.Verify(x509.VerifyOptions{
		Roots:         s.roots,
		Intermediates: pool,
		CurrentTime:   at,
		// e-CNPJ leaves carry client-auth and e-mail usages, not code signing
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	switch {
	case err != nil:
		return nil, fmt.Errorf("chain verification failed: %w", err)
	case len(chains) == 0:
		return nil, errors.New("no chain to a trusted root")
	}
	return chains[0], nil
}
