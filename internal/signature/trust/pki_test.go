package trust

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"sync/atomic"
	"testing"
	"time"
)

var (
	serials atomic.Int64

	caFrom = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	caTo   = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	leafFrom = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	leafTo   = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	issuedAt = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
)

// authority is a test CA able to issue e-CNPJ style leaves
type authority struct {
	cert *x509.Certificate
	key  crypto.Signer
}

func newRoot(t *testing.T, cn string) *authority {
	t.Helper()
	return issue(t, cn, true, caFrom, caTo, nil)
}

func (a *authority) intermediate(t *testing.T, cn string) *authority {
	t.Helper()
	return issue(t, cn, true, caFrom, caTo, a)
}

func (a *authority) leaf(t *testing.T, cn string, ocspURLs ...string) *x509.Certificate {
	t.Helper()
	l := issue(t, cn, false, leafFrom, leafTo, a, ocspURLs...)
	return l.cert
}

func issue(t *testing.T, cn string, ca bool, from, to time.Time, parent *authority, ocspURLs ...string) *authority {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(serials.Add(1)),
		Subject:               pkix.Name{CommonName: cn, Organization: []string{"ICP-Brasil"}},
		NotBefore:             from,
		NotAfter:              to,
		IsCA:                  ca,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		OCSPServer:            ocspURLs,
	}
	if ca {
		tmpl.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageCRLSign
	}

	signerCert, signerKey := tmpl, crypto.Signer(key)
	if parent != nil {
		signerCert, signerKey = parent.cert, parent.key
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, signerCert, key.Public(), signerKey)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return &authority{cert: cert, key: key}
}

func pemOf(certs ...*x509.Certificate) []byte {
	var out []byte
	for _, c := range certs {
		out = append(out, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c.Raw})...)
	}
	return out
}
