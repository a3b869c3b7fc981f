package trust

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewTrustStoreDefaults(t *testing.T) {
	s, err := NewTrustStore()
	if err != nil {
		t.Fatalf("NewTrustStore: %v", err)
	}
	if s.Roots() == nil {
		t.Fatal("no root pool")
	}
	if s.IsSoftFail() || s.RevocationDisabled() {
		t.Error("revocation should be strict by default")
	}
	if s.revocation.timeout != DefaultOCSPTimeout {
		t.Errorf("timeout = %v", s.revocation.timeout)
	}

	tuned := NewEmptyTrustStore(WithSoftFail(), WithoutRevocation(), WithOCSPTimeout(0))
	if !tuned.IsSoftFail() || !tuned.RevocationDisabled() {
		t.Error("options not applied")
	}
	if tuned.revocation.timeout != DefaultOCSPTimeout {
		t.Error("a zero timeout should keep the default")
	}
}

func TestWithCAFileBuildsChainThroughBundle(t *testing.T) {
	root := newRoot(t, "AC Raiz Brasileira Teste")
	ac := root.intermediate(t, "AC SOLUTI Multipla Teste")
	leaf := ac.leaf(t, "COMERCIAL EXEMPLO LTDA:11222333000181")

	path := writeFile(t, "icp-brasil.pem", pemOf(root.cert, ac.cert))
	s, err := NewTrustStore(WithCAFile(path))
	if err != nil {
		t.Fatalf("NewTrustStore: %v", err)
	}

	chain, err := s.VerifyChainAt(leaf, nil, issuedAt)
	if err != nil {
		t.Fatalf("VerifyChainAt: %v", err)
	}
	if len(chain) != 3 || !chain[0].Equal(leaf) || !chain[2].Equal(root.cert) {
		t.Errorf("unexpected chain of %d certificates", len(chain))
	}
}

func TestWithCAFileErrors(t *testing.T) {
	cases := map[string]string{
		"missing file": filepath.Join(t.TempDir(), "absent.pem"),
		"no certificates": writeFile(t, "key.pem",
			pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte{1, 2, 3}})),
		"corrupt certificate": writeFile(t, "bad.pem",
			pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte("not der")})),
	}
	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			s, err := NewTrustStore(WithCAFile(path))
			if err == nil || s != nil {
				t.Fatalf("got (%v, %v), want an error", s, err)
			}
			if !strings.Contains(err.Error(), path) {
				t.Errorf("error %q does not name the file", err)
			}
		})
	}

	if _, err := NewTrustStore(WithCAFile("")); err != nil {
		t.Errorf("empty path: %v", err)
	}
	if s := NewEmptyTrustStore(WithCAFile(cases["missing file"])); s == nil {
		t.Error("empty store must not fail on CA files")
	}
}

func TestAddCertificatesFromPEMSkipsOtherBlocks(t *testing.T) {
	root := newRoot(t, "AC Raiz Teste")
	data := append(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: []byte{0}}), pemOf(root.cert)...)

	s := NewEmptyTrustStore()
	if err := s.AddCertificatesFromPEM(data); err != nil {
		t.Fatal(err)
	}
	if _, err := s.VerifyChainAt(root.leaf(t, "EMPRESA:11222333000181"), nil, issuedAt); err != nil {
		t.Errorf("root from PEM not trusted: %v", err)
	}
}

func TestVerifyChainAt(t *testing.T) {
	root := newRoot(t, "AC Raiz Teste")
	ac := root.intermediate(t, "AC Intermediaria Teste")
	stranger := newRoot(t, "AC Desconhecida")

	direct := root.leaf(t, "EMPRESA A:11222333000181")
	viaAC := ac.leaf(t, "EMPRESA B:19131983000123")
	foreign := stranger.leaf(t, "EMPRESA C:11444777000161")

	s := NewEmptyTrustStore()
	s.AddCertificates(root.cert, nil)

	cases := []struct {
		name  string
		leaf  *x509.Certificate
		extra []*x509.Certificate
		at    time.Time
		valid bool
	}{
		{"issued by root", direct, nil, issuedAt, true},
		{"intermediate from KeyInfo", viaAC, []*x509.Certificate{ac.cert}, issuedAt, true},
		{"intermediate missing", viaAC, nil, issuedAt, false},
		{"before validity", direct, nil, leafFrom.AddDate(0, 0, -1), false},
		{"after expiry", direct, nil, leafTo.AddDate(0, 0, 1), false},
		{"untrusted root", foreign, nil, issuedAt, false},
		{"nil certificate", nil, nil, issuedAt, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chain, err := s.VerifyChainAt(tc.leaf, tc.extra, tc.at)
			if (err == nil) != tc.valid {
				t.Fatalf("err = %v, want valid=%v", err, tc.valid)
			}
			if tc.valid && !chain[0].Equal(tc.leaf) {
				t.Error("chain does not start at the leaf")
			}
		})
	}
}

func TestAddIntermediateIsNotTrusted(t *testing.T) {
	root := newRoot(t, "AC Raiz Teste")
	ac := root.intermediate(t, "AC Intermediaria Teste")
	leaf := ac.leaf(t, "EMPRESA:11222333000181")

	s := NewEmptyTrustStore()
	s.AddIntermediate(ac.cert)
	s.AddIntermediate(nil)
	if _, err := s.VerifyChainAt(leaf, nil, issuedAt); err == nil {
		t.Fatal("chain ending at an untrusted root verified")
	}

	s.AddCertificates(root.cert)
	if _, err := s.VerifyChainAt(leaf, nil, issuedAt); err != nil {
		t.Fatalf("stored intermediate not used: %v", err)
	}
}
