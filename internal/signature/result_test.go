package signature

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"math/big"
	"testing"
	"time"
)

const (
	sampleKey  = "35240111222333000181550010000001231123456780"
	sampleCNPJ = "11222333000181"
)

// issueECNPJ self-signs a leaf shaped like an ICP-Brasil e-CNPJ certificate.
func issueECNPJ(t *testing.T, cn string, serial int64) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: cn, Organization: []string{"ICP-Brasil"}},
		NotBefore:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return cert
}

func decodeJSON(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestVerificationResultJSON(t *testing.T) {
	at := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	r := NewVerificationResult()
	r.SignatureFound, r.SignatureValid, r.CertChainValid, r.NotRevoked = true, true, true, true
	r.AccessKey = sampleKey
	r.ReferenceURI = "#NFe" + sampleKey
	r.VerifiedAt = &at
	r.Signer = &SignerInfo{CNPJ: sampleCNPJ, Issuer: "AC SOLUTI Multipla v5"}
	r.MatchEmitter(sampleCNPJ)
	r.ComputeValidity()

	got := decodeJSON(t, r)
	want := map[string]any{
		"valid":         true,
		"access_key":    sampleKey,
		"reference_uri": "#NFe" + sampleKey,
		"emitter_cnpj":  sampleCNPJ,
		"cnpj_matches":  true,
		"format":        "xml",
		"verified_at":   "2024-01-15T10:30:00Z",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}

	signer, _ := got["signer"].(map[string]any)
	if signer["cnpj"] != sampleCNPJ || signer["issuer"] != "AC SOLUTI Multipla v5" {
		t.Errorf("signer = %v", signer)
	}
}

func TestVerificationResultJSONOmitsEmpty(t *testing.T) {
	got := decodeJSON(t, &VerificationResult{})
	for _, k := range []string{"signer", "verified_at", "access_key", "emitter_cnpj", "reference_uri", "warnings"} {
		if _, ok := got[k]; ok {
			t.Errorf("%s present on empty result", k)
		}
	}
	if _, ok := got["cnpj_matches"]; !ok {
		t.Error("cnpj_matches missing")
	}
}

func TestVerificationResultHidesChain(t *testing.T) {
	cert := issueECNPJ(t, "AC TESTE", 1)
	got := decodeJSON(t, &VerificationResult{CertChain: []*x509.Certificate{cert}})
	if _, ok := got["cert_chain"]; ok {
		t.Error("certificate chain serialized")
	}
}

func TestSetSigner(t *testing.T) {
	cert := issueECNPJ(t, "COMERCIAL EXEMPLO LTDA:"+sampleCNPJ, 987654)

	r := NewVerificationResult()
	r.SetSigner(nil)
	if r.Signer != nil {
		t.Fatal("nil certificate produced a signer")
	}

	r.SetSigner(cert)
	s := r.Signer
	if s == nil {
		t.Fatal("signer not set")
	}
	if s.CNPJ != sampleCNPJ {
		t.Errorf("CNPJ = %q", s.CNPJ)
	}
	if s.SerialNumber != "987654" {
		t.Errorf("SerialNumber = %q", s.SerialNumber)
	}
	if s.Organization != "ICP-Brasil" {
		t.Errorf("Organization = %q", s.Organization)
	}
	if !s.ValidTo.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ValidTo = %v", s.ValidTo)
	}
}

func TestComputeValidity(t *testing.T) {
	// flags: found, signature, chain, revocation
	cases := map[string]struct {
		flags  [4]bool
		errors []string
		want   bool
	}{
		"every check passes":   {[4]bool{true, true, true, true}, nil, true},
		"no signature element": {[4]bool{false, true, true, true}, nil, false},
		"digest mismatch":      {[4]bool{true, false, true, true}, nil, false},
		"untrusted chain":      {[4]bool{true, true, false, true}, nil, false},
		"revoked":              {[4]bool{true, true, true, false}, nil, false},
		"recorded error":       {[4]bool{true, true, true, true}, []string{"ocsp: bad response"}, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := NewVerificationResult()
			r.SignatureFound, r.SignatureValid, r.CertChainValid, r.NotRevoked = tc.flags[0], tc.flags[1], tc.flags[2], tc.flags[3]
			r.Errors = append(r.Errors, tc.errors...)
			r.ComputeValidity()
			if r.Valid != tc.want {
				t.Errorf("Valid = %v, want %v", r.Valid, tc.want)
			}
		})
	}
}

func TestWarningsKeepValidity(t *testing.T) {
	r := NewVerificationResult()
	r.Valid = true

	r.AddWarning("signer CNPJ root differs from emitter")
	if !r.Valid || len(r.Warnings) != 1 {
		t.Fatalf("after warning: valid=%v warnings=%v", r.Valid, r.Warnings)
	}

	r.AddError("certificate revoked")
	if r.Valid || len(r.Errors) != 1 {
		t.Fatalf("after error: valid=%v errors=%v", r.Valid, r.Errors)
	}
}

func TestCNPJFromCommonName(t *testing.T) {
	for cn, want := range map[string]string{
		"COMERCIAL EXEMPLO LTDA:11222333000181": "11222333000181",
		"EMPRESA: 11.222.333/0001-81":           "11222333000181",
		"A:B:19131983000123":                    "19131983000123",
		"PESSOA FISICA:52998224725":             "",
		"SEM DOCUMENTO":                         "",
		"":                                      "",
	} {
		if got := CNPJFromCommonName(cn); got != want {
			t.Errorf("CNPJFromCommonName(%q) = %q, want %q", cn, got, want)
		}
	}
}

func TestMatchEmitter(t *testing.T) {
	cases := []struct {
		name    string
		signer  *SignerInfo
		emitter string
		want    bool
	}{
		{"head office", &SignerInfo{CNPJ: sampleCNPJ}, sampleCNPJ, true},
		{"branch shares root", &SignerInfo{CNPJ: sampleCNPJ}, "11.222.333/0002-62", true},
		{"different company", &SignerInfo{CNPJ: "19131983000123"}, sampleCNPJ, false},
		{"e-CPF signer", &SignerInfo{}, sampleCNPJ, false},
		{"emitter is a CPF", &SignerInfo{CNPJ: sampleCNPJ}, "52998224725", false},
		{"unsigned", nil, sampleCNPJ, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewVerificationResult()
			r.Signer = tc.signer
			r.MatchEmitter(tc.emitter)
			if r.CNPJMatches != tc.want {
				t.Errorf("CNPJMatches = %v, want %v", r.CNPJMatches, tc.want)
			}
		})
	}
}
