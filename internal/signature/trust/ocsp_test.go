package trust

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/ocsp"
)

// responder serves signed OCSP answers with a fixed status for a
// certificate authority and counts the requests it receives.
type responder struct {
	*httptest.Server
	hits atomic.Int32
}

func newResponder(t *testing.T, ca *authority, status int) *responder {
	t.Helper()
	r := &responder{}
	r.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.hits.Add(1)
		body, _ := io.ReadAll(req.Body)
		parsed, err := ocsp.ParseRequest(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		now := time.Now()
		tmpl := ocsp.Response{
			Status:       status,
			SerialNumber: parsed.SerialNumber,
			ThisUpdate:   now.Add(-time.Minute),
			NextUpdate:   now.Add(30 * time.Minute),
		}
		if status == ocsp.Revoked {
			tmpl.RevokedAt = now.AddDate(0, 0, -3)
			tmpl.RevocationReason = ocsp.KeyCompromise
		}
		der, err := ocsp.CreateResponse(ca.cert, ca.cert, tmpl, ca.key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/ocsp-response")
		_, _ = w.Write(der)
	}))
	t.Cleanup(r.Close)
	return r
}

func unavailable(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckOCSPStatuses(t *testing.T) {
	ca := newRoot(t, "AC Teste OCSP")

	for name, tc := range map[string]struct {
		status  int
		revoked bool
		err     error
	}{
		"good":    {ocsp.Good, false, nil},
		"revoked": {ocsp.Revoked, true, nil},
		"unknown": {ocsp.Unknown, false, ErrOCSPUnknown},
	} {
		t.Run(name, func(t *testing.T) {
			r := newResponder(t, ca, tc.status)
			leaf := ca.leaf(t, "EMPRESA:11222333000181", r.URL)

			answer, err := CheckOCSP(context.Background(), leaf, ca.cert)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("err = %v, want %v", err, tc.err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if answer.Revoked != tc.revoked {
				t.Errorf("Revoked = %v", answer.Revoked)
			}
			if answer.NextUpdate.IsZero() {
				t.Error("NextUpdate lost")
			}
			if tc.revoked == answer.RevokedAt.IsZero() {
				t.Errorf("RevokedAt = %v", answer.RevokedAt)
			}
		})
	}
}

func TestCheckOCSPTriesNextResponder(t *testing.T) {
	ca := newRoot(t, "AC Teste OCSP")
	r := newResponder(t, ca, ocsp.Good)
	leaf := ca.leaf(t, "EMPRESA:11222333000181", unavailable(t).URL, r.URL)

	answer, err := CheckOCSP(context.Background(), leaf, ca.cert)
	if err != nil {
		t.Fatal(err)
	}
	if answer.Revoked || r.hits.Load() != 1 {
		t.Errorf("revoked=%v hits=%d", answer.Revoked, r.hits.Load())
	}
}

func TestCheckOCSPUnknownStopsSearch(t *testing.T) {
	ca := newRoot(t, "AC Teste OCSP")
	unknown := newResponder(t, ca, ocsp.Unknown)
	good := newResponder(t, ca, ocsp.Good)
	leaf := ca.leaf(t, "EMPRESA:11222333000181", unknown.URL, good.URL)

	if _, err := CheckOCSP(context.Background(), leaf, ca.cert); !errors.Is(err, ErrOCSPUnknown) {
		t.Fatalf("err = %v", err)
	}
	if good.hits.Load() != 0 {
		t.Error("second responder asked after an unknown answer")
	}
}

func TestCheckOCSPNoResponders(t *testing.T) {
	ca := newRoot(t, "AC Teste OCSP")
	leaf := ca.leaf(t, "EMPRESA:11222333000181", unavailable(t).URL, unavailable(t).URL)

	if _, err := CheckOCSP(context.Background(), leaf, ca.cert); err == nil {
		t.Fatal("expected an error when every responder fails")
	}
	if _, err := CheckOCSP(context.Background(), ca.leaf(t, "SEM OCSP:11222333000181"), ca.cert); err == nil {
		t.Fatal("expected an error for a certificate without responders")
	}
}

// frozen returns a cache whose clock the test moves by hand
func frozen(ttl time.Duration) (*OCSPCache, *time.Time) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewOCSPCache(ttl)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestOCSPCacheExpiry(t *testing.T) {
	ca := newRoot(t, "AC Teste")
	leaf := ca.leaf(t, "EMPRESA:11222333000181")
	c, now := frozen(time.Hour)

	if _, ok := c.Get(leaf); ok {
		t.Fatal("hit on empty cache")
	}
	c.Set(leaf, false)
	if good, ok := c.Get(leaf); !ok || good {
		t.Fatalf("Get = (%v, %v), want revoked hit", good, ok)
	}

	*now = now.Add(59 * time.Minute)
	if _, ok := c.Get(leaf); !ok {
		t.Error("answer expired early")
	}
	*now = now.Add(time.Minute)
	if _, ok := c.Get(leaf); ok {
		t.Error("answer served at TTL")
	}
	if c.Len() != 0 {
		t.Error("expired answer not evicted")
	}
}

func TestOCSPCacheHonoursNextUpdate(t *testing.T) {
	ca := newRoot(t, "AC Teste")
	leaf := ca.leaf(t, "EMPRESA:11222333000181")
	c, now := frozen(time.Hour)

	c.SetUntil(leaf, true, now.Add(10*time.Minute))
	*now = now.Add(11 * time.Minute)
	if _, ok := c.Get(leaf); ok {
		t.Error("answer served past NextUpdate")
	}

	c.SetUntil(leaf, true, now.Add(48*time.Hour))
	*now = now.Add(61 * time.Minute)
	if _, ok := c.Get(leaf); ok {
		t.Error("a later NextUpdate must not extend the TTL")
	}
}

func TestOCSPCacheKeysByIssuerAndSerial(t *testing.T) {
	a := newRoot(t, "AC A")
	b := newRoot(t, "AC B")
	fromA := a.leaf(t, "EMPRESA:11222333000181")
	fromB := b.leaf(t, "EMPRESA:11222333000181")
	c, _ := frozen(time.Hour)

	c.Set(fromA, true)
	c.Set(fromB, false)
	c.Set(nil, true)

	if good, _ := c.Get(fromA); !good {
		t.Error("answer for AC A overwritten")
	}
	if good, ok := c.Get(fromB); !ok || good {
		t.Error("answer for AC B missing")
	}
	if _, ok := c.Get(nil); ok {
		t.Error("nil certificate hit")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d", c.Len())
	}
}
