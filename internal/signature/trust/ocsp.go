package trust

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/crypto/ocsp"
)

const (
	DefaultOCSPTimeout  = 10 * time.Second
	DefaultOCSPCacheTTL = time.Hour

	maxOCSPResponseBytes = 1 << 20
)

// ErrOCSPUnknown is returned when a responder does not know the certificate.
// Other responders are not asked.
var ErrOCSPUnknown = errors.New("OCSP status unknown")

// OCSPAnswer is the parsed verdict of a responder
type OCSPAnswer struct {
	Revoked    bool
	RevokedAt  time.Time
	NextUpdate time.Time
}

// CheckOCSP asks each responder listed in cert, in order, until one answers
func CheckOCSP(ctx context.Context, cert, issuer *x509.Certificate) (*OCSPAnswer, error) {
	return checkOCSP(ctx, http.DefaultClient, cert, issuer)
}

func checkOCSP(ctx context.Context, client *http.Client, cert, issuer *x509.Certificate) (*OCSPAnswer, error) {
	if len(cert.OCSPServer) == 0 {
		return nil, errors.New("certificate lists no OCSP responder")
	}

	der, err := ocsp.CreateRequest(cert, issuer, &ocsp.RequestOptions{Hash: crypto.SHA256})
	if err != nil {
		return nil, fmt.Errorf("build OCSP request: %w", err)
	}

	var errs []error
	for _, url := range cert.OCSPServer {
		answer, err := askResponder(ctx, client, url, der, cert, issuer)
		switch {
		case err == nil:
			return answer, nil
		case errors.Is(err, ErrOCSPUnknown):
			return nil, err
		}
		errs = append(errs, fmt.Errorf("%s: %w", url, err))
	}
	return nil, fmt.Errorf("no OCSP responder answered: %w", errors.Join(errs...))
}

func askResponder(ctx context.Context, client *http.Client, url string, der []byte, cert, issuer *x509.Certificate) (*OCSPAnswer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(der))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/ocsp-request")
	req.Header.Set("Accept", "application/ocsp-response")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOCSPResponseBytes))
	if err != nil {
		return nil, err
	}

	parsed, err := ocsp.ParseResponseForCert(body, cert, issuer)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	answer := &OCSPAnswer{NextUpdate: parsed.NextUpdate}
	switch parsed.Status {
	case ocsp.Good:
	case ocsp.Revoked:
		answer.Revoked, answer.RevokedAt = true, parsed.RevokedAt
	case ocsp.Unknown:
		return nil, ErrOCSPUnknown
	default:
		return nil, fmt.Errorf("unexpected OCSP status %d", parsed.Status)
	}
	return answer, nil
}

// OCSPCache keeps answers per certificate until the earlier of the
// responder's NextUpdate and the cache TTL. It is safe for concurrent use.
type OCSPCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	answers map[cacheKey]cachedAnswer
}

type cacheKey struct {
	issuer string
	serial string
}

type cachedAnswer struct {
	good    bool
	expires time.Time
}

func NewOCSPCache(ttl time.Duration) *OCSPCache {
	return &OCSPCache{
		ttl:     ttl,
		now:     time.Now,
		answers: make(map[cacheKey]cachedAnswer),
	}
}

func keyOf(cert *x509.Certificate) cacheKey {
	return cacheKey{issuer: string(cert.RawIssuer), serial: cert.SerialNumber.String()}
}

// Get returns a live answer for cert. Expired answers are evicted.
func (c *OCSPCache) Get(cert *x509.Certificate) (good, ok bool) {
	if cert == nil {
		return false, false
	}
	k := keyOf(cert)

	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.answers[k]
	if !ok {
		return false, false
	}
	if !c.now().Before(a.expires) {
		delete(c.answers, k)
		return false, false
	}
	return a.good, true
}

// Set stores an answer for the full TTL
func (c *OCSPCache) Set(cert *x509.Certificate, good bool) {
	c.SetUntil(cert, good, time.Time{})
}

// SetUntil stores an answer until nextUpdate or the TTL, whichever comes first.
func (c *OCSPCache) SetUntil(cert *x509.Certificate, good bool, nextUpdate time.Time) {
	if cert == nil {
		return
	}
	expires := c.now().Add(c.ttl)
	if !nextUpdate.IsZero() && nextUpdate.Before(expires) {
		expires = nextUpdate
	}

	c.mu.Lock()
	c.answers[keyOf(cert)] = cachedAnswer{good: good, expires: expires}
	c.mu.Unlock()
}

// Len counts stored answers, expired ones included
func (c *OCSPCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.answers)
}
