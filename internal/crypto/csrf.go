package crypto

import (
	"crypto/subtle"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// csrfClockSkew bounds how far in the future issuedAt may lie
const csrfClockSkew = time.Minute

// CSRFProtection issues stateless double-submit tokens of the form
// nonce.issuedAt.signature. A token is good until ttl after issuedAt.
type CSRFProtection struct {
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

// NewCSRFProtection creates a CSRF token issuer keyed by signingKey
func NewCSRFProtection(signingKey []byte, ttl time.Duration) CSRFProtection {
	return CSRFProtection{
		signingKey: signingKey,
		ttl:        ttl,
		now:        time.Now,
	}
}

// WithClock returns a copy of c reading time from now
func (c CSRFProtection) WithClock(now func() time.Time) CSRFProtection {
	c.now = now
	return c
}

// Generate creates a new signed token
func (c *CSRFProtection) Generate() (string, error) {
	nonce, err := GenerateSecureToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	payload := nonce + "." + strconv.FormatInt(c.now().Unix(), 10)
	return payload + "." + SignData(payload, c.signingKey), nil
}

// Validate checks the signature and age of token
func (c *CSRFProtection) Validate(token string) bool {
	cut := strings.LastIndexByte(token, '.')
	if cut < 0 {
		return false
	}
	payload, signature := token[:cut], token[cut+1:]

	_, issued, ok := strings.Cut(payload, ".")
	if !ok {
		return false
	}
	issuedAt, err := strconv.ParseInt(issued, 10, 64)
	if err != nil {
		return false
	}
	age := c.now().Sub(time.Unix(issuedAt, 0))
	if age > c.ttl || age < -csrfClockSkew {
		return false
	}

	return ValidateSignedData(payload, signature, c.signingKey)
}

// Check validates a submitted form token against the one pinned in the
// browser's cookie. Both must be identical and valid.
func (c *CSRFProtection) Check(formToken, cookieToken string) bool {
	if formToken == "" || cookieToken == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(formToken), []byte(cookieToken)) != 1 {
		return false
	}
	return c.Validate(formToken)
}
