// Package tokens issues and verifies the signed links Bennie puts in
// emails: the onboarding form link and the unsubscribe link.
package tokens

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose scopes a token to one action.
type Purpose string

const (
	Onboard     Purpose = "onboard"
	Unsubscribe Purpose = "unsubscribe"
)

const issuer = "bennie"

// ErrInvalidToken is returned for malformed, tampered, expired, or
// wrong-purpose tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

type claims struct {
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

// Signer signs HS256 tokens with a shared secret.
type Signer struct {
	secret     []byte
	onboardTTL time.Duration
	now        func() time.Time
}

// NewSigner creates a Signer. Onboarding tokens expire after onboardTTL;
// unsubscribe tokens do not expire so links in old emails keep working.
func NewSigner(secret string, onboardTTL time.Duration) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is empty")
	}
	if onboardTTL <= 0 {
		onboardTTL = 72 * time.Hour
	}
	return &Signer{secret: []byte(secret), onboardTTL: onboardTTL, now: time.Now}, nil
}

// Issue returns a signed token binding userID to purpose.
func (s *Signer) Issue(userID string, purpose Purpose) (string, error) {
	now := s.now()
	c := claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer,
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if purpose == Onboard {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(s.onboardTTL))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", purpose, err)
	}
	return signed, nil
}

// Verify checks the signature, expiry, and purpose of token and returns
// the user ID it was issued for.
func (s *Signer) Verify(token string, purpose Purpose) (string, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	var c claims
	parsed, err := parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || c.Purpose != purpose || c.Subject == "" {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}

// Link issues a token for userID and appends it to base/path as the
// "token" query parameter.
func (s *Signer) Link(base, path, userID string, purpose Purpose) (string, error) {
	token, err := s.Issue(userID, purpose)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(strings.TrimRight(base, "/") + path)
	if err != nil {
		return "", fmt.Errorf("parsing link base: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
