// Package auth provides session tokens, password hashing and the auth
// middleware.
//
// SESSION FLOW:
//  1. Guest signs up or logs in with email + password
//  2. Server verifies the bcrypt hash and issues a signed JWT
//  3. The JWT is stored in the HttpOnly "token" cookie
//  4. On later requests the middleware validates the cookie and puts the
//     user id into the request context
//
// Two token purposes share one signing key: "session" tokens gate requests,
// "reset" tokens authorise a single password reset. A token of one purpose is
// never accepted as the other.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "wedding-rsvp"

	purposeSession = "session"
	purposeReset   = "reset"

	// DefaultSessionTTL is used when NewTokenService gets a zero TTL.
	DefaultSessionTTL = 24 * time.Hour

	// ResetTTL bounds how long a password-reset link stays usable.
	ResetTTL = time.Hour
)

// ErrWrongPurpose is returned when a token was issued for another use.
var ErrWrongPurpose = errors.New("auth: token issued for a different purpose")

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret     []byte
	sessionTTL time.Duration
}

// NewTokenService creates a TokenService. The secret must be at least 16
// characters; generate one with `openssl rand -hex 32`.
func NewTokenService(secret string, sessionTTL time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &TokenService{secret: []byte(secret), sessionTTL: sessionTTL}, nil
}

// claims is the JWT payload. "sub" carries the user id.
//
// Fingerprint is only set on reset tokens: it is derived from the password
// hash at issue time, so a reset link stops working once the password changes.
//
// IssuedNano repeats "iat" in nanoseconds. NumericDate only carries whole
// seconds, which is too coarse to order a sign-in against a sign-out.
type claims struct {
	jwt.RegisteredClaims
	Purpose     string `json:"purpose"`
	Fingerprint string `json:"fp,omitempty"`
	IssuedNano  int64  `json:"iatn,omitempty"`
}

// SessionTTL is the lifetime of session tokens (and of the cookie holding them).
func (s *TokenService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// Generate issues a session token for userID.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.sign(userID, purposeSession, "", s.sessionTTL)
}

// GenerateWithDuration issues a session token with a custom lifetime.
// Tests use it to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	return s.sign(userID, purposeSession, "", d)
}

// GenerateReset issues a one-hour password-reset token.
func (s *TokenService) GenerateReset(userID, fingerprint string) (string, error) {
	return s.sign(userID, purposeReset, fingerprint, ResetTTL)
}

// Validate verifies a session token and returns its user id.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	c, err := s.parse(tokenStr, purposeSession)
	if err != nil {
		return "", err
	}
	return c.Subject, nil
}

// ValidateSession is Validate plus the token's issue time, which the session
// gate compares against sign-out events.
func (s *TokenService) ValidateSession(tokenStr string) (string, time.Time, error) {
	c, err := s.parse(tokenStr, purposeSession)
	if err != nil {
		return "", time.Time{}, err
	}
	var issued time.Time
	switch {
	case c.IssuedNano != 0:
		issued = time.Unix(0, c.IssuedNano)
	case c.IssuedAt != nil:
		issued = c.IssuedAt.Time
	}
	return c.Subject, issued, nil
}

// ValidateReset verifies a reset token and returns the user id and the
// fingerprint it was issued with.
func (s *TokenService) ValidateReset(tokenStr string) (string, string, error) {
	c, err := s.parse(tokenStr, purposeReset)
	if err != nil {
		return "", "", err
	}
	return c.Subject, c.Fingerprint, nil
}

func (s *TokenService) sign(userID, purpose, fingerprint string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
		Purpose:     purpose,
		Fingerprint: fingerprint,
		IssuedNano:  now.UnixNano(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// parse checks signature, algorithm, issuer, expiry and purpose.
func (s *TokenService) parse(tokenStr, purpose string) (*claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}
	if c.Purpose != purpose {
		return nil, ErrWrongPurpose
	}
	return c, nil
}
