// Package auth holds the blog's identity plumbing: bcrypt password hashing,
// the server-side session store, the signed session cookie and the HTTP
// middleware that ties them together.
//
// SESSION FLOW OVERVIEW:
//  1. A visitor without a valid cookie gets a new anonymous session. Its ID
//     (an xid) is signed into a JWT and sent as the HttpOnly "session" cookie.
//  2. On later requests the middleware verifies the JWT, takes the session ID
//     from its subject and looks the session up in the SessionStore.
//  3. Logging in attaches a username to that session; logging out removes it.
//
// WHY SIGN A SERVER-SIDE SESSION ID?
// The session itself (username, pending flash messages) never leaves the
// server. The signature only guarantees that the ID in the cookie was issued
// by us, so forged or guessed cookies are rejected before any lookup.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "flatblog"

// TokenService signs and verifies session cookies.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret.
// Tokens it issues expire after ttl.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: session TTL must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// claims is the JWT payload; "sub" carries the session ID.
type claims struct {
	jwt.RegisteredClaims
}

// Generate signs a token for sessionID valid for the service's TTL.
func (s *TokenService) Generate(sessionID string) (string, error) {
	return s.GenerateWithDuration(sessionID, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime.
// Tests use a negative duration to get an already-expired token.
func (s *TokenService) GenerateWithDuration(sessionID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate verifies a token and returns the session ID it carries.
//
// The parser checks the signature, the expiry, the issuer and that the
// algorithm is HS256. Pinning the algorithm matters: without it a token
// claiming "alg":"none" could be accepted unsigned.
func (s *TokenService) Validate(tokenStr string) (string, error) {
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
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}

// TTL is how long issued tokens stay valid.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}
