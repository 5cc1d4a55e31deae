// Package auth verifies Supabase access tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingSecret is returned when no JWT secret is configured.
var ErrMissingSecret = errors.New("jwt secret is not configured")

// Claims are the Supabase access-token claims used by blogsmith.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// UserID returns the subject, which Supabase sets to the user UUID.
func (c *Claims) UserID() string {
	return c.Subject
}

// TokenVerifier signs and verifies HS256 tokens with the project secret.
type TokenVerifier struct {
	Secret   []byte
	Audience string // "authenticated" for Supabase user tokens; empty skips the check
	Duration time.Duration
}

// NewTokenVerifier creates a verifier for Supabase user tokens.
func NewTokenVerifier(secret string) TokenVerifier {
	return TokenVerifier{Secret: []byte(secret), Audience: "authenticated", Duration: time.Hour}
}

// Sign issues a token for userID. Used by the CLI to call a protected server.
func (tv TokenVerifier) Sign(userID, email string) (string, time.Time, error) {
	if len(tv.Secret) == 0 {
		return "", time.Time{}, ErrMissingSecret
	}
	exp := time.Now().Add(tv.Duration)

	claims := Claims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	if tv.Audience != "" {
		claims.Audience = jwt.ClaimStrings{tv.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(tv.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return s, exp, nil
}

// Parse verifies tokenString and returns its claims.
func (tv TokenVerifier) Parse(tokenString string) (*Claims, error) {
	if len(tv.Secret) == 0 {
		return nil, ErrMissingSecret
	}

	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if tv.Audience != "" {
		opts = append(opts, jwt.WithAudience(tv.Audience))
	}

	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		// enforce HS256
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tv.Secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
