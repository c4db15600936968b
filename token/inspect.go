package token

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// ErrOpaqueToken is returned when a token is not a parseable JWT.
var ErrOpaqueToken = errors.New("token is not a JWT")

// Introspection is what the client can learn about an access token without
// the signing key. Nothing here is verified; the backend remains the
// authority on validity.
type Introspection struct {
	Sub       string    // Subject, the user id
	ExpiresAt time.Time // Zero when the token carries no exp claim
	IssuedAt  time.Time // Zero when the token carries no iat claim
}

// Inspect reads the registered claims of rawToken without verifying the
// signature.
func Inspect(rawToken string) (*Introspection, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, ErrOpaqueToken
	}

	claims := jwtlib.RegisteredClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(rawToken, &claims); err != nil {
		return nil, errors.Join(ErrOpaqueToken, err)
	}

	in := &Introspection{Sub: claims.Subject}
	if claims.ExpiresAt != nil {
		in.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		in.IssuedAt = claims.IssuedAt.Time
	}
	return in, nil
}

// ExpiredAt reports whether the exp claim is at or before now. Opaque tokens
// and tokens without exp are never reported as expired.
func (in *Introspection) ExpiredAt(now time.Time) bool {
	if in == nil || in.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(in.ExpiresAt)
}

// Expiry returns the exp claim of rawToken, or the zero time.
func Expiry(rawToken string) time.Time {
	in, err := Inspect(rawToken)
	if err != nil {
		return time.Time{}
	}
	return in.ExpiresAt
}
