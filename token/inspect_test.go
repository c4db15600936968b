package token_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-jobportal-client/token"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwtlib.RegisteredClaims) string {
	t.Helper()
	s, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return s
}

func TestInspect(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := signed(t, jwtlib.RegisteredClaims{Subject: "user-1", ExpiresAt: jwtlib.NewNumericDate(exp)})

	in, err := token.Inspect(raw)
	require.NoError(t, err)
	require.Equal(t, "user-1", in.Sub)
	require.True(t, in.ExpiresAt.Equal(exp))
	require.False(t, in.ExpiredAt(time.Now()))
	require.True(t, in.ExpiredAt(exp))
}

func TestExpired(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	raw := signed(t, jwtlib.RegisteredClaims{ExpiresAt: jwtlib.NewNumericDate(now.Add(-10 * time.Second))})
	in, err := token.Inspect(raw)
	require.NoError(t, err)
	require.True(t, in.ExpiredAt(now))
	require.False(t, in.ExpiredAt(now.Add(-time.Minute)))
	require.Equal(t, now.Add(-10*time.Second), token.Expiry(raw).UTC())
}

func TestOpaqueTokens(t *testing.T) {
	_, err := token.Inspect("not-a-jwt")
	require.ErrorIs(t, err, token.ErrOpaqueToken)

	_, err = token.Inspect("  ")
	require.ErrorIs(t, err, token.ErrOpaqueToken)

	require.True(t, token.Expiry("not-a-jwt").IsZero())
}

func TestNoExpiryNeverExpires(t *testing.T) {
	raw := signed(t, jwtlib.RegisteredClaims{Subject: "user-1"})
	in, err := token.Inspect(raw)
	require.NoError(t, err)
	require.False(t, in.ExpiredAt(time.Now().Add(100*365*24*time.Hour)))
}
