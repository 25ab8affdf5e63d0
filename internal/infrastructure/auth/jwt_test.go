package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oliehub/backend/internal/infrastructure/config"
)

func newTestVerifier() *JWTVerifier {
	return NewJWTVerifier(config.AuthConfig{
		JWTSecret: "test-secret-key-at-least-32-chars",
		Issuer:    "olie-id",
	})
}

func TestJWTVerifier_Enabled(t *testing.T) {
	assert.True(t, newTestVerifier().Enabled())
	assert.False(t, NewJWTVerifier(config.AuthConfig{}).Enabled())

	var nilVerifier *JWTVerifier
	assert.False(t, nilVerifier.Enabled())
}

func TestJWTVerifier_IssueAndVerify(t *testing.T) {
	v := newTestVerifier()

	token, err := v.Issue("user-42", "Ana", time.Hour)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.Subject)
	assert.Equal(t, "olie-id", claims.Issuer)
	assert.Equal(t, "Ana", claims.Actor())
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.GetExpiresAtTime(), time.Minute)
}

func TestJWTVerifier_Verify_Errors(t *testing.T) {
	v := newTestVerifier()
	secret := []byte("test-secret-key-at-least-32-chars")

	sign := func(method jwt.SigningMethod, key any, claims *Claims) string {
		token, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return token
	}
	base := func() *Claims {
		return &Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "olie-id",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
	}

	expired := base()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	future := base()
	future.NotBefore = jwt.NewNumericDate(time.Now().Add(time.Hour))

	wrongIssuer := base()
	wrongIssuer.Issuer = "someone-else"

	noSubject := base()
	noSubject.Subject = ""

	noExpiry := base()
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"garbage", "not-a-token", ErrInvalidToken},
		{"wrong secret", sign(jwt.SigningMethodHS256, []byte("another-secret"), base()), ErrInvalidToken},
		{"wrong algorithm", sign(jwt.SigningMethodHS512, secret, base()), ErrInvalidToken},
		{"expired", sign(jwt.SigningMethodHS256, secret, expired), ErrExpiredToken},
		{"not yet valid", sign(jwt.SigningMethodHS256, secret, future), ErrTokenNotYetValid},
		{"wrong issuer", sign(jwt.SigningMethodHS256, secret, wrongIssuer), ErrInvalidToken},
		{"missing subject", sign(jwt.SigningMethodHS256, secret, noSubject), ErrMissingSubject},
		{"missing expiry", sign(jwt.SigningMethodHS256, secret, noExpiry), ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestJWTVerifier_Disabled(t *testing.T) {
	v := NewJWTVerifier(config.AuthConfig{})

	_, err := v.Verify("anything")
	assert.ErrorIs(t, err, ErrAuthDisabled)

	_, err = v.Issue("user", "", time.Minute)
	assert.ErrorIs(t, err, ErrAuthDisabled)
}

func TestClaims_Actor(t *testing.T) {
	c := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-1"}}
	assert.Equal(t, "sub-1", c.Actor())
	c.Name = "Ana"
	assert.Equal(t, "Ana", c.Actor())
	c.Email = "ana@olie.com.br"
	assert.Equal(t, "ana@olie.com.br", c.Actor())
}
