// Package auth verifies bearer tokens on admin routes. Tokens are issued by
// an external identity provider; only signature, issuer and expiry are checked.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/oliehub/backend/internal/infrastructure/config"
)

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingSubject   = errors.New("missing subject in claims")
	ErrAuthDisabled     = errors.New("token verification is disabled")
)

// Claims represents the JWT claims read from operator tokens
type Claims struct {
	jwt.RegisteredClaims
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Actor returns the identity recorded on audited operations
func (c *Claims) Actor() string {
	switch {
	case c.Email != "":
		return c.Email
	case c.Name != "":
		return c.Name
	default:
		return c.Subject
	}
}

// GetExpiresAtTime returns the expiration time of the token
func (c *Claims) GetExpiresAtTime() time.Time {
	if c.ExpiresAt != nil {
		return c.ExpiresAt.Time
	}
	return time.Time{}
}

// JWTVerifier validates HS256 bearer tokens
type JWTVerifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewJWTVerifier creates a new verifier. An empty secret disables verification.
func NewJWTVerifier(cfg config.AuthConfig) *JWTVerifier {
	return &JWTVerifier{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		leeway: 30 * time.Second,
	}
}

// Enabled reports whether a secret is configured
func (v *JWTVerifier) Enabled() bool {
	return v != nil && len(v.secret) > 0
}

// Verify validates a token and returns its claims
func (v *JWTVerifier) Verify(tokenString string) (*Claims, error) {
	if !v.Enabled() {
		return nil, ErrAuthDisabled
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

// Issue signs a token for subject. Used by local tooling and tests; production
// tokens come from the identity provider.
func (v *JWTVerifier) Issue(subject, name string, ttl time.Duration) (string, error) {
	if !v.Enabled() {
		return "", ErrAuthDisabled
	}
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name: name,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
