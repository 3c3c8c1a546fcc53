package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrExpired          = errors.New("token has expired")
	ErrInvalidSignature = errors.New("token signature is invalid")
	ErrMalformed        = errors.New("token is malformed")
	ErrMissingSecret    = errors.New("signing secret is not configured")
)

// Claims is the payload of both token kinds. Refresh tokens only carry the registered claims.
type Claims struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Fullname string `json:"fullname,omitempty"`
	gojwt.RegisteredClaims
}

func (c *Claims) UserID() string {
	return c.Subject
}

// Sign stamps iat, exp and jti on claims and signs them with HS256.
func Sign(claims Claims, expiration time.Duration, secret string, now time.Time) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}

	claims.IssuedAt = gojwt.NewNumericDate(now)
	claims.ExpiresAt = gojwt.NewNumericDate(now.Add(expiration))
	claims.ID = uuid.NewString()

	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

func ValidateToken(tokenString, secret string) (*Claims, error) {
	return ValidateTokenAt(tokenString, secret, time.Now())
}

// ValidateTokenAt checks signature and expiry as of now. A token is expired once now >= exp.
func ValidateTokenAt(tokenString, secret string, now time.Time) (*Claims, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}

	claims := &Claims{}
	token, err := gojwt.ParseWithClaims(tokenString, claims,
		func(t *gojwt.Token) (interface{}, error) {
			return []byte(secret), nil
		},
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(func() time.Time { return now }),
	)

	switch {
	case err == nil && token.Valid:
	case errors.Is(err, gojwt.ErrTokenExpired):
		return nil, ErrExpired
	case errors.Is(err, gojwt.ErrTokenSignatureInvalid):
		return nil, ErrInvalidSignature
	default:
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformed)
	}

	return claims, nil
}
