package jwt

import (
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

type Config struct {
	AccessSecret      string
	AccessExpiration  time.Duration
	RefreshSecret     string
	RefreshExpiration time.Duration
}

// Identity is the user data embedded in access tokens.
type Identity struct {
	UserID   string
	Username string
	Email    string
	Fullname string
}

// Issuer signs and verifies access and refresh tokens with their own secrets and lifetimes.
type Issuer struct {
	cfg Config
	now func() time.Time
}

type Option func(*Issuer)

func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

func NewIssuer(cfg Config, opts ...Option) *Issuer {
	i := &Issuer{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Issuer) IssueAccessToken(id Identity) (string, error) {
	claims := Claims{
		Username: id.Username,
		Email:    id.Email,
		Fullname: id.Fullname,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject: id.UserID,
		},
	}
	return Sign(claims, i.cfg.AccessExpiration, i.cfg.AccessSecret, i.now())
}

func (i *Issuer) IssueRefreshToken(userID string) (string, error) {
	claims := Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject: userID,
		},
	}
	return Sign(claims, i.cfg.RefreshExpiration, i.cfg.RefreshSecret, i.now())
}

func (i *Issuer) VerifyAccessToken(token string) (*Claims, error) {
	return ValidateTokenAt(token, i.cfg.AccessSecret, i.now())
}

func (i *Issuer) VerifyRefreshToken(token string) (*Claims, error) {
	return ValidateTokenAt(token, i.cfg.RefreshSecret, i.now())
}

func (i *Issuer) AccessExpiration() time.Duration {
	return i.cfg.AccessExpiration
}

func (i *Issuer) RefreshExpiration() time.Duration {
	return i.cfg.RefreshExpiration
}
