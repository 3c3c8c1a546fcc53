package service

import (
	"errors"

	"vidtube-server/internal/domain"
	"vidtube-server/internal/repository"
	"vidtube-server/pkg/hash"
	"vidtube-server/pkg/jwt"
)

const (
	RevokeReasonLogout     = "logout"
	RevokeReasonSuperseded = "superseded"
)

// SessionNotifier is told when a user's refresh session ends, so connected clients can react.
type SessionNotifier interface {
	SessionRevoked(userID, reason string)
}

type noopNotifier struct{}

func (noopNotifier) SessionRevoked(string, string) {}

func invalid(message string) error {
	return domain.NewError(domain.ErrValidation, message)
}

func unauthorized(message string, err error) error {
	return domain.Wrap(domain.ErrUnauthorized, message, err)
}

// hashPassword maps bcrypt's length limit to a validation error.
func hashPassword(password string) (string, error) {
	hashed, err := hash.Hash(password)
	if err != nil {
		if errors.Is(err, hash.ErrPasswordTooLong) {
			return "", domain.Wrap(domain.ErrValidation, "password is too long", err)
		}
		return "", domain.Wrap(domain.ErrInternal, "failed to hash password", err)
	}
	return hashed, nil
}

func tokenError(err error) error {
	if errors.Is(err, jwt.ErrMissingSecret) {
		return domain.Wrap(domain.ErrInternal, "token signing is not configured", err)
	}
	return domain.Wrap(domain.ErrInternal, "failed to generate tokens", err)
}

func isBlank(values ...string) bool {
	for _, v := range values {
		if len(trim(v)) == 0 {
			return true
		}
	}
	return false
}

func isPrecondition(err error) bool {
	return errors.Is(err, repository.ErrPreconditionFailed)
}
