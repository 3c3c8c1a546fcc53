package hash

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

// ErrPasswordTooLong is returned by Hash for passwords bcrypt cannot represent (over 72 bytes).
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

func Hash(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hashedBytes), nil
}

func Compare(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// Verify reports whether password matches hashedPassword. A malformed hash never matches.
func Verify(password, hashedPassword string) bool {
	return Compare(hashedPassword, password) == nil
}
