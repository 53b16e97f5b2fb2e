package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"ai-quiz-tutor/internal/domain"
)

// HashPassword returns the bcrypt hash of a plain password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPassword compares a plain password with a stored hash.
func CheckPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return domain.ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidCredentials, err)
	}
	return nil
}
