package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for any username or password mismatch.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// CredentialChecker validates the single back-office credential.
type CredentialChecker struct {
	username     string
	passwordHash []byte
}

// NewCredentialChecker expects a bcrypt hash of the admin password.
func NewCredentialChecker(username, passwordHash string) (*CredentialChecker, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("auth: admin username is required")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, errors.New("auth: admin password hash must be a bcrypt hash")
	}
	return &CredentialChecker{username: username, passwordHash: []byte(passwordHash)}, nil
}

// Check compares the supplied credential against the configured one. The bcrypt comparison
// runs even when the username does not match.
func (c *CredentialChecker) Check(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(username)), []byte(c.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(c.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword produces a bcrypt hash suitable for SHOP_ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
