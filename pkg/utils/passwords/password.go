// Package passwords hashes and verifies account passwords with argon2id.
package passwords

import (
	"crypto/subtle"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"github.com/go-playground/validator/v10"
)

// Password is an encoded argon2id hash as stored in users.password.
type Password string

const (
	// MinPasswordLength is the minimum password length
	MinPasswordLength = 8
	// MaxPasswordLength is the maximum password length
	MaxPasswordLength = 512
)

var (
	ErrPasswordMismatch = errors.New("passwords do not match")

	params = &argon2id.Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}

	validate = validator.New()
)

// PasswordInput is a struct for validating password inputs
type PasswordInput struct {
	Password string `validate:"required,min=8,max=512"`
}

// Confirm checks that a registration form repeated the password exactly.
func Confirm(password, confirmed string) error {
	if subtle.ConstantTimeCompare([]byte(password), []byte(confirmed)) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

// NewPassword validates the plaintext length and returns its hash.
func NewPassword(input PasswordInput) (Password, error) {
	if err := validate.Struct(input); err != nil {
		return "", err
	}

	hash, err := argon2id.CreateHash(input.Password, params)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return Password(hash), nil
}

// Matches reports whether plaintext hashes to p. A malformed stored hash is
// reported as an error rather than a mismatch.
func (p Password) Matches(plaintext string) (bool, error) {
	if !IsArgonEncoded(string(p)) {
		return false, errors.New("passwords: stored hash is not argon2id")
	}
	return argon2id.ComparePasswordAndHash(plaintext, string(p))
}

// Scan implements database/sql.Scanner.
func (p *Password) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = ""
	case string:
		*p = Password(v)
	case []byte:
		*p = Password(string(v))
	default:
		return fmt.Errorf("passwords.Password.Scan: expected string or []byte, got %T", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (p Password) Value() (driver.Value, error) {
	return string(p), nil
}

// IsArgonEncoded returns true if the input is an argon2id hash
func IsArgonEncoded(input string) bool {
	return strings.HasPrefix(input, "$argon2id$")
}
