package auth

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

const genericInputError = "Please check your input and try again."

var validate = validator.New(validator.WithRequiredStructEnabled())

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
