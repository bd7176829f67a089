package validator

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	arnPattern = regexp.MustCompile(`^arn:aws[a-z\-]*:[a-z0-9\-]+:[a-z0-9\-]*:[0-9]{12}:.+$`)

	// Unquoted Postgres identifier, within NAMEDATALEN.
	pgIdentPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)
)

// isARN checks if a string is a valid AWS ARN.
func isARN(fl validator.FieldLevel) bool {
	return arnPattern.MatchString(fl.Field().String())
}

func isPgIdent(fl validator.FieldLevel) bool {
	return pgIdentPattern.MatchString(fl.Field().String())
}

// IsPgIdent reports whether s can be used as an unquoted Postgres identifier.
func IsPgIdent(s string) bool {
	return pgIdentPattern.MatchString(s)
}

// RegisterCustomValidators registers custom validation functions with the validator.
func RegisterCustomValidators(validate *validator.Validate) error {
	for tag, fn := range map[string]validator.Func{
		"arn":     isARN,
		"pgident": isPgIdent,
	} {
		if err := validate.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %q: %w", tag, err)
		}
	}
	return nil
}
