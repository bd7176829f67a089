package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	app_errors "github.com/spounge-ai/parishvault/internal/errors"
)

// ParsePublicID parses the external parish identifier.
func ParsePublicID(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, fmt.Errorf("%w: public id cannot be empty", app_errors.ErrInvalidInput)
	}

	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid public id: %v", app_errors.ErrInvalidInput, err)
	}
	if id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: public id cannot be the nil uuid", app_errors.ErrInvalidInput)
	}
	return id, nil
}
