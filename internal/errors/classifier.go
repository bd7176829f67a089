package errors

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

type ErrorClass int

const (
	ClassInternal ErrorClass = iota
	ClassValidation
	ClassNotFound
	ClassConflict
	ClassNoTenant
	ClassUnavailable
	ClassRateLimited
)

func (c ErrorClass) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassNotFound:
		return "not_found"
	case ClassConflict:
		return "conflict"
	case ClassNoTenant:
		return "no_tenant"
	case ClassUnavailable:
		return "unavailable"
	case ClassRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

type ClassifiedError struct {
	Class         ErrorClass
	InternalError error
	ClientMessage string
	OperationName string
	PublicID      string // logged, never returned to the client
}

// ErrorClassifier turns internal errors into sanitized client responses.
type ErrorClassifier struct {
	logger *slog.Logger
}

func NewErrorClassifier(logger *slog.Logger) *ErrorClassifier {
	return &ErrorClassifier{logger: logger}
}

func (ec *ErrorClassifier) Classify(err error, operation string) *ClassifiedError {
	classified := &ClassifiedError{
		InternalError: err,
		OperationName: operation,
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		classified.Class = ClassValidation
		classified.ClientMessage = "The request contains invalid parameters."
	case errors.Is(err, ErrNotFound):
		classified.Class = ClassNotFound
		classified.ClientMessage = "The requested parish was not found."
	case errors.Is(err, ErrAlreadyExists):
		classified.Class = ClassConflict
		classified.ClientMessage = "A parish with this identifier already exists."
	case errors.Is(err, ErrNoTenant):
		classified.Class = ClassNoTenant
		classified.ClientMessage = "No parish is selected for this request."
	case errors.Is(err, ErrRegistryUnavailable):
		classified.Class = ClassUnavailable
		classified.ClientMessage = "The service is temporarily unavailable. Please try again later."
	case errors.Is(err, ErrRateLimited):
		classified.Class = ClassRateLimited
		classified.ClientMessage = "Too many requests. Please slow down."
	default:
		// crypto, provisioning and migration failures
		classified.Class = ClassInternal
		classified.ClientMessage = "An unexpected internal error occurred."
	}

	return classified
}

// LogAndSanitize logs the internal error and returns the HTTP status and
// message that are safe to send to the client.
func (ec *ErrorClassifier) LogAndSanitize(ctx context.Context, classified *ClassifiedError) (int, string) {
	ec.logger.ErrorContext(ctx, "operation failed",
		"operation", classified.OperationName,
		"error_class", classified.Class.String(),
		"internal_error", classified.InternalError.Error(),
		"public_id", classified.PublicID,
	)

	return classified.HTTPStatus(), classified.ClientMessage
}

func (c *ClassifiedError) HTTPStatus() int {
	switch c.Class {
	case ClassValidation:
		return http.StatusBadRequest
	case ClassNotFound:
		return http.StatusNotFound
	case ClassConflict:
		return http.StatusConflict
	case ClassNoTenant:
		return http.StatusForbidden
	case ClassUnavailable:
		return http.StatusServiceUnavailable
	case ClassRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
