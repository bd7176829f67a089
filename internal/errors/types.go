package errors

import "errors"

var (
	ErrAlreadyExists       = errors.New("tenant already exists")
	ErrNotFound            = errors.New("tenant not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrCryptoFailure       = errors.New("crypto operation failed")
	ErrProvisioningFailure = errors.New("tenant provisioning failed")
	ErrMigrationFailure    = errors.New("tenant migration failed")
	ErrSeedFailure         = errors.New("tenant seeding failed")
	ErrNoTenant            = errors.New("no resolved tenant for this unit of work")
	ErrRegistryUnavailable = errors.New("tenant registry unavailable")
	ErrRateLimited         = errors.New("rate limit exceeded")
)
