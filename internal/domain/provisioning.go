package domain

import "context"

// ResourceAdmin issues idempotent "create if not exists" administrative
// statements against the tenant database server. Implementations must be
// safe to call repeatedly for resources that already exist.
type ResourceAdmin interface {
	EnsureDatabase(ctx context.Context, database string) error
	EnsureLogin(ctx context.Context, login, secret string) error
	EnsureUser(ctx context.Context, database, login string, roles []string) error
}

// Migrator applies pending schema changes to one tenant database.
type Migrator interface {
	ApplyPendingMigrations(ctx context.Context, descriptor *ConnectionDescriptor) error
}

// AdminPrincipal is the tenant-scoped administrator created at provisioning time.
type AdminPrincipal struct {
	Email       string
	DisplayName string
	Password    string
}

// Seeder populates a freshly provisioned tenant. Failures are never fatal to
// tenant creation.
type Seeder interface {
	SeedAdmin(ctx context.Context, descriptor *ConnectionDescriptor, admin AdminPrincipal) error
	SeedExampleData(ctx context.Context, descriptor *ConnectionDescriptor) error
}
