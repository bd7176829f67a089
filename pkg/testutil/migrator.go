package testutil

import (
	"context"
	"sync"

	"github.com/spounge-ai/parishvault/internal/domain"
)

// FakeMigrator records which databases have been migrated. Only the first
// application per database counts as a change.
type FakeMigrator struct {
	mu       sync.Mutex
	Migrated map[string]bool
	Calls    int
	Changes  int
	FailOn   func(d *domain.ConnectionDescriptor) error
}

var _ domain.Migrator = (*FakeMigrator)(nil)

func NewFakeMigrator() *FakeMigrator {
	return &FakeMigrator{Migrated: make(map[string]bool)}
}

func (f *FakeMigrator) ApplyPendingMigrations(_ context.Context, d *domain.ConnectionDescriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.FailOn != nil {
		if err := f.FailOn(d); err != nil {
			return err
		}
	}
	if !f.Migrated[d.Database] {
		f.Migrated[d.Database] = true
		f.Changes++
	}
	return nil
}

// FakeSeeder records seeding calls and can be told to fail.
type FakeSeeder struct {
	mu           sync.Mutex
	Admins       map[string]domain.AdminPrincipal
	ExampleSeeds []string
	AdminErr     error
	ExampleErr   error
}

var _ domain.Seeder = (*FakeSeeder)(nil)

func NewFakeSeeder() *FakeSeeder {
	return &FakeSeeder{Admins: make(map[string]domain.AdminPrincipal)}
}

func (f *FakeSeeder) SeedAdmin(_ context.Context, d *domain.ConnectionDescriptor, admin domain.AdminPrincipal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AdminErr != nil {
		return f.AdminErr
	}
	f.Admins[d.Database] = admin
	return nil
}

func (f *FakeSeeder) SeedExampleData(_ context.Context, d *domain.ConnectionDescriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ExampleErr != nil {
		return f.ExampleErr
	}
	f.ExampleSeeds = append(f.ExampleSeeds, d.Database)
	return nil
}
