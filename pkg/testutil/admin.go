package testutil

import (
	"context"
	"sync"

	"github.com/spounge-ai/parishvault/internal/domain"
)

// FakeAdmin is an in-memory tenant server. Mutations counts statements that
// changed state; existence checks are free.
type FakeAdmin struct {
	mu        sync.Mutex
	Databases map[string]string // database -> owner
	Logins    map[string]string // login -> secret
	Grants    map[string]map[string]bool
	Mutations int

	// FailOn, when set, may fail an operation ("database", "login", "user")
	// for the given database or login name.
	FailOn func(op, name string) error
}

var _ domain.ResourceAdmin = (*FakeAdmin)(nil)

func NewFakeAdmin() *FakeAdmin {
	return &FakeAdmin{
		Databases: make(map[string]string),
		Logins:    make(map[string]string),
		Grants:    make(map[string]map[string]bool),
	}
}

func (f *FakeAdmin) fail(op, name string) error {
	if f.FailOn == nil {
		return nil
	}
	return f.FailOn(op, name)
}

func (f *FakeAdmin) EnsureDatabase(_ context.Context, database string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("database", database); err != nil {
		return err
	}
	if _, ok := f.Databases[database]; !ok {
		f.Databases[database] = "admin"
		f.Mutations++
	}
	return nil
}

func (f *FakeAdmin) EnsureLogin(_ context.Context, login, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("login", login); err != nil {
		return err
	}
	if _, ok := f.Logins[login]; !ok {
		f.Logins[login] = secret
		f.Mutations++
	}
	return nil
}

func (f *FakeAdmin) EnsureUser(_ context.Context, database, login string, roles []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("user", database); err != nil {
		return err
	}
	if f.Databases[database] != login {
		f.Databases[database] = login
		f.Mutations++
	}
	if f.Grants[login] == nil {
		f.Grants[login] = make(map[string]bool)
	}
	for _, r := range roles {
		if !f.Grants[login][r] {
			f.Grants[login][r] = true
			f.Mutations++
		}
	}
	return nil
}

func (f *FakeAdmin) MutationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Mutations
}
