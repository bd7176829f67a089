package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/spounge-ai/parishvault/internal/domain"
	"github.com/spounge-ai/parishvault/pkg/execution"
	psql "github.com/spounge-ai/parishvault/pkg/postgres"
	customvalidator "github.com/spounge-ai/parishvault/pkg/validator"
)

const (
	queryDatabaseExists = `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`
	queryRoleExists     = `SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)`
	queryMembership     = `
		SELECT EXISTS (
			SELECT 1
			FROM pg_auth_members m
			JOIN pg_roles r ON r.oid = m.roleid
			JOIN pg_roles u ON u.oid = m.member
			WHERE r.rolname = $1 AND u.rolname = $2)`
	queryDatabaseOwner = `SELECT pg_get_userbyid(datdba) FROM pg_database WHERE datname = $1`
	queryCanConnect    = `SELECT has_database_privilege($1, $2, 'CONNECT')`
)

// AdminDB is the subset of pgxpool.Pool used for administrative statements.
type AdminDB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Admin creates databases, logins and grants on the tenant server. Every
// statement is preceded by an existence check so repeated calls against
// an up-to-date server change nothing. Losing a race to another instance
// shows up as a duplicate-object error, which counts as success.
type Admin struct {
	db          AdminDB
	logger      *slog.Logger
	maxAttempts int
}

var _ domain.ResourceAdmin = (*Admin)(nil)

func NewAdmin(db AdminDB, logger *slog.Logger, maxAttempts int) *Admin {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Admin{db: db, logger: logger, maxAttempts: maxAttempts}
}

func (a *Admin) EnsureDatabase(ctx context.Context, database string) error {
	if err := checkIdent("database", database); err != nil {
		return err
	}

	exists, err := a.exists(ctx, queryDatabaseExists, database)
	if err != nil {
		return fmt.Errorf("check database %s: %w", database, err)
	}
	if exists {
		return nil
	}

	if err := a.exec(ctx, "CREATE DATABASE "+quoteIdent(database)); err != nil {
		return fmt.Errorf("create database %s: %w", database, err)
	}
	a.logger.InfoContext(ctx, "tenant database created", "database", database)
	return nil
}

// EnsureLogin creates the login with secret. An existing login keeps its
// current password.
func (a *Admin) EnsureLogin(ctx context.Context, login, secret string) error {
	if err := checkIdent("login", login); err != nil {
		return err
	}
	if secret == "" {
		return fmt.Errorf("login %s: empty secret", login)
	}

	exists, err := a.exists(ctx, queryRoleExists, login)
	if err != nil {
		return fmt.Errorf("check login %s: %w", login, err)
	}
	if exists {
		return nil
	}

	stmt := "CREATE ROLE " + quoteIdent(login) + " LOGIN PASSWORD " + quoteLiteral(secret)
	if err := a.exec(ctx, stmt); err != nil {
		return fmt.Errorf("create login %s: %w", login, err)
	}
	a.logger.InfoContext(ctx, "tenant login created", "login", login)
	return nil
}

// EnsureUser makes login the owner of database, grants it CONNECT and adds
// it to each of roles.
func (a *Admin) EnsureUser(ctx context.Context, database, login string, roles []string) error {
	if err := checkIdent("database", database); err != nil {
		return err
	}
	if err := checkIdent("login", login); err != nil {
		return err
	}
	for _, role := range roles {
		if err := checkIdent("role", role); err != nil {
			return err
		}
	}

	var owner string
	if err := a.queryRow(ctx, queryDatabaseOwner, []any{database}, &owner); err != nil {
		return fmt.Errorf("read owner of %s: %w", database, err)
	}
	if owner != login {
		if err := a.exec(ctx, "ALTER DATABASE "+quoteIdent(database)+" OWNER TO "+quoteIdent(login)); err != nil {
			return fmt.Errorf("transfer %s to %s: %w", database, login, err)
		}
	}

	var canConnect bool
	if err := a.queryRow(ctx, queryCanConnect, []any{login, database}, &canConnect); err != nil {
		return fmt.Errorf("check connect on %s: %w", database, err)
	}
	if !canConnect {
		if err := a.exec(ctx, "GRANT CONNECT ON DATABASE "+quoteIdent(database)+" TO "+quoteIdent(login)); err != nil {
			return fmt.Errorf("grant connect on %s: %w", database, err)
		}
	}

	for _, role := range roles {
		member, err := a.exists(ctx, queryMembership, role, login)
		if err != nil {
			return fmt.Errorf("check role %s for %s: %w", role, login, err)
		}
		if member {
			continue
		}
		if err := a.exec(ctx, "GRANT "+quoteIdent(role)+" TO "+quoteIdent(login)); err != nil {
			return fmt.Errorf("grant %s to %s: %w", role, login, err)
		}
	}
	return nil
}

func (a *Admin) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	err := a.queryRow(ctx, query, args, &ok)
	return ok, err
}

func (a *Admin) queryRow(ctx context.Context, query string, args []any, dest ...any) error {
	_, err := execution.WithRetry(ctx, a.maxAttempts, 200*time.Millisecond, 2*time.Second, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, retryable(a.db.QueryRow(ctx, query, args...).Scan(dest...))
	})
	return err
}

func (a *Admin) exec(ctx context.Context, stmt string) error {
	_, err := execution.WithRetry(ctx, a.maxAttempts, 200*time.Millisecond, 2*time.Second, func(ctx context.Context) (struct{}, error) {
		_, err := a.db.Exec(ctx, stmt)
		if psql.IsDuplicateObject(err) {
			return struct{}{}, nil
		}
		return struct{}{}, retryable(err)
	})
	return err
}

// retryable lets connection-level failures be retried. Server-side errors
// are answers and are returned as is.
func retryable(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) || errors.Is(err, pgx.ErrNoRows) {
		return execution.Permanent(err)
	}
	return err
}

func checkIdent(kind, name string) error {
	if !customvalidator.IsPgIdent(name) {
		return fmt.Errorf("invalid %s name %q", kind, name)
	}
	return nil
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// DDL cannot take bind parameters, so the password is inlined as a literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
