package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/spounge-ai/parishvault/internal/domain"
	app_errors "github.com/spounge-ai/parishvault/internal/errors"
	psql "github.com/spounge-ai/parishvault/pkg/postgres"
)

const (
	defaultQueryTimeout = 3 * time.Second
	defaultListCapacity = 64
)

// DBTX is the subset of pgxpool.Pool the registry needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRegistry stores tenant entries in the parishes table.
type PostgresRegistry struct {
	db           DBTX
	logger       *slog.Logger
	queryTimeout time.Duration
}

var _ domain.TenantRegistry = (*PostgresRegistry)(nil)

func NewPostgresRegistry(db DBTX, logger *slog.Logger, queryTimeout time.Duration) *PostgresRegistry {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	return &PostgresRegistry{db: db, logger: logger, queryTimeout: queryTimeout}
}

// Create inserts entry and fills in its ID and CreatedAt. A duplicate public
// id, including one inserted concurrently, yields ErrAlreadyExists.
func (r *PostgresRegistry) Create(ctx context.Context, entry *domain.TenantEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry cannot be nil", app_errors.ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	row := r.db.QueryRow(ctx, Queries[StmtCreateParish],
		entry.PublicID, entry.DisplayName, entry.EncryptedConnection, entry.KeyVersion)
	if err := row.Scan(&entry.ID, &entry.CreatedAt); err != nil {
		if psql.IsUniqueViolation(err) {
			return fmt.Errorf("parish %s: %w", entry.PublicID, app_errors.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create parish %s: %w", entry.PublicID, err)
	}

	r.logger.DebugContext(ctx, "parish registered", "id", entry.ID, "public_id", entry.PublicID)
	return nil
}

func (r *PostgresRegistry) FindByPublicID(ctx context.Context, publicID uuid.UUID) (*domain.TenantEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	row := r.db.QueryRow(ctx, Queries[StmtFindParishByPublic], publicID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("parish %s: %w", publicID, app_errors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find parish %s: %w", publicID, err)
	}
	return entry, nil
}

// UpdateEncryptedDescriptor replaces the ciphertext and its key version in a
// single statement.
func (r *PostgresRegistry) UpdateEncryptedDescriptor(ctx context.Context, id int64, ciphertext string, keyVersion int) error {
	if ciphertext == "" || keyVersion <= 0 {
		return fmt.Errorf("%w: ciphertext and positive key version required", app_errors.ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, Queries[StmtUpdateParishCipher], ciphertext, keyVersion, id)
	if err != nil {
		return fmt.Errorf("failed to update parish %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("parish %d: %w", id, app_errors.ErrNotFound)
	}
	return nil
}

func (r *PostgresRegistry) ListAll(ctx context.Context) ([]*domain.TenantEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, Queries[StmtListParishes])
	if err != nil {
		return nil, fmt.Errorf("failed to list parishes: %w", err)
	}
	defer rows.Close()

	entries := make([]*domain.TenantEntry, 0, defaultListCapacity)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan parish row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate parishes: %w", err)
	}
	return entries, nil
}

func scanEntry(row pgx.Row) (*domain.TenantEntry, error) {
	var e domain.TenantEntry
	if err := row.Scan(&e.ID, &e.PublicID, &e.DisplayName, &e.EncryptedConnection, &e.KeyVersion, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}
