package persistence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/spounge-ai/parishvault/internal/domain"
	app_errors "github.com/spounge-ai/parishvault/internal/errors"
	"github.com/stretchr/testify/suite"
)

var entryColumns = []string{"id", "public_id", "display_name", "encrypted_connection", "key_version", "created_at"}

type PostgresRegistryTestSuite struct {
	suite.Suite
	mock     pgxmock.PgxPoolIface
	registry *PostgresRegistry
	ctx      context.Context
	publicID uuid.UUID
	created  time.Time
}

func (s *PostgresRegistryTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	s.Require().NoError(err)
	s.mock = mock

	s.registry = NewPostgresRegistry(mock, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Second)
	s.ctx = context.Background()
	s.publicID = uuid.New()
	s.created = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *PostgresRegistryTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.mock.Close()
}

func TestPostgresRegistryTestSuite(t *testing.T) {
	suite.Run(t, new(PostgresRegistryTestSuite))
}

func (s *PostgresRegistryTestSuite) TestCreate_Success() {
	entry := &domain.TenantEntry{
		PublicID:            s.publicID,
		DisplayName:         "St. Brigid",
		EncryptedConnection: "ciphertext",
		KeyVersion:          1,
	}

	s.mock.ExpectQuery(Queries[StmtCreateParish]).
		WithArgs(s.publicID, "St. Brigid", "ciphertext", 1).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), s.created))

	s.Require().NoError(s.registry.Create(s.ctx, entry))
	s.Equal(int64(7), entry.ID)
	s.Equal(s.created, entry.CreatedAt)
}

func (s *PostgresRegistryTestSuite) TestCreate_UniqueViolation() {
	entry := &domain.TenantEntry{PublicID: s.publicID, DisplayName: "Dup", EncryptedConnection: "c", KeyVersion: 1}

	s.mock.ExpectQuery(Queries[StmtCreateParish]).
		WithArgs(s.publicID, "Dup", "c", 1).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "parishes_public_id_key"})

	err := s.registry.Create(s.ctx, entry)
	s.ErrorIs(err, app_errors.ErrAlreadyExists)
	s.Zero(entry.ID)
}

func (s *PostgresRegistryTestSuite) TestCreate_OtherError() {
	entry := &domain.TenantEntry{PublicID: s.publicID, DisplayName: "X", EncryptedConnection: "c", KeyVersion: 1}

	s.mock.ExpectQuery(Queries[StmtCreateParish]).
		WithArgs(s.publicID, "X", "c", 1).
		WillReturnError(errors.New("connection reset"))

	err := s.registry.Create(s.ctx, entry)
	s.ErrorContains(err, "connection reset")
	s.NotErrorIs(err, app_errors.ErrAlreadyExists)
}

func (s *PostgresRegistryTestSuite) TestFindByPublicID_Found() {
	s.mock.ExpectQuery(Queries[StmtFindParishByPublic]).
		WithArgs(s.publicID).
		WillReturnRows(pgxmock.NewRows(entryColumns).
			AddRow(int64(3), s.publicID, "St. Anne", "ct", 2, s.created))

	entry, err := s.registry.FindByPublicID(s.ctx, s.publicID)
	s.Require().NoError(err)
	s.Equal(int64(3), entry.ID)
	s.Equal(s.publicID, entry.PublicID)
	s.Equal("St. Anne", entry.DisplayName)
	s.Equal(2, entry.KeyVersion)
}

func (s *PostgresRegistryTestSuite) TestFindByPublicID_NotFound() {
	s.mock.ExpectQuery(Queries[StmtFindParishByPublic]).
		WithArgs(s.publicID).
		WillReturnRows(pgxmock.NewRows(entryColumns))

	_, err := s.registry.FindByPublicID(s.ctx, s.publicID)
	s.ErrorIs(err, app_errors.ErrNotFound)
}

func (s *PostgresRegistryTestSuite) TestUpdateEncryptedDescriptor() {
	s.mock.ExpectExec(Queries[StmtUpdateParishCipher]).
		WithArgs("new-ct", 3, int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	s.NoError(s.registry.UpdateEncryptedDescriptor(s.ctx, 5, "new-ct", 3))
}

func (s *PostgresRegistryTestSuite) TestUpdateEncryptedDescriptor_Missing() {
	s.mock.ExpectExec(Queries[StmtUpdateParishCipher]).
		WithArgs("new-ct", 3, int64(99)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.registry.UpdateEncryptedDescriptor(s.ctx, 99, "new-ct", 3)
	s.ErrorIs(err, app_errors.ErrNotFound)
}

func (s *PostgresRegistryTestSuite) TestUpdateEncryptedDescriptor_RejectsPartialPair() {
	s.ErrorIs(s.registry.UpdateEncryptedDescriptor(s.ctx, 1, "", 3), app_errors.ErrInvalidInput)
	s.ErrorIs(s.registry.UpdateEncryptedDescriptor(s.ctx, 1, "ct", 0), app_errors.ErrInvalidInput)
}

func (s *PostgresRegistryTestSuite) TestListAll() {
	other := uuid.New()
	s.mock.ExpectQuery(Queries[StmtListParishes]).
		WillReturnRows(pgxmock.NewRows(entryColumns).
			AddRow(int64(1), s.publicID, "A", "ct-a", 1, s.created).
			AddRow(int64(2), other, "B", "ct-b", 2, s.created))

	entries, err := s.registry.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(other, entries[1].PublicID)
	s.Equal(2, entries[1].KeyVersion)
}

func (s *PostgresRegistryTestSuite) TestListAll_QueryError() {
	s.mock.ExpectQuery(Queries[StmtListParishes]).WillReturnError(errors.New("boom"))

	_, err := s.registry.ListAll(s.ctx)
	s.ErrorContains(err, "failed to list parishes")
}
