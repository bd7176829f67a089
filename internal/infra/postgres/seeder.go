package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/spounge-ai/parishvault/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const (
	stmtInsertAdmin = `
		INSERT INTO users (email, display_name, password_hash, is_admin)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (email) DO NOTHING`
	stmtInsertDistrict = `
		INSERT INTO districts (name)
		VALUES ($1)
		ON CONFLICT (name) DO NOTHING`
	stmtInsertParishioner = `
		INSERT INTO parishioners (district_id, full_name, address)
		SELECT d.id, $2, $3 FROM districts d WHERE d.name = $1
		ON CONFLICT (full_name, address) DO NOTHING`
)

// SeedConn is the connection a Seeder writes through.
type SeedConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Close(ctx context.Context) error
}

type ConnectFunc func(ctx context.Context, connString string) (SeedConn, error)

func connectPgx(ctx context.Context, connString string) (SeedConn, error) {
	return pgx.Connect(ctx, connString)
}

type exampleParishioner struct {
	district, name, address string
}

var (
	exampleDistricts    = []string{"North", "South", "Riverside"}
	exampleParishioners = []exampleParishioner{
		{"North", "Maria Kowalska", "12 Chapel Lane"},
		{"North", "Jan Nowak", "3 Orchard Road"},
		{"South", "Anna Wiśniewska", "41 Mill Street"},
		{"Riverside", "Piotr Zieliński", "7 Quay Walk"},
	}
)

// Seeder writes the first administrator and optional example data into a
// freshly migrated tenant database. Inserts ignore rows that already exist.
type Seeder struct {
	connect    ConnectFunc
	logger     *slog.Logger
	bcryptCost int
}

var _ domain.Seeder = (*Seeder)(nil)

func NewSeeder(logger *slog.Logger) *Seeder {
	return &Seeder{connect: connectPgx, logger: logger, bcryptCost: bcrypt.DefaultCost}
}

func (s *Seeder) SeedAdmin(ctx context.Context, descriptor *domain.ConnectionDescriptor, admin domain.AdminPrincipal) error {
	if admin.Email == "" || admin.Password == "" {
		return fmt.Errorf("admin email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	name := admin.DisplayName
	if name == "" {
		name = admin.Email
	}

	return s.withConn(ctx, descriptor, func(conn SeedConn) error {
		if _, err := conn.Exec(ctx, stmtInsertAdmin, admin.Email, name, string(hash)); err != nil {
			return fmt.Errorf("insert admin %s: %w", admin.Email, err)
		}
		s.logger.InfoContext(ctx, "tenant admin seeded", "database", descriptor.Database, "email", admin.Email)
		return nil
	})
}

func (s *Seeder) SeedExampleData(ctx context.Context, descriptor *domain.ConnectionDescriptor) error {
	return s.withConn(ctx, descriptor, func(conn SeedConn) error {
		for _, d := range exampleDistricts {
			if _, err := conn.Exec(ctx, stmtInsertDistrict, d); err != nil {
				return fmt.Errorf("insert district %s: %w", d, err)
			}
		}
		for _, p := range exampleParishioners {
			if _, err := conn.Exec(ctx, stmtInsertParishioner, p.district, p.name, p.address); err != nil {
				return fmt.Errorf("insert parishioner %s: %w", p.name, err)
			}
		}
		s.logger.InfoContext(ctx, "tenant example data seeded", "database", descriptor.Database)
		return nil
	})
}

func (s *Seeder) withConn(ctx context.Context, descriptor *domain.ConnectionDescriptor, fn func(SeedConn) error) error {
	conn, err := s.connect(ctx, descriptor.URL())
	if err != nil {
		return fmt.Errorf("connect to %s: %w", descriptor.Database, err)
	}
	defer func() {
		if cerr := conn.Close(ctx); cerr != nil {
			s.logger.WarnContext(ctx, "failed to close seed connection", "database", descriptor.Database, "error", cerr)
		}
	}()
	return fn(conn)
}
