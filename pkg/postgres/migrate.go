package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// EmbeddedSource serves migrations from dir inside fsys.
func EmbeddedSource(fsys fs.FS, dir string) (source.Driver, error) {
	d, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	return d, nil
}

// DirSource serves migrations from a directory on disk.
func DirSource(dir string) (source.Driver, error) {
	d, err := (&file.File{}).Open("file://" + dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations in %s: %w", dir, err)
	}
	return d, nil
}

// Up applies every pending migration from src to the database at
// databaseURL. It reports whether anything was applied; an up-to-date
// database is not an error. Cancelling ctx stops after the running
// migration. A ctx deadline also bounds the initial connection.
func Up(ctx context.Context, src source.Driver, databaseURL string) (bool, error) {
	m, err := migrate.NewWithSourceInstance("parishvault", src, WithConnectTimeout(ctx, databaseURL))
	if err != nil {
		return false, fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer m.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return false, nil
		}
		return false, fmt.Errorf("migration failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return true, fmt.Errorf("migration interrupted: %w", err)
	}
	return true, nil
}

// Version reports the current schema version and whether it is dirty.
func Version(src source.Driver, databaseURL string) (uint, bool, error) {
	m, err := migrate.NewWithSourceInstance("parishvault", src, databaseURL)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer m.Close()

	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, dirty, nil
}

// WithConnectTimeout sets connect_timeout on a postgres URL to the whole
// seconds left before the ctx deadline, rounded up. The migrate driver dials
// without a context, so this is the only bound on connection setup. URLs are
// returned unchanged when ctx has no deadline or already carry a smaller
// timeout.
func WithConnectTimeout(ctx context.Context, databaseURL string) string {
	deadline, ok := ctx.Deadline()
	if !ok {
		return databaseURL
	}
	u, err := url.Parse(databaseURL)
	if err != nil || u.Scheme == "" {
		return databaseURL
	}

	secs := int(math.Ceil(time.Until(deadline).Seconds()))
	if secs < 1 {
		secs = 1
	}

	q := u.Query()
	if existing, err := strconv.Atoi(q.Get("connect_timeout")); err == nil && existing > 0 && existing <= secs {
		return databaseURL
	}
	q.Set("connect_timeout", strconv.Itoa(secs))
	u.RawQuery = q.Encode()
	return u.String()
}
