// Package migrations embeds the schema of the study and user stores and
// applies it with golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed study/*.sql users/*.sql
var files embed.FS

// Set names one directory of migrations and the table tracking it. The two
// sets may share a database, so each keeps its own version table.
type Set struct {
	Dir   string
	Table string
}

var (
	Study = Set{Dir: "study", Table: "schema_migrations_study"}
	Users = Set{Dir: "users", Table: "schema_migrations_users"}
)

// Up applies every pending migration of set to the database at databaseURL
func Up(databaseURL string, set Set, logger *slog.Logger) error {
	m, err := newMigrate(databaseURL, set)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply %s migrations: %w", set.Dir, err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read %s schema version: %w", set.Dir, err)
	}
	logger.Info("Database schema is up to date",
		"set", set.Dir,
		"version", version,
		"dirty", dirty)
	return nil
}

func newMigrate(databaseURL string, set Set) (*migrate.Migrate, error) {
	src, err := iofs.New(files, set.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s migrations: %w", set.Dir, err)
	}

	target, err := withMigrationsTable(databaseURL, set.Table)
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, target)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s migrations: %w", set.Dir, err)
	}
	return m, nil
}

// withMigrationsTable points the postgres driver at a set-specific version table
func withMigrationsTable(databaseURL, table string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid database url: %w", err)
	}
	q := u.Query()
	q.Set("x-migrations-table", table)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
