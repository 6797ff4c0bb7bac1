package migrations

import (
	"io/fs"
	"net/url"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedSetsArePaired(t *testing.T) {
	for _, set := range []Set{Study, Users} {
		t.Run(set.Dir, func(t *testing.T) {
			entries, err := fs.ReadDir(files, set.Dir)
			require.NoError(t, err)
			require.NotEmpty(t, entries)
			assert.Zero(t, len(entries)%2, "every up migration needs a down migration")

			src, err := iofs.New(files, set.Dir)
			require.NoError(t, err)
			defer src.Close()

			first, err := src.First()
			require.NoError(t, err)
			assert.Equal(t, uint(1), first)
		})
	}
}

func TestWithMigrationsTable(t *testing.T) {
	target, err := withMigrationsTable("postgres://study:secret@db:5432/study?sslmode=disable", Users.Table)
	require.NoError(t, err)

	u, err := url.Parse(target)
	require.NoError(t, err)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
	assert.Equal(t, "schema_migrations_users", u.Query().Get("x-migrations-table"))
	assert.Equal(t, "db:5432", u.Host)
}
