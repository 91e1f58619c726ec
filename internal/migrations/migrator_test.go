package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	names, err := fs.Glob(files, "sql/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, name := range names {
		base := strings.TrimPrefix(name, "sql/")
		switch {
		case strings.HasSuffix(base, ".up.sql"):
			ups[strings.TrimSuffix(base, ".up.sql")] = true
		case strings.HasSuffix(base, ".down.sql"):
			downs[strings.TrimSuffix(base, ".down.sql")] = true
		default:
			t.Errorf("unexpected migration file %s", name)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestEmbeddedSchemaCreatesTables(t *testing.T) {
	for _, tc := range []struct{ file, table string }{
		{"sql/000001_create_snapshots.up.sql", "snapshots"},
		{"sql/000002_create_preview_jobs.up.sql", "preview_jobs"},
	} {
		body, err := fs.ReadFile(files, tc.file)
		require.NoError(t, err)
		assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS "+tc.table)
	}
}

func TestNewMigrator_RequiresDatabase(t *testing.T) {
	_, err := NewMigrator("")
	assert.Error(t, err)
	assert.Error(t, Up(""))
	assert.Error(t, Force("", "1"))
	assert.Error(t, Drop(""))

	err = Reset("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is not configured")
}

func TestForce_InvalidVersion(t *testing.T) {
	err := Force("postgres://localhost/none", "one")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid version format")
}
