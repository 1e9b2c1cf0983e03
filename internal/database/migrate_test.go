package database_test

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountforge/internal/database"
	"accountforge/migrations"
)

func TestLoadMigrationsOrdersAndFilters(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_second.up.sql":  {Data: []byte("SELECT 2;")},
		"0001_first.up.sql":   {Data: []byte("SELECT 1;")},
		"0001_first.down.sql": {Data: []byte("SELECT 0;")},
		"README.md":           {Data: []byte("notes")},
	}

	got, err := database.LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "0001_first", got[0].Version)
	assert.Equal(t, "0002_second", got[1].Version)
	assert.Equal(t, "SELECT 1;", got[0].SQL)
	assert.Len(t, got[0].Checksum, 64)
	assert.NotEqual(t, got[0].Checksum, got[1].Checksum)
}

func TestEmbeddedMigrations(t *testing.T) {
	got, err := database.LoadMigrations(migrations.FS)
	require.NoError(t, err)

	versions := make([]string, 0, len(got))
	for _, m := range got {
		versions = append(versions, m.Version)
	}
	assert.Equal(t, []string{"0001_create_users", "0002_add_profile_fields", "0003_create_audit_logs", "0004_widen_email"}, versions)
}
