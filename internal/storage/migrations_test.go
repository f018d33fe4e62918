package storage

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRunner() *MigrationRunner {
	mr := NewMigrationRunner("sqlite3")
	mr.fsys = fstest.MapFS{
		"migrations/sqlite3/0001_init.up.sql":     {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"migrations/sqlite3/0001_init.down.sql":   {Data: []byte("DROP TABLE a;")},
		"migrations/sqlite3/0002_more.up.sql":     {Data: []byte("CREATE TABLE b (id INTEGER);")},
		"migrations/sqlite3/0002_more.down.sql":   {Data: []byte("DROP TABLE b;")},
		"migrations/sqlite3/0003_last.up.sql":     {Data: []byte("CREATE TABLE c (id INTEGER);")},
		"migrations/sqlite3/0003_last.down.sql":   {Data: []byte("DROP TABLE c;")},
		"migrations/sqlite3/README.md":            {Data: []byte("not a migration")},
		"migrations/sqlite3/04_bad_name.up.sql":   {Data: []byte("SELECT 1;")},
		"migrations/sqlite3/0004_noext.up.sqlite": {Data: []byte("SELECT 1;")},
	}
	return mr
}

func TestLatestVersion(t *testing.T) {
	v, err := testRunner().LatestVersion()
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestLoadMigrationsUp(t *testing.T) {
	ms, err := testRunner().LoadMigrations(1, -1)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, 2, ms[0].Version)
	assert.Equal(t, "more", ms[0].Name)
	assert.True(t, ms[0].Up)
	assert.Equal(t, 3, ms[1].Version)
}

func TestLoadMigrationsDown(t *testing.T) {
	ms, err := testRunner().LoadMigrations(3, 1)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, 3, ms[0].Version)
	assert.Equal(t, 2, ms[1].Version)
	assert.False(t, ms[0].Up)
}

func TestLoadMigrationsSameVersion(t *testing.T) {
	_, err := testRunner().LoadMigrations(3, -1)
	assert.ErrorIs(t, err, ErrMigrateCurrentVersionSameAsTarget)
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := NewMigrationRunner("postgres").LatestVersion()
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestEmbeddedMigrationsParse(t *testing.T) {
	ms, err := NewMigrationRunner("sqlite3").LoadMigrations(0, -1)
	require.NoError(t, err)
	require.NotEmpty(t, ms)
	assert.Equal(t, 1, ms[0].Version)
	assert.Contains(t, ms[0].SQL, "CREATE TABLE IF NOT EXISTS devices")
}
