package postgres

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFS_PairsUpAndDown(t *testing.T) {
	up, err := fs.Glob(migrationFS, "migrations/*.up.sql")
	require.NoError(t, err)
	down, err := fs.Glob(migrationFS, "migrations/*.down.sql")
	require.NoError(t, err)

	require.NotEmpty(t, up)
	assert.Len(t, down, len(up))
}

func TestMigrationFS_CreatesHistoryTable(t *testing.T) {
	data, err := fs.ReadFile(migrationFS, "migrations/000001_create_benchmark_history.up.sql")
	require.NoError(t, err)

	assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS benchmark_history")
	assert.Contains(t, string(data), "PRIMARY KEY (benchmark, date, platform)")
}
