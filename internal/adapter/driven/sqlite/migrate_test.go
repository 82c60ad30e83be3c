package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, RunMigrations(db.Writer))

	for _, table := range []string{"ledger_entries", "credentials"} {
		var name string
		err := db.Reader.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}
