package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE a (id INT);\n\n  CREATE INDEX i ON a (id) ;\n;\n")
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE INDEX i ON a (id)"}, got)
	assert.Empty(t, splitStatements(" \n ; "))
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	require.NoError(t, err)
	require.Equal(t, []string{"migrations/0001_events.sql", "migrations/0002_tickets.sql"}, names)

	tickets, err := migrationFiles.ReadFile("migrations/0002_tickets.sql")
	require.NoError(t, err)
	body := string(tickets)
	assert.Contains(t, body, "UNIQUE")
	assert.Contains(t, body, "validation_token")
	for _, stmt := range splitStatements(body) {
		assert.NotContains(t, strings.ToUpper(stmt), "DROP ")
	}
}
