package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := MigrationSource("").FindMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	first := migrations[0]
	assert.Equal(t, "0001_init.sql", first.Id)

	up := strings.Join(first.Up, "\n")
	for _, table := range []string{"meetings", "transcripts", "action_items", "knowledge_nodes", "knowledge_edges"} {
		assert.Contains(t, up, "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Contains(t, up, "uq_knowledge_node UNIQUE (organization_id, name, node_type)")
	assert.Contains(t, up, "uq_knowledge_edge UNIQUE (source_node_id, target_node_id, edge_type)")
	assert.NotEmpty(t, first.Down)
}

func TestFileMigrationSource(t *testing.T) {
	migrations, err := MigrationSource("migrations").FindMigrations()
	require.NoError(t, err)
	assert.Len(t, migrations, 1)
}
