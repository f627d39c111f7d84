package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigration_CoversEveryTable(t *testing.T) {
	stmts := sqliteDialect.migration()
	for name, cols := range tables {
		var found bool
		for _, s := range stmts {
			if strings.HasPrefix(s, "CREATE TABLE IF NOT EXISTS "+name+" (") {
				found = true
				assert.Contains(t, s, "doc TEXT NOT NULL")
			}
		}
		assert.True(t, found, "missing table %s", name)
		for _, c := range cols {
			assert.Contains(t, stmts, "CREATE INDEX IF NOT EXISTS idx_"+name+"_"+c.name+" ON "+name+"("+c.name+")")
		}
	}
}

func TestMigration_PostgresTypes(t *testing.T) {
	stmts := postgresDialect.migration()
	joined := strings.Join(stmts, "\n")
	assert.Contains(t, joined, "doc JSONB NOT NULL")
	assert.Contains(t, joined, "created_at BIGINT NOT NULL DEFAULT 0")
}

func TestUpsertSQL(t *testing.T) {
	got := postgresDialect.upsertSQL(tableSources)
	assert.Equal(t,
		"INSERT INTO source_records (id, business_id, field, doc) VALUES ($1, $2, $3, $4) "+
			"ON CONFLICT (id) DO UPDATE SET business_id = excluded.business_id, field = excluded.field, doc = excluded.doc",
		got)
}

func TestRowValues_Defaults(t *testing.T) {
	vals := rowValues(tableBatches, docRow{ID: "x", Doc: []byte("{}")})
	require.Len(t, vals, 4)
	assert.Equal(t, "x", vals[0])
	assert.Equal(t, "", vals[1])
	assert.Equal(t, int64(0), vals[2])
}

func TestSelectSQL(t *testing.T) {
	q := where(eq("business_id", "b1"), cond{col: "created_at", op: ">=", val: int64(5)})
	q.orderBy, q.desc, q.limit, q.offset = "created_at", true, 10, 20

	stmt, args := sqliteDialect.selectSQL(tableReviews, q)
	assert.Equal(t, "SELECT doc FROM reviews WHERE business_id = ? AND created_at >= ? ORDER BY created_at DESC, id DESC LIMIT 10 OFFSET 20", stmt)
	assert.Equal(t, []any{"b1", int64(5)}, args)

	stmt, _ = postgresDialect.selectSQL(tableReviews, query{offset: 3})
	assert.Equal(t, "SELECT doc FROM reviews LIMIT ALL OFFSET 3", stmt)
}

func TestCountAndDeleteSQL(t *testing.T) {
	stmt, args := postgresDialect.countSQL(tableBatches, where(eq("status", "pending")))
	assert.Equal(t, "SELECT COUNT(*) FROM import_batches WHERE status = $1", stmt)
	assert.Equal(t, []any{"pending"}, args)

	stmt, _ = sqliteDialect.deleteSQL(tableBatches, query{})
	assert.Equal(t, "DELETE FROM import_batches", stmt)
}
