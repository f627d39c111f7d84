package store

import (
	"fmt"
	"sort"
	"strings"
)

// Collection names.
const (
	tableBusinesses  = "businesses"
	tableContent     = "business_content"
	tableSources     = "source_records"
	tableBatches     = "import_batches"
	tableValidations = "validation_results"
	tableReviews     = "reviews"
	tableReviewTags  = "review_tags"
	tableCategories  = "categories"
	tableCache       = "cache"
)

// column is an indexed, queryable attribute stored next to a JSON document.
type column struct {
	name    string
	integer bool
}

// tables lists every collection with the columns extracted from its documents.
// Every table also has an id primary key and a doc column.
var tables = map[string][]column{
	tableBusinesses: {
		{name: "slug"},
		{name: "name_key"},
		{name: "import_batch_id"},
		{name: "primary_source"},
		{name: "created_at", integer: true},
	},
	tableContent:     {{name: "business_id"}},
	tableSources:     {{name: "business_id"}, {name: "field"}},
	tableBatches:     {{name: "status"}, {name: "imported_at", integer: true}},
	tableValidations: {{name: "batch_id"}, {name: "started_at", integer: true}},
	tableReviews:     {{name: "business_id"}, {name: "created_at", integer: true}},
	tableReviewTags:  {{name: "business_id"}, {name: "review_id"}},
	tableCategories:  {{name: "slug"}},
	tableCache:       {},
}

// tableNames returns the collection names in a stable order.
func tableNames() []string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// docRow is a document plus its extracted column values.
type docRow struct {
	ID   string
	Cols map[string]any
	Doc  []byte
}

// cond is a single column predicate. op is one of =, !=, <, <=, >, >=.
type cond struct {
	col string
	op  string
	val any
}

// query selects documents from one collection.
type query struct {
	conds   []cond
	orderBy string
	desc    bool
	limit   int
	offset  int
}

func where(conds ...cond) query {
	return query{conds: conds}
}

func eq(col string, val any) cond { return cond{col: col, op: "=", val: val} }

// dialect captures the SQL differences between SQLite and PostgreSQL.
type dialect struct {
	name        string
	placeholder func(n int) string
	docType     string
	textType    string
	intType     string
	// noLimit is the LIMIT value meaning "all rows" when only OFFSET is wanted.
	noLimit string
}

var sqliteDialect = dialect{
	name:        "sqlite",
	placeholder: func(int) string { return "?" },
	docType:     "TEXT",
	textType:    "TEXT",
	intType:     "INTEGER",
	noLimit:     "-1",
}

var postgresDialect = dialect{
	name:        "postgres",
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	docType:     "JSONB",
	textType:    "TEXT",
	intType:     "BIGINT",
	noLimit:     "ALL",
}

// migration returns the DDL creating every collection and its column indexes.
func (d dialect) migration() []string {
	var stmts []string
	for _, name := range tableNames() {
		cols := tables[name]
		var b strings.Builder
		fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n\tid %s PRIMARY KEY", name, d.textType)
		for _, c := range cols {
			typ, def := d.textType, "''"
			if c.integer {
				typ, def = d.intType, "0"
			}
			fmt.Fprintf(&b, ",\n\t%s %s NOT NULL DEFAULT %s", c.name, typ, def)
		}
		fmt.Fprintf(&b, ",\n\tdoc %s NOT NULL\n)", d.docType)
		stmts = append(stmts, b.String())
		for _, c := range cols {
			stmts = append(stmts, fmt.Sprintf(
				"CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)", name, c.name, name, c.name))
		}
	}
	return stmts
}

// columnNames returns the full insert column list for a table: id, extracted columns, doc.
func columnNames(table string) []string {
	names := []string{"id"}
	for _, c := range tables[table] {
		names = append(names, c.name)
	}
	return append(names, "doc")
}

// rowValues orders a docRow's values to match columnNames.
func rowValues(table string, row docRow) []any {
	vals := []any{row.ID}
	for _, c := range tables[table] {
		v, ok := row.Cols[c.name]
		if !ok {
			if c.integer {
				v = int64(0)
			} else {
				v = ""
			}
		}
		vals = append(vals, v)
	}
	return append(vals, row.Doc)
}

// upsertSQL builds an insert that replaces the columns and document on id conflict.
func (d dialect) upsertSQL(table string) string {
	names := columnNames(table)
	ph := make([]string, len(names))
	var sets []string
	for i, n := range names {
		ph[i] = d.placeholder(i + 1)
		if n != "id" {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", n, n))
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s",
		table, strings.Join(names, ", "), strings.Join(ph, ", "), strings.Join(sets, ", "))
}

// whereClause renders predicates starting at placeholder index start.
func (d dialect) whereClause(conds []cond, start int) (string, []any) {
	if len(conds) == 0 {
		return "", nil
	}
	parts := make([]string, len(conds))
	args := make([]any, len(conds))
	for i, c := range conds {
		parts[i] = fmt.Sprintf("%s %s %s", c.col, c.op, d.placeholder(start+i))
		args[i] = c.val
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func (d dialect) selectSQL(table string, q query) (string, []any) {
	w, args := d.whereClause(q.conds, 1)
	sql := "SELECT doc FROM " + table + w
	if q.orderBy != "" {
		dir := "ASC"
		if q.desc {
			dir = "DESC"
		}
		sql += fmt.Sprintf(" ORDER BY %s %s, id %s", q.orderBy, dir, dir)
	}
	switch {
	case q.limit > 0:
		sql += fmt.Sprintf(" LIMIT %d", q.limit)
	case q.offset > 0:
		sql += " LIMIT " + d.noLimit
	}
	if q.offset > 0 {
		sql += fmt.Sprintf(" OFFSET %d", q.offset)
	}
	return sql, args
}

func (d dialect) countSQL(table string, q query) (string, []any) {
	w, args := d.whereClause(q.conds, 1)
	return "SELECT COUNT(*) FROM " + table + w, args
}

func (d dialect) deleteSQL(table string, q query) (string, []any) {
	w, args := d.whereClause(q.conds, 1)
	return "DELETE FROM " + table + w, args
}

func (d dialect) getSQL(table string) string {
	return fmt.Sprintf("SELECT doc FROM %s WHERE id = %s", table, d.placeholder(1))
}
