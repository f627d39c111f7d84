package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// sqliteBackend keeps documents in a local SQLite file via modernc.org/sqlite.
type sqliteBackend struct {
	db *sql.DB
	d  dialect
}

// NewSQLite opens a SQLite database at the given path, configures WAL mode and
// returns a Store backed by it.
func NewSQLite(dsn string) (*DocStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	// A single writer avoids SQLITE_BUSY between the importer and the API.
	db.SetMaxOpenConns(1)
	return newDocStore(&sqliteBackend{db: db, d: sqliteDialect}), nil
}

func (b *sqliteBackend) migrate(ctx context.Context) error {
	for _, stmt := range b.d.migration() {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrap(err, "sqlite: migrate")
		}
	}
	return nil
}

func (b *sqliteBackend) close() error {
	return b.db.Close()
}

func (b *sqliteBackend) put(ctx context.Context, table string, row docRow) error {
	_, err := b.db.ExecContext(ctx, b.d.upsertSQL(table), rowValues(table, row)...)
	return eris.Wrapf(err, "sqlite: put %s %s", table, row.ID)
}

func (b *sqliteBackend) insertMany(ctx context.Context, table string, rows []docRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, b.d.upsertSQL(table))
	if err != nil {
		return eris.Wrapf(err, "sqlite: prepare insert %s", table)
	}
	defer stmt.Close() //nolint:errcheck

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, rowValues(table, row)...); err != nil {
			return eris.Wrapf(err, "sqlite: insert %s %s", table, row.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (b *sqliteBackend) get(ctx context.Context, table, id string) ([]byte, error) {
	var doc []byte
	err := b.db.QueryRowContext(ctx, b.d.getSQL(table), id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get %s %s", table, id)
	}
	return doc, nil
}

func (b *sqliteBackend) find(ctx context.Context, table string, q query) ([][]byte, error) {
	stmt, args := b.d.selectSQL(table, q)
	rows, err := b.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find %s", table)
	}
	defer rows.Close() //nolint:errcheck

	var docs [][]byte
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", table)
		}
		docs = append(docs, doc)
	}
	return docs, eris.Wrapf(rows.Err(), "sqlite: iterate %s", table)
}

func (b *sqliteBackend) count(ctx context.Context, table string, q query) (int, error) {
	stmt, args := b.d.countSQL(table, q)
	var n int
	if err := b.db.QueryRowContext(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, eris.Wrapf(err, "sqlite: count %s", table)
	}
	return n, nil
}

func (b *sqliteBackend) remove(ctx context.Context, table string, q query) (int, error) {
	stmt, args := b.d.deleteSQL(table, q)
	res, err := b.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete %s", table)
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}
