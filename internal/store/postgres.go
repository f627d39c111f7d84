package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/bizdir/internal/db"
)

// postgresBackend keeps documents in PostgreSQL JSONB columns.
type postgresBackend struct {
	pool db.Pool
	d    dialect
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a Store backed by a pgx connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*DocStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return NewPostgresWithPool(pool), nil
}

// NewPostgresWithPool wraps an existing pool (or a pgxmock pool in tests).
func NewPostgresWithPool(pool db.Pool) *DocStore {
	return newDocStore(&postgresBackend{pool: pool, d: postgresDialect})
}

func (b *postgresBackend) migrate(ctx context.Context) error {
	for _, stmt := range b.d.migration() {
		if _, err := b.pool.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "postgres: migrate")
		}
	}
	return nil
}

func (b *postgresBackend) close() error {
	b.pool.Close()
	return nil
}

func (b *postgresBackend) put(ctx context.Context, table string, row docRow) error {
	_, err := b.pool.Exec(ctx, b.d.upsertSQL(table), rowValues(table, row)...)
	return eris.Wrapf(err, "postgres: put %s %s", table, row.ID)
}

// insertMany uses COPY; rows must be new documents.
func (b *postgresBackend) insertMany(ctx context.Context, table string, rows []docRow) error {
	values := make([][]any, len(rows))
	for i, row := range rows {
		values[i] = rowValues(table, row)
	}
	_, err := db.CopyFrom(ctx, b.pool, table, columnNames(table), values)
	return eris.Wrapf(err, "postgres: insert %s", table)
}

func (b *postgresBackend) get(ctx context.Context, table, id string) ([]byte, error) {
	var doc []byte
	err := b.pool.QueryRow(ctx, b.d.getSQL(table), id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get %s %s", table, id)
	}
	return doc, nil
}

func (b *postgresBackend) find(ctx context.Context, table string, q query) ([][]byte, error) {
	stmt, args := b.d.selectSQL(table, q)
	rows, err := b.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find %s", table)
	}
	defer rows.Close()

	var docs [][]byte
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", table)
		}
		docs = append(docs, doc)
	}
	return docs, eris.Wrapf(rows.Err(), "postgres: iterate %s", table)
}

func (b *postgresBackend) count(ctx context.Context, table string, q query) (int, error) {
	stmt, args := b.d.countSQL(table, q)
	var n int64
	if err := b.pool.QueryRow(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, eris.Wrapf(err, "postgres: count %s", table)
	}
	return int(n), nil
}

func (b *postgresBackend) remove(ctx context.Context, table string, q query) (int, error) {
	stmt, args := b.d.deleteSQL(table, q)
	tag, err := b.pool.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete %s", table)
	}
	return int(tag.RowsAffected()), nil
}
