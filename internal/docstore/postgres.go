package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second

	pgUndefinedTable = "42P01"
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS documents (
		name       TEXT PRIMARY KEY,
		body       JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// OpenPostgres opens a database/sql pool on the pgx driver and makes sure
// the documents table exists.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	err = withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := db.ExecContext(ctx, schemaSQL)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure documents table: %w", err)
	}
	return db, nil
}

// PostgresRepository stores the collection as one JSONB row keyed by name.
// Save is a single upsert, so the replace is atomic.
type PostgresRepository[T any] struct {
	db   *sql.DB
	name string
}

func NewPostgresRepository[T any](db *sql.DB, name string) *PostgresRepository[T] {
	return &PostgresRepository[T]{db: db, name: name}
}

func (r *PostgresRepository[T]) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return r.db.PingContext(ctx)
	})
}

func (r *PostgresRepository[T]) Load(ctx context.Context) ([]T, bool, error) {
	var raw []byte

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return r.db.QueryRowContext(ctx, `
			SELECT body
			FROM documents
			WHERE name = $1
		`, r.name).Scan(&raw)
	})

	if errors.Is(err, sql.ErrNoRows) || isUndefinedTable(err) {
		return []T{}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: load %q: %v", ErrIO, r.name, err)
	}

	records, err := decodeDocument[T](raw)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %q: %v", ErrCorrupt, r.name, err)
	}
	return records, true, nil
}

func (r *PostgresRepository[T]) Save(ctx context.Context, records []T) error {
	data, err := encodeDocument(records)
	if err != nil {
		return fmt.Errorf("%w: encode %q: %v", ErrIO, r.name, err)
	}

	err = withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO documents (name, body, updated_at)
			VALUES ($1, $2::jsonb, now())
			ON CONFLICT (name) DO UPDATE
			SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at
		`, r.name, string(data))
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: save %q: %v", ErrIO, r.name, err)
	}
	return nil
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable
}
