// Package postgres stores documents in a JSONB table through a pgx pool.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/dhishan/family-expense-tracker/internal/storage"
	"github.com/dhishan/family-expense-tracker/internal/storage/sqldoc"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL and applies migrations.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := RunMigrations(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("Postgres document store ready", "max_conns", pool.Config().MaxConns)
	return &Store{pool: pool}, nil
}

// NewFromPool wraps an existing pool without running migrations.
func NewFromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func RunMigrations(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("create pgx driver: %w", err)
	}

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	var f storage.Fields
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`, collection, id).Scan(&f)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.Document{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return storage.Document{ID: id, Fields: f}, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, fields storage.Fields) (string, error) {
	data, err := marshalFields(fields)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.NewString()
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data`,
		collection, id, data)
	if err != nil {
		return "", fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return id, nil
}

// jsonb || jsonb replaces top-level keys, which is the Update contract.
const mergeSQL = `UPDATE documents SET data = data || $3::jsonb WHERE collection = $1 AND id = $2`

func (s *Store) Update(ctx context.Context, collection, id string, fields storage.Fields) error {
	data, err := marshalFields(fields)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, mergeSQL, collection, id, data)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, q storage.Query) ([]storage.Document, error) {
	q, err := q.Prepare()
	if err != nil {
		return nil, err
	}
	stmt := sqldoc.Select(dialect{}, q)

	rows, err := s.pool.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.Document, error) {
		var doc storage.Document
		err := row.Scan(&doc.ID, &doc.Fields)
		return doc, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", q.Collection, err)
	}
	if docs == nil {
		docs = []storage.Document{}
	}
	return docs, nil
}

func (s *Store) Count(ctx context.Context, q storage.Query) (int, error) {
	q, err := q.Prepare()
	if err != nil {
		return 0, err
	}
	stmt := sqldoc.Count(dialect{}, q)

	var n int
	if err := s.pool.QueryRow(ctx, stmt.SQL, stmt.Args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", q.Collection, err)
	}
	return n, nil
}

func (s *Store) Batch() storage.Batch {
	return &batch{store: s}
}

type batch struct {
	storage.OpQueue
	store *Store
}

func (b *batch) Commit(ctx context.Context) error {
	if err := b.Check(); err != nil {
		return err
	}
	err := pgx.BeginFunc(ctx, b.store.pool, func(tx pgx.Tx) error {
		for _, op := range b.Ops {
			data, err := marshalFields(op.Fields)
			if err != nil {
				return err
			}
			tag, err := tx.Exec(ctx, mergeSQL, op.Collection, op.ID, data)
			if err != nil {
				return fmt.Errorf("batch update %s/%s: %w", op.Collection, op.ID, err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("batch update %s/%s: %w", op.Collection, op.ID, storage.ErrNotFound)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.Ops = nil
	return nil
}

func marshalFields(fields storage.Fields) (string, error) {
	nf, err := storage.NormalizeFields(fields)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(nf)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	return string(data), nil
}
