// Package sqlite stores documents as JSON text in a single SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dhishan/family-expense-tracker/internal/storage"
	"github.com/dhishan/family-expense-tracker/internal/storage/sqldoc"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; read-modify-write updates run in transactions.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("SQLite document store ready", "path", dbPath)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Document{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return decodeRow(id, raw)
}

func (s *Store) Set(ctx context.Context, collection, id string, fields storage.Fields) (string, error) {
	nf, err := storage.NormalizeFields(fields)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(nf)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	if id == "" {
		id = uuid.NewString()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data`,
		collection, id, string(data))
	if err != nil {
		return "", fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields storage.Fields) error {
	nf, err := storage.NormalizeFields(fields)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return mergeInTx(ctx, tx, storage.BatchOp{Collection: collection, ID: id, Fields: nf})
	})
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
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

	rows, err := s.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	docs := []storage.Document{}
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Collection, err)
		}
		doc, err := decodeRow(id, raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) Count(ctx context.Context, q storage.Query) (int, error) {
	q, err := q.Prepare()
	if err != nil {
		return 0, err
	}
	stmt := sqldoc.Count(dialect{}, q)

	var n int
	if err := s.db.QueryRowContext(ctx, stmt.SQL, stmt.Args...).Scan(&n); err != nil {
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
	ops := make([]storage.BatchOp, len(b.Ops))
	for i, op := range b.Ops {
		nf, err := storage.NormalizeFields(op.Fields)
		if err != nil {
			return err
		}
		ops[i] = storage.BatchOp{Collection: op.Collection, ID: op.ID, Fields: nf}
	}

	err := b.store.inTx(ctx, func(tx *sql.Tx) error {
		for _, op := range ops {
			if err := mergeInTx(ctx, tx, op); err != nil {
				return err
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

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// mergeInTx replaces top-level keys of an existing document.
func mergeInTx(ctx context.Context, tx *sql.Tx, op storage.BatchOp) error {
	var raw string
	err := tx.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, op.Collection, op.ID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update %s/%s: %w", op.Collection, op.ID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", op.Collection, op.ID, err)
	}

	var current storage.Fields
	if err := json.Unmarshal([]byte(raw), &current); err != nil {
		return fmt.Errorf("decode %s/%s: %w", op.Collection, op.ID, err)
	}
	for k, v := range op.Fields {
		current[k] = v
	}
	data, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE documents SET data = ? WHERE collection = ? AND id = ?`, string(data), op.Collection, op.ID)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", op.Collection, op.ID, err)
	}
	return nil
}

func decodeRow(id, raw string) (storage.Document, error) {
	var f storage.Fields
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return storage.Document{}, fmt.Errorf("decode document %s: %w", id, err)
	}
	return storage.Document{ID: id, Fields: f}, nil
}
