// Package storage defines the document store the services persist through.
//
// A store holds JSON-shaped documents grouped in collections. Backends live in
// subpackages (memory, sqlite, postgres, mongo) and are selected by
// internal/backend. Services receive a Store explicitly; there is no package
// level client.
package storage

import (
	"context"
	"errors"
)

// MaxBatchWrites is the largest number of operations one Batch may commit.
const MaxBatchWrites = 500

// Collection names used by the application.
const (
	Users         = "users"
	Families      = "families"
	Expenses      = "expenses"
	Budgets       = "budgets"
	Notifications = "notifications"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrBatchTooLarge = errors.New("batch exceeds maximum write count")
	ErrInvalidField  = errors.New("invalid field name")
)

// Fields is the body of a document. Values are JSON-compatible after Normalize.
type Fields map[string]any

// Document is a stored document and its id.
type Document struct {
	ID     string
	Fields Fields
}

// Store is the document store collaborator.
type Store interface {
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Set writes a full document. An empty id allocates a new one.
	Set(ctx context.Context, collection, id string, fields Fields) (string, error)
	// Update merges fields into an existing document or returns ErrNotFound.
	Update(ctx context.Context, collection, id string, fields Fields) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, q Query) ([]Document, error)
	// Count ignores ordering, offset and limit.
	Count(ctx context.Context, q Query) (int, error)
	Batch() Batch
	Ping(ctx context.Context) error
	Close() error
}

// Batch queues updates and applies them atomically on Commit.
type Batch interface {
	Update(collection, id string, fields Fields)
	Len() int
	Commit(ctx context.Context) error
}

// BatchOp is one queued batch update; backends share it.
type BatchOp struct {
	Collection string
	ID         string
	Fields     Fields
}

// OpQueue is embedded by backend batches to track queued operations.
type OpQueue struct {
	Ops []BatchOp
}

func (q *OpQueue) Update(collection, id string, fields Fields) {
	q.Ops = append(q.Ops, BatchOp{Collection: collection, ID: id, Fields: fields})
}

func (q *OpQueue) Len() int {
	return len(q.Ops)
}

// Check returns ErrBatchTooLarge when more than MaxBatchWrites ops are queued.
func (q *OpQueue) Check() error {
	if len(q.Ops) > MaxBatchWrites {
		return ErrBatchTooLarge
	}
	return nil
}
