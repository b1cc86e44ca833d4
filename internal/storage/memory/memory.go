// Package memory is an in-process storage.Store. It evaluates queries the
// same way the database backends do and is used by tests and local runs.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/dhishan/family-expense-tracker/internal/storage"
)

type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]storage.Fields
	commits     int
}

func New() *Store {
	return &Store{collections: make(map[string]map[string]storage.Fields)}
}

func (s *Store) Get(_ context.Context, collection, id string) (storage.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.collections[collection][id]
	if !ok {
		return storage.Document{}, storage.ErrNotFound
	}
	return storage.Document{ID: id, Fields: clone(f)}, nil
}

func (s *Store) Set(_ context.Context, collection, id string, fields storage.Fields) (string, error) {
	nf, err := storage.NormalizeFields(fields)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]storage.Fields)
		s.collections[collection] = coll
	}
	coll[id] = nf
	return id, nil
}

func (s *Store) Update(_ context.Context, collection, id string, fields storage.Fields) error {
	nf, err := storage.NormalizeFields(fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(collection, id, nf)
}

func (s *Store) updateLocked(collection, id string, fields storage.Fields) error {
	doc, ok := s.collections[collection][id]
	if !ok {
		return storage.ErrNotFound
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections[collection], id)
	return nil
}

func (s *Store) Query(_ context.Context, q storage.Query) ([]storage.Document, error) {
	q, err := q.Prepare()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	docs := s.matchLocked(q)
	s.mu.RUnlock()

	slices.SortFunc(docs, func(a, b storage.Document) int {
		for _, o := range q.Orders {
			c := compareValues(a.Fields[o.Field], b.Fields[o.Field])
			if o.Direction == storage.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return strings.Compare(a.ID, b.ID)
	})

	if q.Offset >= len(docs) {
		return []storage.Document{}, nil
	}
	docs = docs[q.Offset:]
	if q.Limit > 0 && q.Limit < len(docs) {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

func (s *Store) Count(_ context.Context, q storage.Query) (int, error) {
	q, err := q.Prepare()
	if err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matchLocked(q)), nil
}

func (s *Store) matchLocked(q storage.Query) []storage.Document {
	var docs []storage.Document
	for id, f := range s.collections[q.Collection] {
		if matches(f, q.Filters) {
			docs = append(docs, storage.Document{ID: id, Fields: clone(f)})
		}
	}
	return docs
}

func (s *Store) Batch() storage.Batch {
	return &batch{store: s}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// Commits returns how many batches have been committed.
func (s *Store) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}

type batch struct {
	storage.OpQueue
	store *Store
}

// Commit applies all queued updates or none of them.
func (b *batch) Commit(_ context.Context) error {
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

	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range ops {
		if _, ok := s.collections[op.Collection][op.ID]; !ok {
			return fmt.Errorf("batch update %s/%s: %w", op.Collection, op.ID, storage.ErrNotFound)
		}
	}
	for _, op := range ops {
		_ = s.updateLocked(op.Collection, op.ID, op.Fields)
	}
	s.commits++
	b.Ops = nil
	return nil
}

func matches(f storage.Fields, filters []storage.Filter) bool {
	for _, flt := range filters {
		v, ok := f[flt.Field]
		if !ok || v == nil {
			return false
		}
		if !matchOne(v, flt) {
			return false
		}
	}
	return true
}

func matchOne(v any, flt storage.Filter) bool {
	if flt.Op == storage.Contains {
		s, ok := v.(string)
		return ok && strings.Contains(strings.ToLower(s), strings.ToLower(flt.Value.(string)))
	}
	c, comparable := compareSameType(v, flt.Value)
	if !comparable {
		return false
	}
	switch flt.Op {
	case storage.Eq:
		return c == 0
	case storage.Gte:
		return c >= 0
	case storage.Lte:
		return c <= 0
	case storage.Gt:
		return c > 0
	case storage.Lt:
		return c < 0
	}
	return false
}

func compareSameType(a, b any) (int, bool) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return strings.Compare(av, bv), ok
	case float64:
		bv, ok := b.(float64)
		return cmp.Compare(av, bv), ok
	case bool:
		bv, ok := b.(bool)
		return cmp.Compare(boolRank(av), boolRank(bv)), ok
	}
	return 0, false
}

// compareValues orders mixed values: missing, bool, number, string.
func compareValues(a, b any) int {
	if c, ok := compareSameType(a, b); ok {
		return c
	}
	return cmp.Compare(typeRank(a), typeRank(b))
}

func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func clone(f storage.Fields) storage.Fields {
	b, err := json.Marshal(f)
	if err != nil {
		panic(fmt.Sprintf("memory store holds non-JSON value: %v", err))
	}
	var out storage.Fields
	_ = json.Unmarshal(b, &out)
	return out
}
