package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/dhishan/family-expense-tracker/internal/storage"
	"github.com/dhishan/family-expense-tracker/internal/storage/storagetest"
)

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &storagetest.Suite{
		NewStore: func() storage.Store { return New() },
	})
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.Set(ctx, storage.Families, "f1", storage.Fields{"categories": []string{"a", "b"}})
	require.NoError(t, err)

	doc, err := s.Get(ctx, storage.Families, "f1")
	require.NoError(t, err)
	doc.Fields["categories"] = "mutated"

	doc, err = s.Get(ctx, storage.Families, "f1")
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, doc.Fields["categories"])
}

func TestBatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.Set(ctx, storage.Notifications, "n1", storage.Fields{"read": false})
	require.NoError(t, err)

	b := s.Batch()
	b.Update(storage.Notifications, "n1", storage.Fields{"read": true})
	b.Update(storage.Notifications, "missing", storage.Fields{"read": true})
	require.ErrorIs(t, b.Commit(ctx), storage.ErrNotFound)

	doc, err := s.Get(ctx, storage.Notifications, "n1")
	require.NoError(t, err)
	assert.Equal(t, false, doc.Fields["read"])
	assert.Equal(t, 0, s.Commits())
}

func TestMixedTypesDoNotMatch(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.Set(ctx, storage.Expenses, "e1", storage.Fields{"amount": "12"})
	require.NoError(t, err)

	docs, err := s.Query(ctx, storage.From(storage.Expenses).Where("amount", storage.Gte, 1.0))
	require.NoError(t, err)
	assert.Empty(t, docs)
}
