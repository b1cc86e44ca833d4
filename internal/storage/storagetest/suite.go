// Package storagetest holds the behaviour every storage.Store backend must share.
package storagetest

import (
	"context"
	"fmt"

	"github.com/stretchr/testify/suite"

	"github.com/dhishan/family-expense-tracker/internal/storage"
)

// Suite runs against a fresh store per test. Backends embed it and set NewStore.
type Suite struct {
	suite.Suite
	NewStore func() storage.Store

	store storage.Store
	ctx   context.Context
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.NewStore()
}

func (s *Suite) TearDownTest() {
	if s.store != nil {
		s.Require().NoError(s.store.Close())
	}
}

func (s *Suite) seedExpenses() {
	rows := []struct {
		id, family, date, category, desc string
		amount                           float64
	}{
		{"e1", "fam-a", "2024-03-01", "groceries", "Weekly SHOP", 40},
		{"e2", "fam-a", "2024-03-15", "dining", "Pizza night", 25.5},
		{"e3", "fam-a", "2024-03-15", "groceries", "Corner shop", 12},
		{"e4", "fam-a", "2024-03-31", "travel", "Train", 99.99},
		{"e5", "fam-b", "2024-03-10", "groceries", "Other family", 500},
	}
	for _, r := range rows {
		_, err := s.store.Set(s.ctx, storage.Expenses, r.id, storage.Fields{
			"family_id":   r.family,
			"date":        r.date,
			"category":    r.category,
			"description": r.desc,
			"amount":      r.amount,
			"read":        false,
		})
		s.Require().NoError(err)
	}
}

func ids(docs []storage.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func (s *Suite) TestSetGetUpdateDelete() {
	id, err := s.store.Set(s.ctx, storage.Budgets, "", storage.Fields{"name": "Food", "amount": 500.0, "category": nil})
	s.Require().NoError(err)
	s.NotEmpty(id)

	doc, err := s.store.Get(s.ctx, storage.Budgets, id)
	s.Require().NoError(err)
	s.Equal("Food", doc.Fields["name"])
	s.Equal(500.0, doc.Fields["amount"])

	s.Require().NoError(s.store.Update(s.ctx, storage.Budgets, id, storage.Fields{"amount": 650.0}))
	doc, err = s.store.Get(s.ctx, storage.Budgets, id)
	s.Require().NoError(err)
	s.Equal(650.0, doc.Fields["amount"])
	s.Equal("Food", doc.Fields["name"])

	s.Require().NoError(s.store.Delete(s.ctx, storage.Budgets, id))
	_, err = s.store.Get(s.ctx, storage.Budgets, id)
	s.ErrorIs(err, storage.ErrNotFound)

	s.NoError(s.store.Delete(s.ctx, storage.Budgets, id), "delete is idempotent")
}

func (s *Suite) TestUpdateMissing() {
	err := s.store.Update(s.ctx, storage.Budgets, "missing", storage.Fields{"amount": 1.0})
	s.ErrorIs(err, storage.ErrNotFound)
}

func (s *Suite) TestSetReplaces() {
	_, err := s.store.Set(s.ctx, storage.Users, "u1", storage.Fields{"email": "a@x.io", "family_id": "f1"})
	s.Require().NoError(err)
	_, err = s.store.Set(s.ctx, storage.Users, "u1", storage.Fields{"email": "b@x.io"})
	s.Require().NoError(err)

	doc, err := s.store.Get(s.ctx, storage.Users, "u1")
	s.Require().NoError(err)
	s.Equal("b@x.io", doc.Fields["email"])
	s.Nil(doc.Fields["family_id"])
}

func (s *Suite) TestQueryFiltersAndOrder() {
	s.seedExpenses()

	q := storage.From(storage.Expenses).
		Where("family_id", storage.Eq, "fam-a").
		OrderBy("date", storage.Desc)
	docs, err := s.store.Query(s.ctx, q)
	s.Require().NoError(err)
	s.Equal([]string{"e4", "e2", "e3", "e1"}, ids(docs), "ties broken by id")

	docs, err = s.store.Query(s.ctx, q.
		Where("date", storage.Gte, "2024-03-15").
		Where("date", storage.Lte, "2024-03-15"))
	s.Require().NoError(err)
	s.Equal([]string{"e2", "e3"}, ids(docs))

	docs, err = s.store.Query(s.ctx, q.Where("amount", storage.Gte, 25.5).Where("amount", storage.Lt, 99.99))
	s.Require().NoError(err)
	s.Equal([]string{"e2", "e1"}, ids(docs))

	docs, err = s.store.Query(s.ctx, q.Where("description", storage.Contains, "shop"))
	s.Require().NoError(err)
	s.Equal([]string{"e3", "e1"}, ids(docs))

	docs, err = s.store.Query(s.ctx, q.Where("read", storage.Eq, false).Where("category", storage.Eq, "groceries"))
	s.Require().NoError(err)
	s.Equal([]string{"e3", "e1"}, ids(docs))
}

func (s *Suite) TestQueryPaginationAndCount() {
	s.seedExpenses()

	q := storage.From(storage.Expenses).
		Where("family_id", storage.Eq, "fam-a").
		OrderBy("date", storage.Desc)

	n, err := s.store.Count(s.ctx, q.WithOffset(2).WithLimit(1))
	s.Require().NoError(err)
	s.Equal(4, n, "count ignores pagination")

	docs, err := s.store.Query(s.ctx, q.WithOffset(1).WithLimit(2))
	s.Require().NoError(err)
	s.Equal([]string{"e2", "e3"}, ids(docs))

	docs, err = s.store.Query(s.ctx, q.WithOffset(10))
	s.Require().NoError(err)
	s.Empty(docs)
}

func (s *Suite) TestQueryRejectsBadField() {
	_, err := s.store.Query(s.ctx, storage.From(storage.Expenses).Where("amount; DROP", storage.Eq, 1))
	s.ErrorIs(err, storage.ErrInvalidField)
}

func (s *Suite) TestBatchCommit() {
	for i := 0; i < 3; i++ {
		_, err := s.store.Set(s.ctx, storage.Notifications, fmt.Sprintf("n%d", i), storage.Fields{"user_id": "u1", "read": false})
		s.Require().NoError(err)
	}

	b := s.store.Batch()
	for i := 0; i < 3; i++ {
		b.Update(storage.Notifications, fmt.Sprintf("n%d", i), storage.Fields{"read": true})
	}
	s.Equal(3, b.Len())
	s.Require().NoError(b.Commit(s.ctx))

	n, err := s.store.Count(s.ctx, storage.From(storage.Notifications).Where("read", storage.Eq, true))
	s.Require().NoError(err)
	s.Equal(3, n)
}

func (s *Suite) TestBatchTooLarge() {
	b := s.store.Batch()
	for i := 0; i <= storage.MaxBatchWrites; i++ {
		b.Update(storage.Notifications, fmt.Sprintf("n%d", i), storage.Fields{"read": true})
	}
	s.ErrorIs(b.Commit(s.ctx), storage.ErrBatchTooLarge)
}
