package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dhishan/family-expense-tracker/internal/core"
	"github.com/dhishan/family-expense-tracker/internal/storage"
)

// Services bundles the application services over one store.
type Services struct {
	Users         *UserService
	Families      *FamilyService
	Expenses      *ExpenseService
	Budgets       *BudgetService
	Notifications *NotificationService
	Alerts        *AlertHook
}

// New wires the services together. publisher may be nil.
func New(store storage.Store, publisher NotificationPublisher, clock Clock) *Services {
	if clock == nil {
		clock = SystemClock
	}
	users := NewUserService(store, clock)
	notifications := NewNotificationService(store, publisher, clock)
	families := NewFamilyService(store, users, notifications, clock)
	expenses := NewExpenseService(store, families, clock)
	budgets := NewBudgetService(store, expenses, clock)
	alerts := NewAlertHook(budgets, users, notifications)
	expenses.OnCreated(alerts)

	return &Services{
		Users:         users,
		Families:      families,
		Expenses:      expenses,
		Budgets:       budgets,
		Notifications: notifications,
		Alerts:        alerts,
	}
}

// load fetches and decodes one document. Missing documents map to core.NotFound(entity).
func load(ctx context.Context, store storage.Store, collection, id, entity string, v any) error {
	if id == "" {
		return core.NotFound(entity)
	}
	doc, err := store.Get(ctx, collection, id)
	if errors.Is(err, storage.ErrNotFound) {
		return core.NotFound(entity)
	}
	if err != nil {
		return core.Upstream("get "+entity, err)
	}
	if err := doc.Decode(v); err != nil {
		return core.Upstream("decode "+entity, err)
	}
	return nil
}

// save encodes v and writes it under id, allocating an id when empty.
func save(ctx context.Context, store storage.Store, collection, id, entity string, v any) (string, error) {
	fields, err := storage.Encode(v)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", entity, err)
	}
	newID, err := store.Set(ctx, collection, id, fields)
	if err != nil {
		return "", core.Upstream("save "+entity, err)
	}
	return newID, nil
}

// queryAll runs q and decodes every result into a T.
func queryAll[T any](ctx context.Context, store storage.Store, q storage.Query, entity string) ([]T, error) {
	docs, err := store.Query(ctx, q)
	if err != nil {
		return nil, core.Upstream("query "+entity, err)
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := doc.Decode(&v); err != nil {
			return nil, core.Upstream("decode "+entity, err)
		}
		out = append(out, v)
	}
	return out, nil
}
