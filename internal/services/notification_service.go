package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dhishan/family-expense-tracker/internal/core"
	"github.com/dhishan/family-expense-tracker/internal/storage"
)

const (
	DefaultNotificationLimit = 50
	MaxNotificationLimit     = 100
)

// NotificationPublisher forwards stored notifications to out-of-process delivery.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, n core.Notification) error
}

// NotificationService stores per-user notifications and publishes them for delivery.
type NotificationService struct {
	store     storage.Store
	publisher NotificationPublisher
	clock     Clock
}

func NewNotificationService(store storage.Store, publisher NotificationPublisher, clock Clock) *NotificationService {
	return &NotificationService{store: store, publisher: publisher, clock: clock}
}

// Create stores an unread notification and publishes it. Publish failures are logged only.
func (s *NotificationService) Create(ctx context.Context, n core.Notification) (core.Notification, error) {
	n.ID = ""
	n.Read = false
	n.CreatedAt = s.clock.Now()

	id, err := save(ctx, s.store, storage.Notifications, "", "notification", n)
	if err != nil {
		return core.Notification{}, err
	}
	n.ID = id

	if err := s.publish(ctx, n); err != nil {
		slog.ErrorContext(ctx, "Failed to publish notification",
			"notification_id", n.ID, "user_id", n.UserID, "error", err)
	}
	return n, nil
}

func (s *NotificationService) publish(ctx context.Context, n core.Notification) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "Notification publisher not available, skipping publish")
		return nil
	}
	return s.publisher.PublishNotification(ctx, n)
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]core.Notification, error) {
	if limit == 0 {
		limit = DefaultNotificationLimit
	}
	if limit < 1 || limit > MaxNotificationLimit {
		return nil, core.Invalid("limit must be between 1 and %d", MaxNotificationLimit)
	}
	q := s.userQuery(userID, unreadOnly).
		OrderBy("created_at", storage.Desc).
		WithLimit(limit)
	return queryAll[core.Notification](ctx, s.store, q, "notifications")
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	n, err := s.store.Count(ctx, s.userQuery(userID, true))
	if err != nil {
		return 0, core.Upstream("count notifications", err)
	}
	return n, nil
}

func (s *NotificationService) userQuery(userID string, unreadOnly bool) storage.Query {
	q := storage.From(storage.Notifications).Where("user_id", storage.Eq, userID)
	if unreadOnly {
		q = q.Where("read", storage.Eq, false)
	}
	return q
}

// MarkRead marks one of the user's notifications read. Other users'
// notifications are reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	var n core.Notification
	if err := load(ctx, s.store, storage.Notifications, id, "notification", &n); err != nil {
		return err
	}
	if n.UserID != userID {
		return core.NotFound("notification")
	}
	err := s.store.Update(ctx, storage.Notifications, id, storage.Fields{"read": true})
	if errors.Is(err, storage.ErrNotFound) {
		return core.NotFound("notification")
	}
	return core.Upstream("mark notification read", err)
}

// MarkAllRead marks every unread notification of the user read, committing
// in batches of storage.MaxBatchWrites. It returns the number marked.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	docs, err := s.store.Query(ctx, s.userQuery(userID, true))
	if err != nil {
		return 0, core.Upstream("query unread notifications", err)
	}

	marked := 0
	for start := 0; start < len(docs); start += storage.MaxBatchWrites {
		end := min(start+storage.MaxBatchWrites, len(docs))
		batch := s.store.Batch()
		for _, doc := range docs[start:end] {
			batch.Update(storage.Notifications, doc.ID, storage.Fields{"read": true})
		}
		if err := batch.Commit(ctx); err != nil {
			return marked, core.Upstream("commit read batch", err)
		}
		marked += end - start
	}
	return marked, nil
}

// AlertText renders the title and message of a budget alert.
func AlertText(st core.BudgetStatus, kind core.AlertKind) (core.NotificationType, string, string) {
	if kind == core.AlertExceeded {
		return core.NotificationBudgetExceeded,
			"Budget Exceeded: " + st.Budget.Name,
			fmt.Sprintf("You've spent $%.2f of your $%.2f budget (%.1f%%)", st.Spent, st.Budget.Amount, st.PercentageUsed)
	}
	return core.NotificationBudgetWarning,
		"Budget Warning: " + st.Budget.Name,
		fmt.Sprintf("You've used %.1f%% of your $%.2f budget", st.PercentageUsed, st.Budget.Amount)
}

// CreateBudgetAlert stores one alert notification per recipient. Every
// recipient is attempted; failures are joined into the returned error.
func (s *NotificationService) CreateBudgetAlert(ctx context.Context, st core.BudgetStatus, kind core.AlertKind, recipients []string) ([]core.Notification, error) {
	typ, title, message := AlertText(st, kind)
	budgetID := st.Budget.ID

	created := make([]core.Notification, 0, len(recipients))
	var errs []error
	for _, userID := range recipients {
		n, err := s.Create(ctx, core.Notification{
			FamilyID:        st.Budget.FamilyID,
			UserID:          userID,
			Type:            typ,
			Title:           title,
			Message:         message,
			RelatedBudgetID: &budgetID,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("notify %s: %w", userID, err))
			continue
		}
		created = append(created, n)
	}
	return created, errors.Join(errs...)
}
