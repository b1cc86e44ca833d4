package amqp

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/dhishan/family-expense-tracker/internal/core"
)

// NotificationEvent announces a stored notification to delivery workers.
// It carries the rendered text so workers never read the store.
type NotificationEvent struct {
	NotificationID  string                `json:"notification_id"`
	FamilyID        string                `json:"family_id"`
	UserID          string                `json:"user_id"`
	Type            core.NotificationType `json:"type"`
	Title           string                `json:"title"`
	Message         string                `json:"message"`
	RelatedBudgetID *string               `json:"related_budget_id,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	Timestamp       time.Time             `json:"timestamp"`
}

// NewNotificationEvent builds the event for a stored notification
func NewNotificationEvent(n core.Notification) *NotificationEvent {
	return &NotificationEvent{
		NotificationID:  n.ID,
		FamilyID:        n.FamilyID,
		UserID:          n.UserID,
		Type:            n.Type,
		Title:           n.Title,
		Message:         n.Message,
		RelatedBudgetID: n.RelatedBudgetID,
		CreatedAt:       n.CreatedAt.Time,
		Timestamp:       time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (m *NotificationEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// NotificationEventFromJSON decodes an event
func NotificationEventFromJSON(data []byte) (*NotificationEvent, error) {
	var msg NotificationEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
