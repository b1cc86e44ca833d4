// Package worker delivers notification events consumed from AMQP to
// out-of-process channels (a webhook and/or a Telegram chat).
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/goccy/go-json"

	"github.com/dhishan/family-expense-tracker/internal/amqp"
)

// Deliverer sends one notification event to a channel.
type Deliverer interface {
	Name() string
	Deliver(ctx context.Context, msg *amqp.NotificationEvent) error
}

// NotifyWorker fans each event out to every configured deliverer.
type NotifyWorker struct {
	deliverers []Deliverer
}

func NewNotifyWorker(deliverers ...Deliverer) *NotifyWorker {
	return &NotifyWorker{deliverers: deliverers}
}

// HandleNotification processes a single notification event from AMQP. Any
// failing channel fails the event so the broker redelivers it.
func (w *NotifyWorker) HandleNotification(ctx context.Context, msg *amqp.NotificationEvent) error {
	slog.InfoContext(ctx, "Processing notification event",
		"notification_id", msg.NotificationID,
		"user_id", msg.UserID,
		"type", msg.Type)

	var errs []error
	for _, d := range w.deliverers {
		if err := d.Deliver(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Notification delivery failed",
				"channel", d.Name(),
				"notification_id", msg.NotificationID,
				"error", err)
			errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
			continue
		}
		slog.DebugContext(ctx, "Notification delivered", "channel", d.Name(), "notification_id", msg.NotificationID)
	}
	return errors.Join(errs...)
}

// WebhookDeliverer POSTs the event as JSON.
type WebhookDeliverer struct {
	url    string
	client *http.Client
}

func NewWebhookDeliverer(url string, timeout time.Duration) *WebhookDeliverer {
	return &WebhookDeliverer{url: url, client: &http.Client{Timeout: timeout}}
}

func (d *WebhookDeliverer) Name() string { return "webhook" }

func (d *WebhookDeliverer) Deliver(ctx context.Context, msg *amqp.NotificationEvent) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Notification-ID", msg.NotificationID)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// TelegramSender is the part of *tgbotapi.BotAPI the deliverer uses.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramDeliverer posts the event text to a single family chat.
type TelegramDeliverer struct {
	bot    TelegramSender
	chatID int64
}

func NewTelegramDeliverer(bot TelegramSender, chatID int64) *TelegramDeliverer {
	return &TelegramDeliverer{bot: bot, chatID: chatID}
}

func (d *TelegramDeliverer) Name() string { return "telegram" }

func (d *TelegramDeliverer) Deliver(_ context.Context, msg *amqp.NotificationEvent) error {
	m := tgbotapi.NewMessage(d.chatID, fmt.Sprintf("%s\n%s", msg.Title, msg.Message))
	m.DisableWebPagePreview = true
	if _, err := d.bot.Send(m); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
