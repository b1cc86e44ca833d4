package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dhishan/family-expense-tracker/internal/core"
	"github.com/dhishan/family-expense-tracker/internal/log"
)

type AlertScanner interface {
	CheckAlerts(ctx context.Context, familyID string) ([]core.BudgetAlert, error)
}

type MemberLister interface {
	MemberIDs(ctx context.Context, familyID string) ([]string, error)
}

type AlertNotifier interface {
	CreateBudgetAlert(ctx context.Context, st core.BudgetStatus, kind core.AlertKind, recipients []string) ([]core.Notification, error)
}

// AlertHook scans a family's budgets after each new expense and notifies
// every member about budgets past the warning threshold.
type AlertHook struct {
	scanner  AlertScanner
	members  MemberLister
	notifier AlertNotifier
}

func NewAlertHook(scanner AlertScanner, members MemberLister, notifier AlertNotifier) *AlertHook {
	return &AlertHook{scanner: scanner, members: members, notifier: notifier}
}

// AfterExpenseCreated implements ExpenseHook. Alerts repeat on every expense
// while a budget stays past the threshold.
func (h *AlertHook) AfterExpenseCreated(ctx context.Context, familyID string, expense core.Expense) error {
	alerts, err := h.scanner.CheckAlerts(ctx, familyID)
	if err != nil {
		return fmt.Errorf("check budget alerts: %w", err)
	}
	if len(alerts) == 0 {
		return nil
	}

	recipients, err := h.members.MemberIDs(ctx, familyID)
	if err != nil {
		return fmt.Errorf("list family members: %w", err)
	}

	var errs []error
	for _, a := range alerts {
		sent, err := h.notifier.CreateBudgetAlert(ctx, a.Status, a.Kind, recipients)
		fields := log.NewFields().
			WithComponent(log.ComponentAlerts).
			WithOperation(log.OpFanOut).
			WithFamily(familyID).
			WithBudgetAlert(a.Status.Budget.ID, string(a.Kind), a.Status.PercentageUsed).
			With(log.FieldRecipients, len(sent)).
			With(log.FieldExpenseID, expense.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("budget %s: %w", a.Status.Budget.ID, err))
			slog.WarnContext(ctx, "Budget alert partially delivered", fields.WithError(err).ToSlice()...)
			continue
		}
		slog.InfoContext(ctx, "Budget alert sent", fields.ToSlice()...)
	}
	return errors.Join(errs...)
}
