package services

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/dhishan/family-expense-tracker/internal/core"
	"github.com/dhishan/family-expense-tracker/internal/storage"
)

// statusConcurrency bounds parallel budget evaluations.
const statusConcurrency = 8

// SpendingCalculator totals a family's spending over a window.
type SpendingCalculator interface {
	SpendingTotal(ctx context.Context, familyID string, start, end core.Date, category, beneficiary *string) (float64, error)
}

// BudgetService owns budgets and evaluates them against current spending.
type BudgetService struct {
	store    storage.Store
	spending SpendingCalculator
	clock    Clock
}

func NewBudgetService(store storage.Store, spending SpendingCalculator, clock Clock) *BudgetService {
	return &BudgetService{store: store, spending: spending, clock: clock}
}

func (s *BudgetService) Create(ctx context.Context, user core.User, in core.BudgetInput) (core.Budget, error) {
	familyID, err := user.Family()
	if err != nil {
		return core.Budget{}, err
	}
	period := in.Period
	if period == "" {
		period = core.Monthly
	}

	now := s.clock.Now()
	b := core.Budget{
		FamilyID:  familyID,
		Name:      in.Name,
		Amount:    in.Amount,
		Period:    period,
		CreatedBy: user.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Category != nil {
		b.Category = core.OptionalString(*in.Category)
	}
	if in.Beneficiary != nil {
		b.Beneficiary = core.OptionalString(*in.Beneficiary)
	}
	if in.StartDate != nil {
		b.StartDate = *in.StartDate
	} else if w, err := GetPeriodWindow(period); err == nil {
		b.StartDate, _ = w.Window(s.clock.Today())
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	b.ID, err = save(ctx, s.store, storage.Budgets, "", "budget", b)
	if err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

// Get returns a budget of familyID. Budgets of other families are reported as not found.
func (s *BudgetService) Get(ctx context.Context, familyID, id string) (core.Budget, error) {
	var b core.Budget
	if err := load(ctx, s.store, storage.Budgets, id, "budget", &b); err != nil {
		return core.Budget{}, err
	}
	if b.FamilyID != familyID {
		return core.Budget{}, core.NotFound("budget")
	}
	return b, nil
}

func (s *BudgetService) Update(ctx context.Context, familyID, id string, in core.BudgetUpdate) (core.Budget, error) {
	b, err := s.Get(ctx, familyID, id)
	if err != nil {
		return core.Budget{}, err
	}
	if in.IsEmpty() {
		return b, nil
	}
	b = in.Apply(b)
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	b.UpdatedAt = s.clock.Now()
	if _, err := save(ctx, s.store, storage.Budgets, b.ID, "budget", b); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func (s *BudgetService) Delete(ctx context.Context, familyID, id string) error {
	if _, err := s.Get(ctx, familyID, id); err != nil {
		return err
	}
	err := s.store.Delete(ctx, storage.Budgets, id)
	if errors.Is(err, storage.ErrNotFound) {
		return core.NotFound("budget")
	}
	return core.Upstream("delete budget", err)
}

// List returns the family's budgets in creation order.
func (s *BudgetService) List(ctx context.Context, familyID string) ([]core.Budget, error) {
	q := storage.From(storage.Budgets).
		Where("family_id", storage.Eq, familyID).
		OrderBy("created_at", storage.Asc)
	return queryAll[core.Budget](ctx, s.store, q, "budgets")
}

// Evaluate computes the status of b for the period containing today.
func (s *BudgetService) Evaluate(ctx context.Context, b core.Budget) (core.BudgetStatus, error) {
	start, end, err := PeriodDates(b.Period, s.clock.Today())
	if err != nil {
		return core.BudgetStatus{}, err
	}
	spent, err := s.spending.SpendingTotal(ctx, b.FamilyID, start, end, b.Category, b.Beneficiary)
	if err != nil {
		return core.BudgetStatus{}, err
	}
	return core.BudgetStatus{
		Budget:         b,
		Spent:          spent,
		Remaining:      core.Subtract(b.Amount, spent),
		PercentageUsed: core.PercentageUsed(spent, b.Amount),
		IsOverBudget:   spent > b.Amount,
		PeriodStart:    start,
		PeriodEnd:      end,
	}, nil
}

// Status loads and evaluates one budget.
func (s *BudgetService) Status(ctx context.Context, familyID, id string) (core.BudgetStatus, error) {
	b, err := s.Get(ctx, familyID, id)
	if err != nil {
		return core.BudgetStatus{}, err
	}
	return s.Evaluate(ctx, b)
}

// ListWithStatus evaluates every budget of the family, keeping List order.
func (s *BudgetService) ListWithStatus(ctx context.Context, familyID string) ([]core.BudgetStatus, error) {
	budgets, err := s.List(ctx, familyID)
	if err != nil {
		return nil, err
	}

	statuses := make([]core.BudgetStatus, len(budgets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statusConcurrency)
	for i, b := range budgets {
		g.Go(func() error {
			st, err := s.Evaluate(gctx, b)
			if err != nil {
				return err
			}
			statuses[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return statuses, nil
}

// CheckAlerts returns the budgets of the family that are over the warning
// threshold or exceeded, in List order.
func (s *BudgetService) CheckAlerts(ctx context.Context, familyID string) ([]core.BudgetAlert, error) {
	statuses, err := s.ListWithStatus(ctx, familyID)
	if err != nil {
		return nil, err
	}
	var alerts []core.BudgetAlert
	for _, st := range statuses {
		if kind, ok := core.ClassifyAlert(st); ok {
			alerts = append(alerts, core.BudgetAlert{Status: st, Kind: kind})
		}
	}
	return alerts, nil
}
