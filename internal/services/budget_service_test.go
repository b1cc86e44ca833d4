package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhishan/family-expense-tracker/internal/core"
)

func TestBudgetService_Create(t *testing.T) {
	f := newFixture(t)

	b, err := f.svc.Budgets.Create(f.ctx, f.alice, core.BudgetInput{
		Name:     "Groceries",
		Amount:   400,
		Category: ptr(""),
	})
	require.NoError(t, err)
	assert.Equal(t, core.Monthly, b.Period)
	assert.Nil(t, b.Category, "empty category means all categories")
	assert.Equal(t, "2024-03-01", b.StartDate.String())

	w, err := f.svc.Budgets.Create(f.ctx, f.alice, core.BudgetInput{Name: "Fun", Amount: 50, Period: core.Weekly})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-11", w.StartDate.String())

	tests := []struct {
		name string
		in   core.BudgetInput
		want error
	}{
		{"zero amount", core.BudgetInput{Name: "x", Amount: 0}, core.ErrInvalidAmount},
		{"empty name", core.BudgetInput{Name: " ", Amount: 1}, core.ErrEmptyName},
		{"unknown period", core.BudgetInput{Name: "x", Amount: 1, Period: "yearly"}, core.ErrInvalidPeriod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Budgets.Create(f.ctx, f.alice, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBudgetService_Status(t *testing.T) {
	tests := []struct {
		name          string
		spend         []float64
		wantSpent     float64
		wantRemaining float64
		wantPct       float64
		wantOver      bool
		wantAlert     core.AlertKind
	}{
		{"under threshold", []float64{30, 49.99}, 79.99, 20.01, 79.99, false, ""},
		{"warning at exactly 80", []float64{80}, 80, 20, 80, false, core.AlertWarning},
		{"warning at 85", []float64{50, 35}, 85, 15, 85, false, core.AlertWarning},
		{"at limit is not over", []float64{100}, 100, 0, 100, false, core.AlertWarning},
		{"exceeded", []float64{60, 60}, 120, -20, 120, true, core.AlertExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.svc.Expenses.OnCreated(nil)
			b := f.addBudget(t, "Groceries", 100, core.Monthly, ptr(core.CategoryGroceries))
			for _, amt := range tt.spend {
				f.addExpense(t, f.alice, amt, core.NewDate(2024, 3, 5), core.CategoryGroceries, "alice")
			}
			// Outside the window or category, never counted.
			f.addExpense(t, f.alice, 500, core.NewDate(2024, 2, 29), core.CategoryGroceries, "alice")
			f.addExpense(t, f.alice, 500, core.NewDate(2024, 3, 5), core.CategoryDining, "alice")

			st, err := f.svc.Budgets.Status(f.ctx, f.family.ID, b.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSpent, st.Spent)
			assert.Equal(t, tt.wantRemaining, st.Remaining)
			assert.Equal(t, tt.wantPct, st.PercentageUsed)
			assert.Equal(t, tt.wantOver, st.IsOverBudget)
			assert.Equal(t, "2024-03-01", st.PeriodStart.String())
			assert.Equal(t, "2024-03-31", st.PeriodEnd.String())

			alerts, err := f.svc.Budgets.CheckAlerts(f.ctx, f.family.ID)
			require.NoError(t, err)
			if tt.wantAlert == "" {
				assert.Empty(t, alerts)
				return
			}
			require.Len(t, alerts, 1)
			assert.Equal(t, tt.wantAlert, alerts[0].Kind)
			assert.Equal(t, b.ID, alerts[0].Status.Budget.ID)
		})
	}
}

func TestBudgetService_WeeklyAndBeneficiaryScope(t *testing.T) {
	f := newFixture(t)
	f.svc.Expenses.OnCreated(nil)

	b, err := f.svc.Budgets.Create(f.ctx, f.alice, core.BudgetInput{
		Name: "Bob weekly", Amount: 50, Period: core.Weekly, Beneficiary: ptr("bob"),
	})
	require.NoError(t, err)

	f.addExpense(t, f.alice, 10, core.NewDate(2024, 3, 10), core.CategoryDining, "bob") // previous Sunday
	f.addExpense(t, f.alice, 20, core.NewDate(2024, 3, 11), core.CategoryDining, "bob") // Monday
	f.addExpense(t, f.alice, 5, core.NewDate(2024, 3, 17), core.CategoryGroceries, "bob")
	f.addExpense(t, f.alice, 40, core.NewDate(2024, 3, 12), core.CategoryDining, "alice")

	st, err := f.svc.Budgets.Status(f.ctx, f.family.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 25.0, st.Spent)
	assert.Equal(t, 50.0, st.PercentageUsed)
	assert.Equal(t, "2024-03-11", st.PeriodStart.String())
	assert.Equal(t, "2024-03-17", st.PeriodEnd.String())
}

func TestBudgetService_EvaluateZeroLimit(t *testing.T) {
	f := newFixture(t)
	f.addExpense(t, f.alice, 10, core.NewDate(2024, 3, 5), core.CategoryGroceries, "alice")

	st, err := f.svc.Budgets.Evaluate(f.ctx, core.Budget{FamilyID: f.family.ID, Amount: 0, Period: core.Monthly})
	require.NoError(t, err)
	assert.Equal(t, 0.0, st.PercentageUsed)
	assert.True(t, st.IsOverBudget)
	assert.Equal(t, -10.0, st.Remaining)
}

func TestBudgetService_ListWithStatusKeepsOrder(t *testing.T) {
	f := newFixture(t)
	var ids []string
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"} {
		ids = append(ids, f.addBudget(t, name, 100, core.Monthly, nil).ID)
	}
	f.addExpense(t, f.alice, 10, core.NewDate(2024, 3, 5), core.CategoryGroceries, "alice")

	statuses, err := f.svc.Budgets.ListWithStatus(f.ctx, f.family.ID)
	require.NoError(t, err)
	require.Len(t, statuses, len(ids))
	for i, st := range statuses {
		assert.Equal(t, ids[i], st.Budget.ID)
		assert.Equal(t, 10.0, st.Spent)
	}

	empty, err := f.svc.Budgets.ListWithStatus(f.ctx, *f.outsider(t).FamilyID)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestBudgetService_UpdateDeleteScoping(t *testing.T) {
	f := newFixture(t)
	b := f.addBudget(t, "Dining", 200, core.Monthly, ptr(core.CategoryDining))
	carol := f.outsider(t)

	_, err := f.svc.Budgets.Get(f.ctx, *carol.FamilyID, b.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, f.svc.Budgets.Delete(f.ctx, *carol.FamilyID, b.ID), core.ErrNotFound)

	updated, err := f.svc.Budgets.Update(f.ctx, f.family.ID, b.ID, core.BudgetUpdate{
		Amount:   ptr(250.0),
		Period:   ptr(core.Weekly),
		Category: ptr(""),
	})
	require.NoError(t, err)
	assert.Equal(t, 250.0, updated.Amount)
	assert.Equal(t, core.Weekly, updated.Period)
	assert.Nil(t, updated.Category)

	_, err = f.svc.Budgets.Update(f.ctx, f.family.ID, b.ID, core.BudgetUpdate{Period: ptr(core.BudgetPeriod("daily"))})
	assert.ErrorIs(t, err, core.ErrInvalidPeriod)

	require.NoError(t, f.svc.Budgets.Delete(f.ctx, f.family.ID, b.ID))
	list, err := f.svc.Budgets.List(f.ctx, f.family.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

type brokenSpending struct{}

func (brokenSpending) SpendingTotal(context.Context, string, core.Date, core.Date, *string, *string) (float64, error) {
	return 0, core.Upstream("query expenses", errors.New("connection reset"))
}

func TestBudgetService_ListWithStatusPropagatesErrors(t *testing.T) {
	f := newFixture(t)
	f.addBudget(t, "a", 100, core.Monthly, nil)

	svc := NewBudgetService(f.store, brokenSpending{}, f.clock)
	_, err := svc.ListWithStatus(f.ctx, f.family.ID)
	assert.ErrorIs(t, err, core.ErrUpstream)
}
