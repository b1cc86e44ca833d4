package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhishan/family-expense-tracker/internal/core"
)

func TestExpenseService_CreateDefaults(t *testing.T) {
	f := newFixture(t)

	e, err := f.svc.Expenses.Create(f.ctx, f.alice, core.ExpenseInput{
		Amount:      12.5,
		Currency:    "eur",
		Date:        core.NewDate(2024, 3, 12),
		Description: "Bread",
		Beneficiary: core.BeneficiaryFamily,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, f.family.ID, e.FamilyID)
	assert.Equal(t, "EUR", e.Currency)
	assert.Equal(t, core.PaymentCredit, e.PaymentMethod)
	assert.Equal(t, core.CategoryOther, e.Category)
	assert.Equal(t, []string{}, e.Tags)
	assert.Equal(t, "alice", e.CreatedBy)

	got, err := f.svc.Expenses.Get(f.ctx, f.family.ID, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.Date.String(), got.Date.String())
	assert.True(t, e.CreatedAt.Equal(got.CreatedAt.Time))
}

func TestExpenseService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	loner, err := f.svc.Users.SignIn(f.ctx, core.Identity{Subject: "dan", Email: "dan@example.com"})
	require.NoError(t, err)

	valid := core.ExpenseInput{
		Amount:        10,
		Date:          core.NewDate(2024, 3, 12),
		Description:   "Lunch",
		PaymentMethod: core.PaymentCash,
		Category:      core.CategoryDining,
		Beneficiary:   "alice",
	}

	tests := []struct {
		name    string
		user    core.User
		mutate  func(in *core.ExpenseInput)
		wantErr error
	}{
		{"no family", loner, func(in *core.ExpenseInput) {}, core.ErrNoFamily},
		{"zero amount", f.alice, func(in *core.ExpenseInput) { in.Amount = 0 }, core.ErrInvalidAmount},
		{"empty description", f.alice, func(in *core.ExpenseInput) { in.Description = "  " }, core.ErrEmptyDescription},
		{"bad payment method", f.alice, func(in *core.ExpenseInput) { in.PaymentMethod = "bitcoin" }, core.ErrInvalidPayment},
		{"unknown category", f.alice, func(in *core.ExpenseInput) { in.Category = "yachts" }, core.ErrValidation},
		{"missing beneficiary", f.alice, func(in *core.ExpenseInput) { in.Beneficiary = "" }, core.ErrEmptyBeneficiary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := f.svc.Expenses.Create(f.ctx, tt.user, in)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestExpenseService_FamilyScoping(t *testing.T) {
	f := newFixture(t)
	e := f.addExpense(t, f.alice, 10, core.NewDate(2024, 3, 1), core.CategoryGroceries, "alice")
	carol := f.outsider(t)

	_, err := f.svc.Expenses.Get(f.ctx, *carol.FamilyID, e.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.svc.Expenses.Update(f.ctx, *carol.FamilyID, e.ID, core.ExpenseUpdate{Amount: ptr(1.0)})
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.ErrorIs(t, f.svc.Expenses.Delete(f.ctx, *carol.FamilyID, e.ID), core.ErrNotFound)

	// Bob shares the family.
	_, err = f.svc.Expenses.Get(f.ctx, *f.bob.FamilyID, e.ID)
	assert.NoError(t, err)
}

func TestExpenseService_UpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	e := f.addExpense(t, f.alice, 10, core.NewDate(2024, 3, 1), core.CategoryGroceries, "alice")

	updated, err := f.svc.Expenses.Update(f.ctx, f.family.ID, e.ID, core.ExpenseUpdate{
		Amount:   ptr(42.0),
		Category: ptr(core.CategoryDining),
		Tags:     ptr([]string{"weekend"}),
	})
	require.NoError(t, err)
	assert.Equal(t, 42.0, updated.Amount)
	assert.Equal(t, core.CategoryDining, updated.Category)
	assert.Equal(t, []string{"weekend"}, updated.Tags)
	assert.True(t, updated.UpdatedAt.After(e.UpdatedAt.Time))

	_, err = f.svc.Expenses.Update(f.ctx, f.family.ID, e.ID, core.ExpenseUpdate{Amount: ptr(-1.0)})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	require.NoError(t, f.svc.Expenses.Delete(f.ctx, f.family.ID, e.ID))
	_, err = f.svc.Expenses.Get(f.ctx, f.family.ID, e.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestExpenseService_ListPages(t *testing.T) {
	f := newFixture(t)
	for day := 1; day <= 25; day++ {
		f.addExpense(t, f.alice, float64(day), core.NewDate(2024, 3, day), core.CategoryGroceries, "alice")
	}

	tests := []struct {
		page       int
		wantLen    int
		wantFirst  string
		wantLast   string
		wantHasMor bool
	}{
		{1, 10, "2024-03-25", "2024-03-16", true},
		{2, 10, "2024-03-15", "2024-03-06", true},
		{3, 5, "2024-03-05", "2024-03-01", false},
		{4, 0, "", "", false},
	}

	for _, tt := range tests {
		p, err := f.svc.Expenses.List(f.ctx, f.family.ID, core.ExpenseFilters{}, tt.page, 10)
		require.NoError(t, err)

		assert.Equal(t, 25, p.Total, "page %d", tt.page)
		assert.Equal(t, tt.page, p.Page)
		assert.Equal(t, 10, p.PageSize)
		assert.Equal(t, tt.wantHasMor, p.HasMore, "page %d", tt.page)
		require.Len(t, p.Expenses, tt.wantLen, "page %d", tt.page)
		if tt.wantLen > 0 {
			assert.Equal(t, tt.wantFirst, p.Expenses[0].Date.String())
			assert.Equal(t, tt.wantLast, p.Expenses[len(p.Expenses)-1].Date.String())
		}
	}
}

func TestExpenseService_ListDefaultPageSizeAndTieBreak(t *testing.T) {
	f := newFixture(t)
	var created []core.Expense
	for i := 0; i < 45; i++ {
		created = append(created, f.addExpense(t, f.alice, 1, core.NewDate(2024, 3, 10), core.CategoryGroceries, "alice"))
	}

	seen := map[string]bool{}
	var sizes []int
	for page := 1; ; page++ {
		p, err := f.svc.Expenses.List(f.ctx, f.family.ID, core.ExpenseFilters{}, page, DefaultPageSize)
		require.NoError(t, err)
		assert.Equal(t, DefaultPageSize, p.PageSize)
		sizes = append(sizes, len(p.Expenses))
		for i, e := range p.Expenses {
			assert.False(t, seen[e.ID], "expense %s listed twice", e.ID)
			seen[e.ID] = true
			if i > 0 {
				// Same date: newer created_at comes first.
				assert.False(t, e.CreatedAt.After(p.Expenses[i-1].CreatedAt.Time))
			}
		}
		if !p.HasMore {
			break
		}
	}

	assert.Equal(t, []int{20, 20, 5}, sizes)
	assert.Len(t, seen, 45)

	first, err := f.svc.Expenses.List(f.ctx, f.family.ID, core.ExpenseFilters{}, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, created[44].ID, first.Expenses[0].ID)
}

func TestExpenseService_ListStableOrderWithFrozenClock(t *testing.T) {
	f := newFixture(t)
	f.setStep(0)
	for i := 0; i < 12; i++ {
		f.addExpense(t, f.alice, float64(i+1), core.NewDate(2024, 3, 10), core.CategoryGroceries, "alice")
	}

	ids := func() []string {
		var out []string
		for page := 1; page <= 3; page++ {
			p, err := f.svc.Expenses.List(f.ctx, f.family.ID, core.ExpenseFilters{}, page, 5)
			require.NoError(t, err)
			for _, e := range p.Expenses {
				out = append(out, e.ID)
			}
		}
		return out
	}

	first := ids()
	require.Len(t, first, 12)
	seen := make(map[string]bool, len(first))
	for _, id := range first {
		assert.False(t, seen[id], "expense %s repeated across pages", id)
		seen[id] = true
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ids(), "call %d", i)
	}
}

func TestExpenseService_UpdateClearsMerchant(t *testing.T) {
	f := newFixture(t)
	e, err := f.svc.Expenses.Create(f.ctx, f.alice, core.ExpenseInput{
		Amount:        12,
		Date:          core.NewDate(2024, 3, 1),
		Description:   "coffee",
		Merchant:      ptr("Cafe Nero"),
		PaymentMethod: core.PaymentCash,
		Category:      core.CategoryDining,
		Beneficiary:   "alice",
	})
	require.NoError(t, err)
	require.NotNil(t, e.Merchant)

	updated, err := f.svc.Expenses.Update(f.ctx, f.family.ID, e.ID, core.ExpenseUpdate{Merchant: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, updated.Merchant)

	stored, err := f.svc.Expenses.Get(f.ctx, f.family.ID, e.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Merchant)
}

func TestExpenseService_ListPagingValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Expenses.List(f.ctx, f.family.ID, core.ExpenseFilters{}, 0, 10)
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.svc.Expenses.List(f.ctx, f.family.ID, core.ExpenseFilters{}, 1, 101)
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.svc.Expenses.List(f.ctx, f.family.ID, core.ExpenseFilters{}, 1, 0)
	assert.ErrorIs(t, err, core.ErrValidation)

	p, err := f.svc.Expenses.List(f.ctx, f.family.ID, core.ExpenseFilters{}, 1, 100)
	require.NoError(t, err)
	assert.Empty(t, p.Expenses)
	assert.Equal(t, 0, p.Total)
}

func TestExpenseService_ListFilters(t *testing.T) {
	f := newFixture(t)
	create := func(amount float64, day int, category, beneficiary string, pm core.PaymentMethod, desc string) {
		_, err := f.svc.Expenses.Create(f.ctx, f.alice, core.ExpenseInput{
			Amount: amount, Date: core.NewDate(2024, 3, day), Description: desc,
			PaymentMethod: pm, Category: category, Beneficiary: beneficiary,
		})
		require.NoError(t, err)
	}
	create(5, 1, core.CategoryGroceries, "alice", core.PaymentCash, "Corner shop")
	create(50, 5, core.CategoryGroceries, core.BeneficiaryFamily, core.PaymentCredit, "Weekly GROCERIES run")
	create(120, 10, core.CategoryDining, "bob", core.PaymentCredit, "Birthday dinner")
	create(30, 20, core.CategoryTransportation, "bob", core.PaymentDebit, "Train tickets")

	tests := []struct {
		name    string
		filters core.ExpenseFilters
		want    int
	}{
		{"no filters", core.ExpenseFilters{}, 4},
		{"date range inclusive", core.ExpenseFilters{StartDate: core.NewDate(2024, 3, 5), EndDate: core.NewDate(2024, 3, 10)}, 2},
		{"category", core.ExpenseFilters{Category: core.CategoryGroceries}, 2},
		{"beneficiary", core.ExpenseFilters{Beneficiary: "bob"}, 2},
		{"payment method", core.ExpenseFilters{PaymentMethod: core.PaymentCredit}, 2},
		{"amount range", core.ExpenseFilters{MinAmount: ptr(30.0), MaxAmount: ptr(100.0)}, 2},
		{"search is case insensitive", core.ExpenseFilters{Search: "groceries"}, 1},
		{"combined", core.ExpenseFilters{Beneficiary: "bob", PaymentMethod: core.PaymentDebit}, 1},
		{"empty range", core.ExpenseFilters{StartDate: core.NewDate(2024, 4, 1)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := f.svc.Expenses.List(f.ctx, f.family.ID, tt.filters, 1, 20)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Total)
			assert.Len(t, p.Expenses, tt.want)
		})
	}
}

func TestExpenseService_Summary(t *testing.T) {
	f := newFixture(t)
	create := func(amount float64, date core.Date, category, beneficiary string, pm core.PaymentMethod) {
		_, err := f.svc.Expenses.Create(f.ctx, f.alice, core.ExpenseInput{
			Amount: amount, Date: date, Description: "x",
			PaymentMethod: pm, Category: category, Beneficiary: beneficiary,
		})
		require.NoError(t, err)
	}
	create(0.1, core.NewDate(2024, 3, 1), core.CategoryGroceries, "alice", core.PaymentCash)
	create(0.2, core.NewDate(2024, 3, 31), core.CategoryGroceries, core.BeneficiaryFamily, core.PaymentDebit)
	create(20.5, core.NewDate(2024, 3, 15), core.CategoryDining, core.BeneficiaryFamily, core.PaymentDebit)
	create(99, core.NewDate(2024, 2, 29), core.CategoryDining, "alice", core.PaymentCash)

	s, err := f.svc.Expenses.Summary(f.ctx, f.family.ID, core.Date{}, core.Date{}, "")
	require.NoError(t, err)

	assert.Equal(t, "2024-03-01", s.PeriodStart.String())
	assert.Equal(t, "2024-03-31", s.PeriodEnd.String())
	assert.Equal(t, 3, s.ExpenseCount)
	assert.Equal(t, 20.8, s.TotalAmount)
	assert.Equal(t, map[string]float64{core.CategoryGroceries: 0.3, core.CategoryDining: 20.5}, s.ByCategory)
	assert.Equal(t, map[string]float64{"alice": 0.1, core.BeneficiaryFamily: 20.7}, s.ByBeneficiary)
	assert.Equal(t, map[string]float64{"cash": 0.1, "debit": 20.7}, s.ByPaymentMethod)

	family, err := f.svc.Expenses.Summary(f.ctx, f.family.ID, core.NewDate(2024, 2, 1), core.NewDate(2024, 3, 31), core.BeneficiaryFamily)
	require.NoError(t, err)
	assert.Equal(t, 2, family.ExpenseCount)
	assert.Equal(t, 20.7, family.TotalAmount)

	empty, err := f.svc.Expenses.Summary(f.ctx, f.family.ID, core.NewDate(2023, 1, 1), core.NewDate(2023, 1, 31), "")
	require.NoError(t, err)
	assert.Zero(t, empty.TotalAmount)
	assert.Empty(t, empty.ByCategory)
}

func TestExpenseService_SpendingTotal(t *testing.T) {
	f := newFixture(t)
	f.addExpense(t, f.alice, 10, core.NewDate(2024, 3, 1), core.CategoryGroceries, "alice")
	f.addExpense(t, f.alice, 15, core.NewDate(2024, 3, 2), core.CategoryGroceries, core.BeneficiaryFamily)
	f.addExpense(t, f.alice, 7, core.NewDate(2024, 3, 3), core.CategoryDining, "alice")
	f.addExpense(t, f.alice, 100, core.NewDate(2024, 4, 1), core.CategoryGroceries, "alice")

	start, end := core.NewDate(2024, 3, 1), core.NewDate(2024, 3, 31)
	tests := []struct {
		name        string
		category    *string
		beneficiary *string
		want        float64
	}{
		{"all", nil, nil, 32},
		{"category", ptr(core.CategoryGroceries), nil, 25},
		{"beneficiary", nil, ptr("alice"), 17},
		{"both", ptr(core.CategoryGroceries), ptr("alice"), 10},
		{"no match", ptr(core.CategoryTravel), nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Expenses.SpendingTotal(f.ctx, f.family.ID, start, end, tt.category, tt.beneficiary)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type failingHook struct {
	calls int
}

func (h *failingHook) AfterExpenseCreated(context.Context, string, core.Expense) error {
	h.calls++
	return errors.New("notification backend down")
}

func TestExpenseService_HookErrorsDoNotFailCreate(t *testing.T) {
	f := newFixture(t)
	hook := &failingHook{}
	f.svc.Expenses.OnCreated(hook)

	e := f.addExpense(t, f.alice, 10, core.NewDate(2024, 3, 1), core.CategoryGroceries, "alice")
	assert.Equal(t, 1, hook.calls)

	_, err := f.svc.Expenses.Get(f.ctx, f.family.ID, e.ID)
	assert.NoError(t, err)
}
