package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dhishan/family-expense-tracker/internal/core"
	"github.com/dhishan/family-expense-tracker/internal/storage/memory"
)

// fixture is a two-member family on an in-memory store. The clock starts on
// Wednesday 2024-03-13 and advances one second per reading unless the test
// sets another step.
type fixture struct {
	ctx    context.Context
	store  *memory.Store
	svc    *Services
	mu     sync.Mutex
	now    time.Time
	step   time.Duration
	alice  core.User
	bob    core.User
	family core.Family
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		store: memory.New(),
		now:   time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC),
		step:  time.Second,
	}
	f.svc = New(f.store, nil, f.clock)

	var err error
	f.alice, err = f.svc.Users.SignIn(f.ctx, core.Identity{Subject: "alice", Email: "alice@example.com", Name: "Alice"})
	require.NoError(t, err)
	fam, err := f.svc.Families.Create(f.ctx, f.alice, core.FamilyInput{Name: "Smiths"})
	require.NoError(t, err)
	f.family = fam.Family
	f.alice.FamilyID = &f.family.ID

	f.bob, err = f.svc.Users.SignIn(f.ctx, core.Identity{Subject: "bob", Email: "bob@example.com", Name: "Bob"})
	require.NoError(t, err)
	_, err = f.svc.Families.JoinByCode(f.ctx, f.bob, f.family.InviteCode)
	require.NoError(t, err)
	f.bob.FamilyID = &f.family.ID

	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.now
	f.now = f.now.Add(f.step)
	return t
}

// setStep changes how far the clock moves per reading; zero freezes it.
func (f *fixture) setStep(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.step = d
}

// outsider returns a user in a second family.
func (f *fixture) outsider(t *testing.T) core.User {
	t.Helper()
	carol, err := f.svc.Users.SignIn(f.ctx, core.Identity{Subject: "carol", Email: "carol@example.com", Name: "Carol"})
	require.NoError(t, err)
	fam, err := f.svc.Families.Create(f.ctx, carol, core.FamilyInput{Name: "Joneses"})
	require.NoError(t, err)
	carol.FamilyID = &fam.ID
	return carol
}

func (f *fixture) addExpense(t *testing.T, user core.User, amount float64, date core.Date, category, beneficiary string) core.Expense {
	t.Helper()
	e, err := f.svc.Expenses.Create(f.ctx, user, core.ExpenseInput{
		Amount:        amount,
		Date:          date,
		Description:   "purchase",
		PaymentMethod: core.PaymentDebit,
		Category:      category,
		Beneficiary:   beneficiary,
	})
	require.NoError(t, err)
	return e
}

func (f *fixture) addBudget(t *testing.T, name string, amount float64, period core.BudgetPeriod, category *string) core.Budget {
	t.Helper()
	b, err := f.svc.Budgets.Create(f.ctx, f.alice, core.BudgetInput{
		Name:     name,
		Amount:   amount,
		Period:   period,
		Category: category,
	})
	require.NoError(t, err)
	return b
}

func ptr[T any](v T) *T {
	return &v
}
