package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/dhishan/family-expense-tracker/internal/core"
	"github.com/dhishan/family-expense-tracker/internal/storage"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ExpenseHook runs after an expense is persisted. Its errors never fail the request.
type ExpenseHook interface {
	AfterExpenseCreated(ctx context.Context, familyID string, expense core.Expense) error
}

// ExpenseService owns expenses and the aggregations over them.
type ExpenseService struct {
	store    storage.Store
	families *FamilyService
	clock    Clock
	hook     ExpenseHook
}

func NewExpenseService(store storage.Store, families *FamilyService, clock Clock) *ExpenseService {
	return &ExpenseService{store: store, families: families, clock: clock}
}

// OnCreated registers the post-create hook.
func (s *ExpenseService) OnCreated(h ExpenseHook) {
	s.hook = h
}

// Create saves an expense for the user's family and then runs the hook
func (s *ExpenseService) Create(ctx context.Context, user core.User, in core.ExpenseInput) (core.Expense, error) {
	familyID, err := user.Family()
	if err != nil {
		return core.Expense{}, err
	}

	now := s.clock.Now()
	e := core.Expense{
		FamilyID:      familyID,
		Amount:        in.Amount,
		Currency:      strings.ToUpper(in.Currency),
		Date:          in.Date,
		Description:   in.Description,
		Merchant:      in.Merchant,
		PaymentMethod: in.PaymentMethod,
		Category:      in.Category,
		Beneficiary:   in.Beneficiary,
		Tags:          in.Tags,
		CreatedBy:     user.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if e.Currency == "" {
		e.Currency = core.DefaultCurrency
	}
	if e.PaymentMethod == "" {
		e.PaymentMethod = core.PaymentCredit
	}
	if e.Category == "" {
		e.Category = core.CategoryOther
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	if err := s.validate(ctx, e); err != nil {
		return core.Expense{}, err
	}

	e.ID, err = save(ctx, s.store, storage.Expenses, "", "expense", e)
	if err != nil {
		return core.Expense{}, err
	}

	if s.hook != nil {
		if err := s.hook.AfterExpenseCreated(ctx, familyID, e); err != nil {
			slog.ErrorContext(ctx, "Post-create hook failed",
				"expense_id", e.ID, "family_id", familyID, "error", err)
			// Don't fail the request - expense is saved
		}
	}

	return e, nil
}

// validate checks field rules and that the category belongs to the family.
func (s *ExpenseService) validate(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	f, err := s.families.Family(ctx, e.FamilyID)
	if err != nil {
		return err
	}
	if len(f.Categories) > 0 && !f.HasCategory(e.Category) {
		return core.Invalid("unknown category %q", e.Category)
	}
	return nil
}

// Get returns an expense of familyID. Expenses of other families are reported as not found.
func (s *ExpenseService) Get(ctx context.Context, familyID, id string) (core.Expense, error) {
	var e core.Expense
	if err := load(ctx, s.store, storage.Expenses, id, "expense", &e); err != nil {
		return core.Expense{}, err
	}
	if e.FamilyID != familyID {
		return core.Expense{}, core.NotFound("expense")
	}
	return e, nil
}

func (s *ExpenseService) Update(ctx context.Context, familyID, id string, in core.ExpenseUpdate) (core.Expense, error) {
	e, err := s.Get(ctx, familyID, id)
	if err != nil {
		return core.Expense{}, err
	}
	if in.IsEmpty() {
		return e, nil
	}
	e = in.Apply(e)
	if e.Tags == nil {
		e.Tags = []string{}
	}
	if err := s.validate(ctx, e); err != nil {
		return core.Expense{}, err
	}
	e.UpdatedAt = s.clock.Now()

	if _, err := save(ctx, s.store, storage.Expenses, e.ID, "expense", e); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func (s *ExpenseService) Delete(ctx context.Context, familyID, id string) error {
	if _, err := s.Get(ctx, familyID, id); err != nil {
		return err
	}
	err := s.store.Delete(ctx, storage.Expenses, id)
	if errors.Is(err, storage.ErrNotFound) {
		return core.NotFound("expense")
	}
	return core.Upstream("delete expense", err)
}

// filtered builds the family query shared by listing, summary and totals.
func filtered(familyID string, f core.ExpenseFilters) storage.Query {
	q := storage.From(storage.Expenses).Where("family_id", storage.Eq, familyID)
	if !f.StartDate.IsZero() {
		q = q.Where("date", storage.Gte, f.StartDate.String())
	}
	if !f.EndDate.IsZero() {
		q = q.Where("date", storage.Lte, f.EndDate.String())
	}
	if f.Category != "" {
		q = q.Where("category", storage.Eq, f.Category)
	}
	if f.Beneficiary != "" {
		q = q.Where("beneficiary", storage.Eq, f.Beneficiary)
	}
	if f.PaymentMethod != "" {
		q = q.Where("payment_method", storage.Eq, string(f.PaymentMethod))
	}
	if f.MinAmount != nil {
		q = q.Where("amount", storage.Gte, *f.MinAmount)
	}
	if f.MaxAmount != nil {
		q = q.Where("amount", storage.Lte, *f.MaxAmount)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q = q.Where("description", storage.Contains, s)
	}
	return q
}

// List returns one page of the family's expenses, newest first.
func (s *ExpenseService) List(ctx context.Context, familyID string, f core.ExpenseFilters, page, pageSize int) (core.ExpensePage, error) {
	if page < 1 {
		return core.ExpensePage{}, core.Invalid("page must be at least 1")
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return core.ExpensePage{}, core.Invalid("page_size must be between 1 and %d", MaxPageSize)
	}

	q := filtered(familyID, f)
	total, err := s.store.Count(ctx, q)
	if err != nil {
		return core.ExpensePage{}, core.Upstream("count expenses", err)
	}

	// One extra row tells us whether another page exists.
	q = q.OrderBy("date", storage.Desc).
		OrderBy("created_at", storage.Desc).
		WithOffset((page - 1) * pageSize).
		WithLimit(pageSize + 1)
	expenses, err := queryAll[core.Expense](ctx, s.store, q, "expenses")
	if err != nil {
		return core.ExpensePage{}, err
	}

	hasMore := len(expenses) > pageSize
	if hasMore {
		expenses = expenses[:pageSize]
	}
	return core.ExpensePage{
		Expenses: expenses,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		HasMore:  hasMore,
	}, nil
}

// Summary totals the family's expenses over [start, end], defaulting to the
// current month. beneficiary narrows the summary when non-empty.
func (s *ExpenseService) Summary(ctx context.Context, familyID string, start, end core.Date, beneficiary string) (core.ExpenseSummary, error) {
	if start.IsZero() || end.IsZero() {
		ms, me := MonthlyWindow{}.Window(s.clock.Today())
		if start.IsZero() {
			start = ms
		}
		if end.IsZero() {
			end = me
		}
	}

	q := filtered(familyID, core.ExpenseFilters{StartDate: start, EndDate: end, Beneficiary: beneficiary})
	expenses, err := queryAll[core.Expense](ctx, s.store, q, "expenses")
	if err != nil {
		return core.ExpenseSummary{}, err
	}

	var total core.Accumulator
	byCategory, byBeneficiary, byPayment := core.Breakdown{}, core.Breakdown{}, core.Breakdown{}
	for _, e := range expenses {
		total.Add(e.Amount)
		byCategory.Add(orDefault(e.Category, core.CategoryOther), e.Amount)
		byBeneficiary.Add(orDefault(e.Beneficiary, core.UnknownBeneficiary), e.Amount)
		byPayment.Add(orDefault(string(e.PaymentMethod), string(core.PaymentOther)), e.Amount)
	}

	return core.ExpenseSummary{
		TotalAmount:     total.Float(),
		ByCategory:      byCategory.Floats(),
		ByBeneficiary:   byBeneficiary.Floats(),
		ByPaymentMethod: byPayment.Floats(),
		ExpenseCount:    len(expenses),
		PeriodStart:     start,
		PeriodEnd:       end,
	}, nil
}

// SpendingTotal sums amounts in [start, end]. A nil category or beneficiary matches all.
func (s *ExpenseService) SpendingTotal(ctx context.Context, familyID string, start, end core.Date, category, beneficiary *string) (float64, error) {
	f := core.ExpenseFilters{StartDate: start, EndDate: end}
	if category != nil {
		f.Category = *category
	}
	if beneficiary != nil {
		f.Beneficiary = *beneficiary
	}
	expenses, err := queryAll[core.Expense](ctx, s.store, filtered(familyID, f), "expenses")
	if err != nil {
		return 0, err
	}
	var total core.Accumulator
	for _, e := range expenses {
		total.Add(e.Amount)
	}
	return total.Float(), nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
