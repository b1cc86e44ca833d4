package core

// ExpenseSummary aggregates a family's expenses over an inclusive date range.
type ExpenseSummary struct {
	TotalAmount     float64            `json:"total_amount"`
	ByCategory      map[string]float64 `json:"by_category"`
	ByBeneficiary   map[string]float64 `json:"by_beneficiary"`
	ByPaymentMethod map[string]float64 `json:"by_payment_method"`
	ExpenseCount    int                `json:"expense_count"`
	PeriodStart     Date               `json:"period_start"`
	PeriodEnd       Date               `json:"period_end"`
}

// ExpensePage is one page of a filtered expense listing.
type ExpensePage struct {
	Expenses []Expense `json:"expenses"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
	HasMore  bool      `json:"has_more"`
}

// ExpenseFilters narrows an expense listing. Zero values mean "no filter".
type ExpenseFilters struct {
	StartDate     Date
	EndDate       Date
	Category      string
	Beneficiary   string
	PaymentMethod PaymentMethod
	MinAmount     *float64
	MaxAmount     *float64
	Search        string
}

type AlertKind string

const (
	AlertWarning  AlertKind = "warning"
	AlertExceeded AlertKind = "exceeded"
)

// WarningThreshold is the percentage_used at which a warning alert fires.
const WarningThreshold = 80.0

// BudgetAlert pairs a budget status with the alert it triggered.
type BudgetAlert struct {
	Status BudgetStatus `json:"status"`
	Kind   AlertKind    `json:"kind"`
}

// ClassifyAlert maps a status to an alert kind. ok is false when no alert applies.
func ClassifyAlert(s BudgetStatus) (kind AlertKind, ok bool) {
	switch {
	case s.IsOverBudget:
		return AlertExceeded, true
	case s.PercentageUsed >= WarningThreshold:
		return AlertWarning, true
	default:
		return "", false
	}
}
