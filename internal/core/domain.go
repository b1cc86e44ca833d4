package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout = "2006-01-02"
	// stampLayout is fixed width, so stored timestamps sort as text in time order.
	stampLayout = "2006-01-02T15:04:05.000000Z"
)

const (
	Weekly  BudgetPeriod = "weekly"
	Monthly BudgetPeriod = "monthly"
)

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCredit       PaymentMethod = "credit"
	PaymentDebit        PaymentMethod = "debit"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentPaypal       PaymentMethod = "paypal"
	PaymentVenmo        PaymentMethod = "venmo"
	PaymentOther        PaymentMethod = "other"
)

const (
	CategoryGroceries      = "groceries"
	CategoryDining         = "dining"
	CategoryTransportation = "transportation"
	CategoryUtilities      = "utilities"
	CategoryEntertainment  = "entertainment"
	CategoryHealthcare     = "healthcare"
	CategoryShopping       = "shopping"
	CategoryTravel         = "travel"
	CategoryEducation      = "education"
	CategoryOther          = "other"
)

const (
	NotificationBudgetWarning  NotificationType = "budget_warning"
	NotificationBudgetExceeded NotificationType = "budget_exceeded"
	NotificationFamilyJoined   NotificationType = "family_joined"
	NotificationExpenseAdded   NotificationType = "expense_added"
)

const (
	// BeneficiaryFamily marks an expense or budget as shared by the whole family.
	BeneficiaryFamily      = "family"
	BeneficiaryFamilyLabel = "Entire Family"

	// UnknownBeneficiary is the summary bucket for expenses without a beneficiary.
	UnknownBeneficiary = "unknown"

	DefaultCurrency = "USD"
)

type (
	BudgetPeriod     string
	PaymentMethod    string
	NotificationType string

	// Date is a calendar day in UTC. It serializes as YYYY-MM-DD so that
	// lexical order of stored values equals chronological order.
	Date struct {
		time.Time
	}

	// Timestamp is an instant in UTC at microsecond precision.
	Timestamp struct {
		time.Time
	}

	Expense struct {
		ID            string        `json:"id"`
		FamilyID      string        `json:"family_id"`
		Amount        float64       `json:"amount"`
		Currency      string        `json:"currency"`
		Date          Date          `json:"date"`
		Description   string        `json:"description"`
		Merchant      *string       `json:"merchant"`
		PaymentMethod PaymentMethod `json:"payment_method"`
		Category      string        `json:"category"`
		Beneficiary   string        `json:"beneficiary"`
		Tags          []string      `json:"tags"`
		CreatedBy     string        `json:"created_by"`
		CreatedAt     Timestamp     `json:"created_at"`
		UpdatedAt     Timestamp     `json:"updated_at"`
	}

	Budget struct {
		ID          string       `json:"id"`
		FamilyID    string       `json:"family_id"`
		Name        string       `json:"name"`
		Amount      float64      `json:"amount"`
		Period      BudgetPeriod `json:"period"`
		Category    *string      `json:"category"`
		Beneficiary *string      `json:"beneficiary"`
		StartDate   Date         `json:"start_date"`
		CreatedBy   string       `json:"created_by"`
		CreatedAt   Timestamp    `json:"created_at"`
		UpdatedAt   Timestamp    `json:"updated_at"`
	}

	// BudgetStatus is derived on demand and never persisted.
	BudgetStatus struct {
		Budget         Budget  `json:"budget"`
		Spent          float64 `json:"spent"`
		Remaining      float64 `json:"remaining"`
		PercentageUsed float64 `json:"percentage_used"`
		IsOverBudget   bool    `json:"is_over_budget"`
		PeriodStart    Date    `json:"period_start"`
		PeriodEnd      Date    `json:"period_end"`
	}

	Family struct {
		ID                string            `json:"id"`
		Name              string            `json:"name"`
		CreatedAt         Timestamp         `json:"created_at"`
		CreatedBy         string            `json:"created_by"`
		InviteCode        string            `json:"invite_code"`
		Categories        []string          `json:"categories"`
		BeneficiaryLabels map[string]string `json:"beneficiary_labels"`
	}

	FamilyMember struct {
		ID          string  `json:"id"`
		Email       string  `json:"email"`
		DisplayName string  `json:"display_name"`
		PhotoURL    *string `json:"photo_url"`
	}

	FamilyWithMembers struct {
		Family
		Members []FamilyMember `json:"members"`
	}

	Notification struct {
		ID               string           `json:"id"`
		FamilyID         string           `json:"family_id"`
		UserID           string           `json:"user_id"`
		Type             NotificationType `json:"type"`
		Title            string           `json:"title"`
		Message          string           `json:"message"`
		Read             bool             `json:"read"`
		CreatedAt        Timestamp        `json:"created_at"`
		RelatedBudgetID  *string          `json:"related_budget_id"`
		RelatedExpenseID *string          `json:"related_expense_id"`
	}

	User struct {
		ID          string    `json:"id"`
		Email       string    `json:"email"`
		DisplayName string    `json:"display_name"`
		PhotoURL    *string   `json:"photo_url"`
		FamilyID    *string   `json:"family_id"`
		CreatedAt   Timestamp `json:"created_at"`
		UpdatedAt   Timestamp `json:"updated_at"`
	}
)

var (
	ErrInvalidAmount      = fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	ErrEmptyDescription   = fmt.Errorf("%w: description cannot be empty", ErrValidation)
	ErrEmptyName          = fmt.Errorf("%w: name cannot be empty", ErrValidation)
	ErrEmptyBeneficiary   = fmt.Errorf("%w: beneficiary cannot be empty", ErrValidation)
	ErrInvalidPeriod      = fmt.Errorf("%w: period must be weekly or monthly", ErrValidation)
	ErrInvalidPayment     = fmt.Errorf("%w: unknown payment method", ErrValidation)
	ErrInvalidCurrency    = fmt.Errorf("%w: currency must be a 3 letter code", ErrValidation)
	ErrNoFamily           = fmt.Errorf("%w: you must be part of a family", ErrValidation)
	ErrAlreadyInFamily    = fmt.Errorf("%w: you are already a member of a family, leave your current family first", ErrValidation)
	ErrMissingFamilyLabel = fmt.Errorf("%w: beneficiary labels must include 'family' key", ErrValidation)
)

// DefaultCategories is the starter category set of a new family.
func DefaultCategories() []string {
	return []string{
		CategoryGroceries, CategoryDining, CategoryTransportation, CategoryUtilities,
		CategoryEntertainment, CategoryHealthcare, CategoryShopping, CategoryTravel,
		CategoryEducation, CategoryOther,
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", ErrValidation, s)
	}
	return Date{Time: t}, nil
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrValidation)
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	s = strings.Trim(s, `"`)
	// Accept full timestamps written by other clients and keep the day.
	if len(s) > len(dateLayout) {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("%w: invalid date %q", ErrValidation, s)
		}
		*d = DateOf(t.UTC())
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (p BudgetPeriod) IsValid() bool {
	switch p {
	case Weekly, Monthly:
		return true
	default:
		return false
	}
}

func (p PaymentMethod) IsValid() bool {
	switch p {
	case PaymentCash, PaymentCredit, PaymentDebit, PaymentBankTransfer,
		PaymentPaypal, PaymentVenmo, PaymentOther:
		return true
	default:
		return false
	}
}

// Stamp normalizes t for storage: UTC, microsecond precision.
func Stamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Microsecond)}
}

func (t Timestamp) String() string {
	return t.UTC().Format(stampLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.String() + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("%w: invalid timestamp %q", ErrValidation, s)
	}
	*t = Stamp(parsed)
	return nil
}

func validateCurrency(c string) error {
	if len(c) != 3 {
		return ErrInvalidCurrency
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return ErrInvalidCurrency
		}
	}
	return nil
}

func validateDescription(desc string) error {
	if len(strings.TrimSpace(desc)) == 0 {
		return ErrEmptyDescription
	}
	if len(desc) > 500 {
		return fmt.Errorf("%w: description too long (max 500 characters)", ErrValidation)
	}
	return nil
}

func validateMerchant(m *string) error {
	if m != nil && len(*m) > 200 {
		return fmt.Errorf("%w: merchant too long (max 200 characters)", ErrValidation)
	}
	return nil
}

func validateBudgetName(name string) error {
	if len(strings.TrimSpace(name)) == 0 {
		return ErrEmptyName
	}
	if len(name) > 100 {
		return fmt.Errorf("%w: name too long (max 100 characters)", ErrValidation)
	}
	return nil
}

// Validate checks a persisted expense. Category membership is a family
// setting and is checked by the expense service.
func (e Expense) Validate() error {
	if e.Amount <= 0 {
		return ErrInvalidAmount
	}
	if err := validateCurrency(e.Currency); err != nil {
		return err
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if err := validateDescription(e.Description); err != nil {
		return err
	}
	if err := validateMerchant(e.Merchant); err != nil {
		return err
	}
	if !e.PaymentMethod.IsValid() {
		return ErrInvalidPayment
	}
	if strings.TrimSpace(e.Category) == "" {
		return fmt.Errorf("%w: category cannot be empty", ErrValidation)
	}
	if strings.TrimSpace(e.Beneficiary) == "" {
		return ErrEmptyBeneficiary
	}
	return nil
}

func (b Budget) Validate() error {
	if err := validateBudgetName(b.Name); err != nil {
		return err
	}
	if b.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !b.Period.IsValid() {
		return ErrInvalidPeriod
	}
	if err := b.StartDate.Validate(); err != nil {
		return errors.Join(fmt.Errorf("%w: invalid start date", ErrValidation), err)
	}
	return nil
}

// HasFamily reports whether the user currently belongs to a family.
func (u User) HasFamily() bool {
	return u.FamilyID != nil && *u.FamilyID != ""
}

// Family returns the user's family id or ErrNoFamily.
func (u User) Family() (string, error) {
	if !u.HasFamily() {
		return "", ErrNoFamily
	}
	return *u.FamilyID, nil
}

// HasCategory reports whether cat is one of the family's categories.
func (f Family) HasCategory(cat string) bool {
	for _, c := range f.Categories {
		if c == cat {
			return true
		}
	}
	return false
}
