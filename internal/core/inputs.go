package core

import (
	"strings"
)

// Identity is a verified external login.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

type ExpenseInput struct {
	Amount        float64       `json:"amount" validate:"gt=0"`
	Currency      string        `json:"currency" validate:"omitempty,len=3,alpha"`
	Date          Date          `json:"date"`
	Description   string        `json:"description" validate:"required,max=500"`
	Merchant      *string       `json:"merchant" validate:"omitempty,max=200"`
	PaymentMethod PaymentMethod `json:"payment_method" validate:"omitempty,oneof=cash credit debit bank_transfer paypal venmo other"`
	Category      string        `json:"category"`
	Beneficiary   string        `json:"beneficiary" validate:"required"`
	Tags          []string      `json:"tags" validate:"omitempty,dive,max=50"`
}

// ExpenseUpdate is a partial update; nil fields are left unchanged.
type ExpenseUpdate struct {
	Amount        *float64       `json:"amount" validate:"omitempty,gt=0"`
	Currency      *string        `json:"currency" validate:"omitempty,len=3,alpha"`
	Date          *Date          `json:"date"`
	Description   *string        `json:"description" validate:"omitempty,min=1,max=500"`
	Merchant      *string        `json:"merchant" validate:"omitempty,max=200"`
	PaymentMethod *PaymentMethod `json:"payment_method"`
	Category      *string        `json:"category"`
	Beneficiary   *string        `json:"beneficiary"`
	Tags          *[]string      `json:"tags"`
}

// Apply returns e with the update applied.
func (u ExpenseUpdate) Apply(e Expense) Expense {
	if u.Amount != nil {
		e.Amount = *u.Amount
	}
	if u.Currency != nil {
		e.Currency = strings.ToUpper(*u.Currency)
	}
	if u.Date != nil {
		e.Date = *u.Date
	}
	if u.Description != nil {
		e.Description = *u.Description
	}
	// An empty merchant clears the field.
	if u.Merchant != nil {
		e.Merchant = OptionalString(*u.Merchant)
	}
	if u.PaymentMethod != nil {
		e.PaymentMethod = *u.PaymentMethod
	}
	if u.Category != nil {
		e.Category = *u.Category
	}
	if u.Beneficiary != nil {
		e.Beneficiary = *u.Beneficiary
	}
	if u.Tags != nil {
		e.Tags = *u.Tags
	}
	return e
}

func (u ExpenseUpdate) IsEmpty() bool {
	return u == ExpenseUpdate{}
}

type BudgetInput struct {
	Name        string       `json:"name" validate:"required,max=100"`
	Amount      float64      `json:"amount" validate:"gt=0"`
	Period      BudgetPeriod `json:"period" validate:"omitempty,oneof=weekly monthly"`
	Category    *string      `json:"category"`
	Beneficiary *string      `json:"beneficiary"`
	// StartDate defaults to the start of the current period.
	StartDate *Date `json:"start_date"`
}

type BudgetUpdate struct {
	Name        *string       `json:"name" validate:"omitempty,min=1,max=100"`
	Amount      *float64      `json:"amount" validate:"omitempty,gt=0"`
	Period      *BudgetPeriod `json:"period" validate:"omitempty,oneof=weekly monthly"`
	Category    *string       `json:"category"`
	Beneficiary *string       `json:"beneficiary"`
}

func (u BudgetUpdate) Apply(b Budget) Budget {
	if u.Name != nil {
		b.Name = *u.Name
	}
	if u.Amount != nil {
		b.Amount = *u.Amount
	}
	if u.Period != nil {
		b.Period = *u.Period
	}
	if u.Category != nil {
		b.Category = OptionalString(*u.Category)
	}
	if u.Beneficiary != nil {
		b.Beneficiary = OptionalString(*u.Beneficiary)
	}
	return b
}

func (u BudgetUpdate) IsEmpty() bool {
	return u == BudgetUpdate{}
}

type FamilyInput struct {
	Name              string            `json:"name" validate:"required,max=100"`
	Categories        []string          `json:"categories" validate:"omitempty,dive,required,max=50"`
	BeneficiaryLabels map[string]string `json:"beneficiary_labels"`
}

type FamilySettingsUpdate struct {
	Categories        *[]string         `json:"categories"`
	BeneficiaryLabels map[string]string `json:"beneficiary_labels"`
}

// OptionalString maps "" to nil, so an empty category means "all".
func OptionalString(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
