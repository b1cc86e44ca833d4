// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for budget period windows.
// Each period type (weekly, monthly) has its own strategy that computes the
// inclusive calendar window containing a reference day.
package services

import (
	"fmt"
	"time"

	"github.com/dhishan/family-expense-tracker/internal/core"
)

// PeriodWindow is the strategy interface for budget period boundaries.
type PeriodWindow interface {
	// Window returns the first and last day (both inclusive) of the period containing ref.
	Window(ref core.Date) (start, end core.Date)
}

// WeeklyWindow runs Monday through Sunday.
type WeeklyWindow struct{}

func (WeeklyWindow) Window(ref core.Date) (core.Date, core.Date) {
	// time.Weekday has Sunday = 0; shift so Monday = 0.
	offset := (int(ref.Weekday()) + 6) % 7
	start := ref.AddDays(-offset)
	return start, start.AddDays(6)
}

// MonthlyWindow runs from the 1st to the last day of the month.
type MonthlyWindow struct{}

func (MonthlyWindow) Window(ref core.Date) (core.Date, core.Date) {
	start := core.NewDate(ref.Year(), int(ref.Month()), 1)
	end := core.Date{Time: start.AddDate(0, 1, 0)}.AddDays(-1)
	return start, end
}

var periodStrategies = map[core.BudgetPeriod]PeriodWindow{
	core.Weekly:  WeeklyWindow{},
	core.Monthly: MonthlyWindow{},
}

// GetPeriodWindow returns the strategy for a budget period.
func GetPeriodWindow(period core.BudgetPeriod) (PeriodWindow, error) {
	w, ok := periodStrategies[period]
	if !ok {
		return nil, fmt.Errorf("%w: unknown budget period %q", core.ErrValidation, period)
	}
	return w, nil
}

// PeriodDates returns the inclusive window of the given period containing ref.
func PeriodDates(period core.BudgetPeriod, ref core.Date) (start, end core.Date, err error) {
	w, err := GetPeriodWindow(period)
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	start, end = w.Window(ref)
	return start, end, nil
}

// Clock returns the current time; services take one so tests can pin "today".
type Clock func() time.Time

// Today is the current UTC calendar day according to c.
func (c Clock) Today() core.Date {
	return core.DateOf(c().UTC())
}

// Now is the current storage timestamp according to c.
func (c Clock) Now() core.Timestamp {
	return core.Stamp(c())
}

// SystemClock reads the wall clock.
func SystemClock() time.Time {
	return time.Now()
}
