// Package core provides money arithmetic helpers.
//
// Amounts travel as float64 on the wire and in storage. Sums and percentages
// are computed with shopspring/decimal so repeated additions do not drift.
package core

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Accumulator sums float amounts exactly.
type Accumulator struct {
	total decimal.Decimal
}

func (a *Accumulator) Add(amount float64) {
	a.total = a.total.Add(decimal.NewFromFloat(amount))
}

func (a *Accumulator) Float() float64 {
	return a.total.InexactFloat64()
}

// Breakdown accumulates amounts per key.
type Breakdown map[string]*Accumulator

func (b Breakdown) Add(key string, amount float64) {
	acc, ok := b[key]
	if !ok {
		acc = &Accumulator{}
		b[key] = acc
	}
	acc.Add(amount)
}

func (b Breakdown) Floats() map[string]float64 {
	out := make(map[string]float64, len(b))
	for k, acc := range b {
		out[k] = acc.Float()
	}
	return out
}

// Subtract returns a-b without float drift.
func Subtract(a, b float64) float64 {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).InexactFloat64()
}

// PercentageUsed returns spent/limit*100 rounded to 2 decimals, 0 when limit is 0.
func PercentageUsed(spent, limit float64) float64 {
	if limit == 0 {
		return 0
	}
	pct := decimal.NewFromFloat(spent).
		Mul(hundred).
		DivRound(decimal.NewFromFloat(limit), 8).
		Round(2)
	return pct.InexactFloat64()
}
