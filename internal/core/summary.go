package core

import "github.com/shopspring/decimal"

// Totals is the derived summary of a ledger. Balance always equals
// Income minus Expense; Expense is reported as a positive magnitude.
type Totals struct {
	Balance decimal.Decimal
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// Summarize computes all three aggregates in one pass. Nothing is cached;
// callers recompute from the current record set on every read.
func Summarize(records []Transaction) Totals {
	t := Totals{
		Balance: decimal.Zero,
		Income:  decimal.Zero,
		Expense: decimal.Zero,
	}
	for _, r := range records {
		t.Balance = t.Balance.Add(r.Amount)
		switch r.Kind() {
		case Income:
			t.Income = t.Income.Add(r.Amount)
		case Expense:
			t.Expense = t.Expense.Add(r.Amount.Abs())
		}
	}
	return t
}

// Balance is the sum of all amounts.
func Balance(records []Transaction) decimal.Decimal {
	return Summarize(records).Balance
}

// IncomeTotal is the sum of all income amounts.
func IncomeTotal(records []Transaction) decimal.Decimal {
	return Summarize(records).Income
}

// ExpenseTotal is the sum of the absolute values of all expense amounts.
func ExpenseTotal(records []Transaction) decimal.Decimal {
	return Summarize(records).Expense
}
