package core

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func tx(id string, amount int64) Transaction {
	return Transaction{
		ID:          RecordID(id),
		OwnerID:     "1",
		Description: id,
		Amount:      decimal.NewFromInt(amount),
		OccurredOn:  NewDate(2025, 1, 1),
	}
}

func TestSummarizeEmptyLedger(t *testing.T) {
	totals := Summarize(nil)
	assert.True(t, totals.Balance.IsZero())
	assert.True(t, totals.Income.IsZero())
	assert.True(t, totals.Expense.IsZero())
}

func TestSummarizeSalaryCoffeeGift(t *testing.T) {
	records := []Transaction{tx("gift", 50000), tx("coffee", -25000), tx("salary", 1000000)}

	totals := Summarize(records)

	assert.Equal(t, "1025000", totals.Balance.String())
	assert.Equal(t, "1050000", totals.Income.String())
	assert.Equal(t, "25000", totals.Expense.String())
	assert.True(t, Balance(records).Equal(totals.Balance))
	assert.True(t, IncomeTotal(records).Equal(totals.Income))
	assert.True(t, ExpenseTotal(records).Equal(totals.Expense))
}

func TestSummarizeExpenseIsMagnitude(t *testing.T) {
	records := []Transaction{tx("book", -150000), tx("transport", -20000)}
	totals := Summarize(records)
	assert.Equal(t, "170000", totals.Expense.String())
	assert.Equal(t, "-170000", totals.Balance.String())
	assert.True(t, totals.Income.IsZero())
}

func TestSummarizeDecimalIsExact(t *testing.T) {
	records := []Transaction{
		{Amount: decimal.RequireFromString("0.1")},
		{Amount: decimal.RequireFromString("0.2")},
		{Amount: decimal.RequireFromString("-0.3")},
	}
	totals := Summarize(records)
	assert.True(t, totals.Balance.IsZero(), "balance = %s", totals.Balance)
	assert.Equal(t, "0.3", totals.Income.String())
	assert.Equal(t, "0.3", totals.Expense.String())
}

func TestBalanceEqualsIncomeMinusExpense(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		n := rng.Intn(20)
		records := make([]Transaction, n)
		for j := range records {
			records[j] = Transaction{Amount: decimal.New(rng.Int63n(2_000_000)-1_000_000, -2)}
		}
		totals := Summarize(records)
		assert.True(t, totals.Balance.Equal(totals.Income.Sub(totals.Expense)),
			"ledger %d: balance %s income %s expense %s", i, totals.Balance, totals.Income, totals.Expense)
		assert.True(t, totals.Expense.Sign() >= 0)
		assert.True(t, totals.Income.Sign() >= 0)
	}
}
