package google

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"moneytrack/internal/core"
	"moneytrack/internal/gateway"
)

// Column layout of the two tabs. Row 1 holds these headers.
var (
	transactionHeaders = []any{"ID", "UserID", "Date", "Description", "Amount", "Type"}
	userHeaders        = []any{"ID", "Username", "Password"}
)

const (
	colID = iota
	colOwner
	colDate
	colDescription
	colAmount
	colType
)

// transactionRow renders t as a sheet row. The type column is informational;
// it is recomputed from the amount when read back.
func transactionRow(t core.Transaction) []any {
	return []any{
		string(t.ID),
		string(t.OwnerID),
		t.OccurredOn.String(),
		t.Description,
		t.Amount.String(),
		t.Kind().String(),
	}
}

// parseTransactions converts a values matrix into transactions. Header,
// blank and malformed rows are skipped and counted.
func parseTransactions(values [][]any) (out []core.Transaction, skipped int) {
	out = make([]core.Transaction, 0, len(values))
	for i, row := range values {
		if i == 0 && isHeader(row) {
			continue
		}
		t, err := parseTransactionRow(row)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, t)
	}
	return out, skipped
}

func parseTransactionRow(row []any) (core.Transaction, error) {
	cols := toStrings(row)
	id := safeGet(cols, colID)
	owner := safeGet(cols, colOwner)
	if id == "" || owner == "" {
		return core.Transaction{}, fmt.Errorf("row without id or owner")
	}
	amount, err := parseAmountCell(safeGetAny(row, colAmount))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("row %s: %w", id, err)
	}
	date, err := core.ParseDate(safeGet(cols, colDate))
	if err != nil {
		date = core.Date{}
	}
	return core.Transaction{
		ID:          core.RecordID(id),
		OwnerID:     core.UserID(owner),
		Description: safeGet(cols, colDescription),
		Amount:      amount,
		OccurredOn:  date,
	}, nil
}

// parseAmountCell accepts both typed numbers and text cells.
func parseAmountCell(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case nil:
		return decimal.Zero, core.ErrInvalidAmount
	default:
		return core.ParseAmount(fmt.Sprint(n))
	}
}

// findUser returns the first user row named username.
func findUser(values [][]any, username string) (gateway.Candidate, bool) {
	for i, row := range values {
		if i == 0 && isHeader(row) {
			continue
		}
		cols := toStrings(row)
		if safeGet(cols, 0) == "" || safeGet(cols, 1) != username {
			continue
		}
		return gateway.Candidate{
			Identity: core.Identity{ID: core.UserID(cols[0]), Username: cols[1]},
			Secret:   safeGet(cols, 2),
		}, true
	}
	return gateway.Candidate{}, false
}

// rowIndexOf returns the zero-based row index whose first cell equals id, or
// -1. values must start at row 1 of the tab.
func rowIndexOf(values [][]any, id string) int {
	for i, row := range values {
		if len(row) > 0 && strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i
		}
	}
	return -1
}

func isHeader(row []any) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(fmt.Sprint(row[0])), "id")
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

func safeGetAny(arr []any, idx int) any {
	if idx < 0 || idx >= len(arr) {
		return nil
	}
	return arr[idx]
}
