package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"moneytrack/internal/core"
)

// The json-server wire format shared by the REST backend and the memory
// backend's seed file (db.json).

// WireID accepts both JSON numbers and strings; json-server issues either
// depending on its version.
type WireID string

func (id *WireID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = WireID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = WireID(n.String())
	return nil
}

// WireAmount is a decimal that marshals as a bare JSON number.
type WireAmount decimal.Decimal

func (a WireAmount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(a).String()), nil
}

func (a *WireAmount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*a = WireAmount(d)
	return nil
}

// WireTransaction is a transaction as the backend stores it. Type is
// written for compatibility with other clients and ignored when reading:
// the kind is always derived from the amount.
type WireTransaction struct {
	ID          WireID     `json:"id,omitempty"`
	UserID      WireID     `json:"userId"`
	Description string     `json:"description"`
	Amount      WireAmount `json:"amount"`
	Type        string     `json:"type"`
	Date        string     `json:"date"`
}

// WireUser is a user record. Password is stored in plain text by the mock
// backend.
type WireUser struct {
	ID       WireID `json:"id,omitempty"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
}

// ToWire converts a draft to its wire form (no id).
func ToWire(d core.Draft) WireTransaction {
	return WireTransaction{
		UserID:      WireID(d.OwnerID),
		Description: d.Description,
		Amount:      WireAmount(d.Amount),
		Type:        d.Kind().String(),
		Date:        d.OccurredOn.String(),
	}
}

// TransactionToWire converts a stored transaction to its wire form.
func TransactionToWire(t core.Transaction) WireTransaction {
	w := ToWire(core.Draft{OwnerID: t.OwnerID, Description: t.Description, Amount: t.Amount, OccurredOn: t.OccurredOn})
	w.ID = WireID(t.ID)
	return w
}

// Transaction converts the wire form to a core transaction. A missing id
// or owner is rejected; an unparsable date is left zero.
func (w WireTransaction) Transaction() (core.Transaction, error) {
	if strings.TrimSpace(string(w.ID)) == "" {
		return core.Transaction{}, fmt.Errorf("transaction without id")
	}
	if strings.TrimSpace(string(w.UserID)) == "" {
		return core.Transaction{}, fmt.Errorf("transaction %s without owner", w.ID)
	}
	date, _ := core.ParseDate(w.Date)
	return core.Transaction{
		ID:          core.RecordID(w.ID),
		OwnerID:     core.UserID(w.UserID),
		Description: w.Description,
		Amount:      decimal.Decimal(w.Amount),
		OccurredOn:  date,
	}, nil
}

// Candidate converts a user record to a lookup result.
func (u WireUser) Candidate() Candidate {
	return Candidate{
		Identity: core.Identity{ID: core.UserID(u.ID), Username: u.Username},
		Secret:   u.Password,
	}
}
