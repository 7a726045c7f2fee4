package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

const dateLayout = "2006-01-02"

type (
	// Kind classifies a transaction. It is always derived from the sign of the amount.
	Kind string

	// UserID identifies an account on the remote backend.
	UserID string

	// RecordID identifies a transaction on the remote backend. Ids are assigned by the
	// backend on creation; clients never invent them.
	RecordID string

	Date struct {
		time.Time
	}

	// Identity is the authenticated user: opaque id plus display name.
	Identity struct {
		ID       UserID
		Username string
	}

	// Draft is a transaction that has not been stored yet.
	Draft struct {
		OwnerID     UserID
		Description string
		Amount      decimal.Decimal
		OccurredOn  Date
	}

	Transaction struct {
		ID          RecordID
		OwnerID     UserID
		Description string
		Amount      decimal.Decimal
		OccurredOn  Date
	}
)

var (
	ErrEmptyOwner       = errors.New("empty owner")
	ErrEmptyDescription = errors.New("empty description")
	ErrDescriptionLong  = errors.New("description too long (max 200 characters)")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidKind      = errors.New("invalid kind")
)

// KindOf returns Income for amounts >= 0 and Expense otherwise.
func KindOf(amount decimal.Decimal) Kind {
	if amount.Sign() >= 0 {
		return Income
	}
	return Expense
}

// ParseKind accepts the wire names "income" and "expense".
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case Income:
		return Income, nil
	case Expense:
		return Expense, nil
	default:
		return "", ErrInvalidKind
	}
}

func (k Kind) String() string {
	return string(k)
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

// ParseDate parses a date in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Kind is derived from the amount; there is no way to set it independently.
func (d Draft) Kind() Kind {
	return KindOf(d.Amount)
}

func (d Draft) Validate() error {
	if strings.TrimSpace(string(d.OwnerID)) == "" {
		return ErrEmptyOwner
	}
	if len(strings.TrimSpace(d.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(d.Description) > 200 {
		return ErrDescriptionLong
	}
	return d.OccurredOn.Validate()
}

// Kind is derived from the amount; there is no way to set it independently.
func (t Transaction) Kind() Kind {
	return KindOf(t.Amount)
}

// FromDraft builds the stored form of d with the backend-assigned id.
func FromDraft(id RecordID, d Draft) Transaction {
	return Transaction{
		ID:          id,
		OwnerID:     d.OwnerID,
		Description: d.Description,
		Amount:      d.Amount,
		OccurredOn:  d.OccurredOn,
	}
}
