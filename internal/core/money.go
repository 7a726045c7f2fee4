// Package core provides money parsing and handling utilities.
//
// Amounts are signed decimals: positive values are income, negative values
// are expenses. This file converts between user input and decimal.Decimal.
package core

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var groupedThousands = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+(\.\d+)?$`)

// ParseAmount converts a signed decimal string to an amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, an optional
// leading sign, and underscores or spaces as digit grouping. Commas followed by
// exactly three digits are thousands separators, so FormatAmount output parses
// back to the same value. Zero is a valid amount (it counts as income).
//
// Examples:
//
//	ParseAmount("1000000")  -> 1000000, nil
//	ParseAmount("-25000")   -> -25000, nil
//	ParseAmount("12,50")    -> 12.5, nil
//	ParseAmount("-25,000")  -> -25000, nil
//	ParseAmount("abc")      -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.NewReplacer("_", "", " ", "").Replace(s)
	s = strings.TrimPrefix(s, "+")
	if groupedThousands.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	} else if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders an amount with a thousands separator and at most two
// decimals, e.g. "-25,000" or "1,050,000.50".
func FormatAmount(d decimal.Decimal) string {
	neg := d.Sign() < 0
	s := d.Abs().Round(2).String()
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if frac != "" {
		if len(frac) == 1 {
			frac += "0"
		}
		out += "." + frac
	}
	if neg {
		return "-" + out
	}
	return out
}
