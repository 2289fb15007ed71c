// Package money handles user-entered monetary amounts.
//
// Amount input is filtered at the keystroke level: characters that could
// never form a valid amount are simply not applied, so the field never
// holds anything but digits and at most one decimal point. Parsing then
// only has to enforce positivity and monetary precision.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrAmountEmpty       = errors.New("amount is required")
	ErrAmountNotNumeric  = errors.New("amount must be a number")
	ErrAmountNotPositive = errors.New("amount must be greater than zero")
	ErrAmountPrecision   = errors.New("amount supports at most two decimal places")
)

// CleanAmountInput filters raw input down to digits and a single
// decimal point. Everything else is dropped in place, preserving the
// order of the surviving characters.
func CleanAmountInput(raw string) string {
	var b strings.Builder
	seenPoint := false
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' && !seenPoint:
			seenPoint = true
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseAmount parses a cleaned input string into a positive monetary
// amount with at most two fraction digits.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrAmountEmpty
	}

	amt, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrAmountNotNumeric
	}
	if !amt.IsPositive() {
		return decimal.Zero, ErrAmountNotPositive
	}
	if amt.Exponent() < -2 {
		return decimal.Zero, ErrAmountPrecision
	}
	return amt, nil
}
