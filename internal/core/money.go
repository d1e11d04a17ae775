// Package core provides the Money Guard domain model, form validation and
// the presentation helpers shared by the services and the CLI.
//
// This file contains amount parsing. Amounts typed by the user are parsed
// into cents so that validation never deals with floating point input; the
// API itself exchanges amounts as JSON numbers.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// Money is a non-negative amount typed by the user.
type Money struct {
	Cents int64
}

// ParseAmount converts a decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) separators and at most two
// fractional digits, matching what the amount field lets a user type. Signs
// are rejected: the transaction type carries the sign.
//
// Examples:
//
//	ParseAmount("12.34") -> {1234}, nil
//	ParseAmount("12,3")  -> {1230}, nil
//	ParseAmount("12.345") -> error
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")

	intPart, fracPart, _ := strings.Cut(s, ".")
	if strings.Contains(fracPart, ".") || len(fracPart) > 2 {
		return Money{}, ErrInvalidAmount
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return Money{}, ErrInvalidAmount
		}
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return Money{}, ErrInvalidAmount
	}

	for len(fracPart) < 2 {
		fracPart += "0"
	}
	frac, _ := strconv.ParseInt(fracPart, 10, 64)

	m := Money{Cents: iv*100 + frac}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// MoneyFromFloat rounds a float amount to cents, dropping the sign.
func MoneyFromFloat(v float64) Money {
	if v < 0 {
		v = -v
	}
	return Money{Cents: int64(v*100 + 0.5)}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Float returns the amount as the JSON number the API expects.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100.0
}

func (m Money) String() string {
	return FormatCurrency(m.Float())
}
