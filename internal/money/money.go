// Package money converts between major-unit decimal amounts and integer minor units.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// DefaultCurrency is used when no currency is configured.
const DefaultCurrency = "SGD"

var (
	// ErrNegativeAmount is returned for amounts below zero.
	ErrNegativeAmount = errors.New("money: amount must not be negative")
	// ErrUnknownCurrency is returned for codes that are not ISO 4217.
	ErrUnknownCurrency = errors.New("money: unknown currency")
)

// Scale returns the number of minor-unit digits for an ISO 4217 code (2 for SGD, 0 for JPY).
func Scale(code string) (int32, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale), nil
}

// NormalizeCurrency upper-cases and validates code.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = DefaultCurrency
	}
	if _, err := Scale(code); err != nil {
		return "", err
	}
	return code, nil
}

// ToMinor converts a major-unit amount to minor units, rounding half-up.
func ToMinor(amount decimal.Decimal, code string) (int64, error) {
	if amount.IsNegative() {
		return 0, ErrNegativeAmount
	}
	scale, err := Scale(code)
	if err != nil {
		return 0, err
	}
	return amount.Shift(scale).Round(0).IntPart(), nil
}

// FloatToMinor converts a stored major-unit number to minor units.
func FloatToMinor(amount float64, code string) (int64, error) {
	return ToMinor(decimal.NewFromFloat(amount), code)
}

// FromMinor converts minor units back to a major-unit decimal.
func FromMinor(minor int64, code string) (decimal.Decimal, error) {
	scale, err := Scale(code)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.New(minor, -scale), nil
}

// MinorToFloat converts minor units to a major-unit number for storage.
func MinorToFloat(minor int64, code string) (float64, error) {
	amount, err := FromMinor(minor, code)
	if err != nil {
		return 0, err
	}
	value, _ := amount.Float64()
	return value, nil
}

// Format renders minor units as a fixed-point string, e.g. "376.00".
func Format(minor int64, code string) string {
	amount, err := FromMinor(minor, code)
	if err != nil {
		return fmt.Sprintf("%d", minor)
	}
	scale, _ := Scale(code)
	return amount.StringFixed(scale)
}
