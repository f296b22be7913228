// Package types provides the value types shared by every settle package.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money errors.
var (
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
	ErrInvalidAmount    = errors.New("money: invalid amount")
)

// Money is a signed fixed-point amount held in the smallest currency unit.
// Arithmetic is integer-only; fractional rates go through decimal with a
// single half-up rounding step.
//
// Examples:
//   - USD(15000) = $150.00
//   - EUR(8050)  = €80.50
type Money struct {
	Amount   int64  `json:"amount"`   // Smallest unit (cents, pence, etc)
	Currency string `json:"currency"` // ISO 4217 lowercase: "usd", "eur", "gbp"
}

// New creates a Money value in the given currency.
func New(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToLower(currency)}
}

// USD creates a Money value in US Dollars (cents).
func USD(cents int64) Money { return Money{Amount: cents, Currency: "usd"} }

// EUR creates a Money value in Euros (cents).
func EUR(cents int64) Money { return Money{Amount: cents, Currency: "eur"} }

// GBP creates a Money value in British Pounds (pence).
func GBP(pence int64) Money { return Money{Amount: pence, Currency: "gbp"} }

// JPY creates a Money value in Japanese Yen (no decimal).
func JPY(yen int64) Money { return Money{Amount: yen, Currency: "jpy"} }

// Zero returns a zero Money value in the specified currency.
func Zero(currency string) Money { return Money{Amount: 0, Currency: strings.ToLower(currency)} }

// ParseMoney parses a major-unit string such as "150.00" or "80.5".
// Values with more precision than the currency allows are rounded half-up.
func ParseMoney(s, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	scale := decimal.New(1, int32(currencyDecimals(currency)))
	minor := d.Mul(scale).Round(0)
	return New(minor.IntPart(), currency), nil
}

// ──────────────────────────────────────────────────
// Arithmetic
// ──────────────────────────────────────────────────

// Add returns m + other.
func (m Money) Add(other Money) (Money, error) {
	if err := m.checkCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Subtract returns m - other. The result may be negative.
func (m Money) Subtract(other Money) (Money, error) {
	if err := m.checkCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Multiply multiplies the Money by an integer quantity. No rounding occurs.
func (m Money) Multiply(qty int64) Money {
	return Money{Amount: m.Amount * qty, Currency: m.Currency}
}

// MultiplyRate multiplies by a rational rate and rounds half-up to the
// currency's minor unit exactly once.
func (m Money) MultiplyRate(rate decimal.Decimal) Money {
	v := decimal.NewFromInt(m.Amount).Mul(rate).Round(0)
	return Money{Amount: v.IntPart(), Currency: m.Currency}
}

// Percent returns pct percent of m, e.g. Percent(decimal.NewFromInt(10)) is 10%.
func (m Money) Percent(pct decimal.Decimal) Money {
	return m.MultiplyRate(pct.Div(decimal.NewFromInt(100)))
}

// Negate returns the negative of the Money value.
func (m Money) Negate() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

// ClampToZero returns m, or zero in the same currency if m is negative.
func (m Money) ClampToZero() Money {
	if m.Amount < 0 {
		return Money{Amount: 0, Currency: m.Currency}
	}
	return m
}

// ──────────────────────────────────────────────────
// Comparison
// ──────────────────────────────────────────────────

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal returns true if both Money values are equal (same amount and currency).
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// Compare returns -1, 0 or +1 as m is less than, equal to or greater than other.
func (m Money) Compare(other Money) (int, error) {
	if err := m.checkCurrency(other); err != nil {
		return 0, err
	}
	switch {
	case m.Amount < other.Amount:
		return -1, nil
	case m.Amount > other.Amount:
		return 1, nil
	default:
		return 0, nil
	}
}

// SameCurrency reports whether both values share a currency code.
func (m Money) SameCurrency(other Money) bool {
	return m.Currency == other.Currency
}

// ──────────────────────────────────────────────────
// Formatting
// ──────────────────────────────────────────────────

// Decimal returns the major-unit value as a decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -int32(currencyDecimals(m.Currency)))
}

// FormatMajor returns the major unit string without currency symbol,
// e.g. "49.00" for USD(4900) and "100" for JPY(100).
func (m Money) FormatMajor() string {
	return m.Decimal().StringFixed(int32(currencyDecimals(m.Currency)))
}

// String returns a human-readable string with currency symbol.
// Examples: "$49.00", "€199.00", "-$5.00"
func (m Money) String() string {
	symbol := currencySymbol(m.Currency)
	if m.Amount < 0 {
		return "-" + symbol + m.Negate().FormatMajor()
	}
	return symbol + m.FormatMajor()
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

// Sum adds values that all share currency. An empty list sums to zero.
func Sum(currency string, values ...Money) (Money, error) {
	total := Zero(currency)
	for _, v := range values {
		var err error
		if total, err = total.Add(v); err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

func (m Money) checkCurrency(other Money) error {
	if m.Currency != other.Currency {
		return fmt.Errorf("%w: %s != %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return nil
}

func currencySymbol(currency string) string {
	symbols := map[string]string{
		"usd": "$",
		"eur": "€",
		"gbp": "£",
		"jpy": "¥",
		"cad": "C$",
		"aud": "A$",
	}
	if sym, ok := symbols[strings.ToLower(currency)]; ok {
		return sym
	}
	return strings.ToUpper(currency) + " "
}

func currencyDecimals(currency string) int {
	zeroDecimal := map[string]bool{
		"jpy": true,
		"krw": true,
		"vnd": true,
		"clp": true,
	}
	if zeroDecimal[strings.ToLower(currency)] {
		return 0
	}
	return 2
}
