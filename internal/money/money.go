// Package money holds the fixed-point helpers used for every price and discount in a cart.
// Amounts are shopspring decimals rounded to cents; floats never touch currency values.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for currency amounts.
const Scale int32 = 2

type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	RUB Currency = "RUB"
)

var ErrUnknownCurrency = errors.New("unknown currency")

var hundred = decimal.NewFromInt(100)

// ParseCurrency normalises a currency code and rejects the ones the engine does not price in.
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	switch c {
	case USD, EUR, GBP, RUB:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
}

func (c Currency) String() string {
	return string(c)
}

// Zero is the zero amount.
func Zero() decimal.Decimal {
	return decimal.Zero
}

// Parse reads a decimal amount such as "19.99".
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Round rounds an amount to cents.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// InCents reports whether d has no digits beyond Scale.
func InCents(d decimal.Decimal) bool {
	return d.Equal(Round(d))
}

// Sum adds amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Percent returns pct percent of base, rounded to cents.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return Round(base.Mul(pct).Div(hundred))
}

// NonNegative clamps negative amounts to zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Clamp limits d to [lo, hi]. When hi < lo, lo wins.
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.GreaterThan(hi) {
		d = hi
	}
	if d.LessThan(lo) {
		d = lo
	}
	return d
}

// CapAt limits d to limit when a limit is set.
func CapAt(d decimal.Decimal, limit *decimal.Decimal) decimal.Decimal {
	if limit != nil && d.GreaterThan(*limit) {
		return *limit
	}
	return d
}
