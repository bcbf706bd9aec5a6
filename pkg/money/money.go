package money

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// USD amounts are displayed with 2 decimal places, BTC with 8 (satoshi
// resolution). Internal arithmetic keeps full decimal precision; rounding
// happens only at display and at trade settlement.
const (
	USDPlaces = 2
	BTCPlaces = 8
)

// ErrNotPositive is returned when an amount fails the positivity check.
// Callers translate it into their own error taxonomy at the boundary.
var ErrNotPositive = errors.New("money: amount must be a positive number")

// ParsePositive parses a user-supplied numeric string into a Decimal and
// rejects zero, negative and non-numeric values. Only used at the boundary;
// internal logic passes Decimals around.
func ParsePositive(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotPositive, s)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotPositive, s)
	}
	return d, nil
}

// FromFloat converts a float64 (from an external API) to a Decimal.
func FromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// Percent returns pct% of total. pct outside [1,100] is an error: the
// command surface only offers whole-percent slices of a balance.
func Percent(total decimal.Decimal, pct int) (decimal.Decimal, error) {
	if pct < 1 || pct > 100 {
		return decimal.Zero, fmt.Errorf("%w: %d%%", ErrNotPositive, pct)
	}
	return total.Mul(decimal.New(int64(pct), -2)), nil
}

// FormatUSD renders d as a USD amount, e.g. "99000.00".
func FormatUSD(d decimal.Decimal) string {
	return d.StringFixed(USDPlaces)
}

// FormatBTC renders d as a BTC amount, e.g. "0.01998000".
func FormatBTC(d decimal.Decimal) string {
	return d.StringFixed(BTCPlaces)
}

// FormatPct renders a fee fraction as a percentage, e.g. 0.001 -> "0.1%".
func FormatPct(fee decimal.Decimal) string {
	return strconv.FormatFloat(fee.Mul(decimal.New(100, 0)).InexactFloat64(), 'f', -1, 64) + "%"
}
