/**
 * @description
 * Currency conversion between the two currencies the bank settles in (USD and KHR).
 * Conversion is pure: it depends only on the configured USD->KHR rate.
 *
 * @notes
 * - Results are quantized to two decimal places using banker's rounding
 *   (round-half-even), the same rule used when amounts are persisted.
 */

package currency

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	USD = "USD"
	KHR = "KHR"
)

// DefaultUSDToKHRRate is used when no rate is configured.
var DefaultUSDToKHRRate = decimal.NewFromInt(4000)

// ErrConfiguration is returned when the converter has no usable rate.
var ErrConfiguration = errors.New("currency conversion is misconfigured")

// Converter converts amounts using a fixed USD->KHR rate.
type Converter struct {
	usdToKHR decimal.Decimal
}

// NewConverter validates the rate up front so a bad deployment fails at boot.
func NewConverter(usdToKHR decimal.Decimal) (*Converter, error) {
	if !usdToKHR.IsPositive() {
		return nil, fmt.Errorf("%w: usd->khr rate must be positive, got %s", ErrConfiguration, usdToKHR.String())
	}
	return &Converter{usdToKHR: usdToKHR}, nil
}

// Rate returns the configured USD->KHR rate.
func (c *Converter) Rate() decimal.Decimal {
	if c == nil {
		return decimal.Zero
	}
	return c.usdToKHR
}

// Convert converts amount from one currency to another. Unknown pairs pass the
// amount through unchanged (quantized).
func (c *Converter) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from = Normalize(from)
	to = Normalize(to)

	if from == to {
		return Quantize(amount), nil
	}
	if c == nil || !c.usdToKHR.IsPositive() {
		return decimal.Zero, ErrConfiguration
	}

	switch {
	case from == USD && to == KHR:
		return Quantize(amount.Mul(c.usdToKHR)), nil
	case from == KHR && to == USD:
		return Quantize(amount.Div(c.usdToKHR)), nil
	default:
		return Quantize(amount), nil
	}
}

// Quantize rounds to cents, half-to-even.
func Quantize(amount decimal.Decimal) decimal.Decimal {
	return amount.RoundBank(2)
}

// Normalize upper-cases a currency code. Empty input yields an empty string.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
