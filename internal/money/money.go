// Package money holds amount, phone and reference-number helpers shared by
// the billing domains. Amounts are int64 minor units (cents) everywhere;
// conversion to and from decimal strings happens only at the boundaries.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrInvalidPhone  = errors.New("invalid_phone")
)

// ParseAmount converts a decimal amount string as sent by the gateway
// ("600", "600.00", "600.5") into minor units. Amounts with more than two
// decimal places are rejected rather than silently rounded.
func ParseAmount(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if d.Exponent() < -2 {
		return 0, ErrInvalidAmount
	}
	minor := d.Shift(2)
	if !minor.IsInteger() {
		return 0, ErrInvalidAmount
	}
	return minor.IntPart(), nil
}

// FromFloat converts a numeric callback metadata value into minor units.
func FromFloat(value float64) (int64, error) {
	d := decimal.NewFromFloat(value).Shift(2).Round(0)
	if d.Sign() < 0 {
		return 0, ErrInvalidAmount
	}
	return d.IntPart(), nil
}

// Format renders minor units as a two-decimal display string.
func Format(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

// MajorUnits renders minor units as the shortest decimal string the gateway
// accepts ("400" rather than "400.00", but "400.50" when cents are present).
func MajorUnits(minor int64) string {
	d := decimal.New(minor, -2)
	if d.IsInteger() {
		return d.StringFixed(0)
	}
	return d.StringFixed(2)
}

// NormalizePhone canonicalizes a payer phone number into the gateway's
// international format (2547XXXXXXXX). Accepts "+254...", "0712...",
// "712..." and whitespace-littered variants.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' || r == ' ' || r == '-':
			// separators dropped
		default:
			return "", ErrInvalidPhone
		}
	}
	digits := b.String()

	switch {
	case strings.HasPrefix(digits, "254") && len(digits) == 12:
	case strings.HasPrefix(digits, "0") && len(digits) == 10:
		digits = "254" + digits[1:]
	case (strings.HasPrefix(digits, "7") || strings.HasPrefix(digits, "1")) && len(digits) == 9:
		digits = "254" + digits
	default:
		return "", ErrInvalidPhone
	}
	return digits, nil
}

// NormalizeReference canonicalizes a bill-reference string before it is sent
// with a payment prompt or matched against an invoice number.
func NormalizeReference(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// InvoiceNumber formats the sequential invoice number.
func InvoiceNumber(seq int64) string {
	return fmt.Sprintf("INV-%06d", seq)
}

// PaymentNumber derives a globally unique payment number from a snowflake id.
func PaymentNumber(id snowflake.ID) string {
	return "PAY-" + id.String()
}
