// Package pricing checks client-supplied prices against canonical catalog
// prices before any payment provider is contacted.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrPriceMismatch is returned when a requested price differs from the
// canonical price by more than the configured tolerance.
var ErrPriceMismatch = errors.New("price mismatch")

// DefaultToleranceMinor absorbs one minor unit of client-side rounding.
const DefaultToleranceMinor int64 = 1

// Validator compares prices expressed in minor currency units.
// The zero value accepts only exact matches.
type Validator struct {
	// Tolerance is the largest accepted absolute difference, in minor units.
	// Negative values are treated as zero.
	Tolerance int64
}

// NewValidator returns a Validator with the given tolerance.
func NewValidator(toleranceMinor int64) Validator {
	if toleranceMinor < 0 {
		toleranceMinor = 0
	}
	return Validator{Tolerance: toleranceMinor}
}

// Validate returns nil when |requested - canonical| <= Tolerance, and an
// error wrapping ErrPriceMismatch otherwise.
func (v Validator) Validate(requested decimal.Decimal, canonicalMinor int64) error {
	tolerance := v.Tolerance
	if tolerance < 0 {
		tolerance = 0
	}

	canonical := decimal.NewFromInt(canonicalMinor)
	diff := requested.Sub(canonical).Abs()
	if diff.GreaterThan(decimal.NewFromInt(tolerance)) {
		return fmt.Errorf("%w: requested %s, canonical %d", ErrPriceMismatch, requested.String(), canonicalMinor)
	}
	return nil
}

// FormatMinor renders an amount in minor units as a major-unit string with
// two decimal places, e.g. 4900 -> "49.00".
func FormatMinor(amountMinor int64) string {
	return decimal.New(amountMinor, -2).StringFixed(2)
}
