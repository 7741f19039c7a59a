// Package commission computes the affiliate commission for a sale. It is a
// pure calculation with no store or gateway access.
package commission

import (
	"errors"
	"math"
)

// DefaultRate is the commission percentage applied when neither the affiliate
// nor the product specifies one.
const DefaultRate = 30.0

// ErrInvalidProductData is returned for malformed numeric input.
var ErrInvalidProductData = errors.New("invalid product data")

// Result holds the resolved rate and the derived commission amount.
type Result struct {
	Rate   float64
	Amount float64
}

// Resolve picks the commission rate for a sale and derives the amount.
// Precedence: affiliate override, then product rate, then DefaultRate.
// The amount is price*rate/100 rounded half-up to 2 decimals.
func Resolve(price float64, productRate, overrideRate *float64) (Result, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return Result{}, ErrInvalidProductData
	}

	rate := DefaultRate
	switch {
	case overrideRate != nil:
		rate = *overrideRate
	case productRate != nil:
		rate = *productRate
	}

	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 || rate > 100 {
		return Result{}, ErrInvalidProductData
	}

	return Result{
		Rate:   rate,
		Amount: Round2(price * rate / 100),
	}, nil
}

// Round2 rounds to 2 decimal places, half away from zero. Upstream values are
// plain decimals, so rounding happens exactly once here.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
