package service

import (
	"github.com/shopspring/decimal"
)

// UnitPrice resolves the charge for a single seat: the ticket type base
// price multiplied by the section price multiplier, rounded half-up to
// the nearest minor currency unit. All arithmetic is decimal so the same
// inputs always produce the same amount.
func UnitPrice(basePrice int64, multiplier decimal.Decimal) int64 {
	if multiplier.IsZero() {
		return basePrice
	}

	// decimal.Round rounds half away from zero, which for non-negative
	// prices is exactly half-up
	return decimal.NewFromInt(basePrice).Mul(multiplier).Round(0).IntPart()
}

// OrderTotal sums already-resolved per-ticket prices in minor units.
func OrderTotal(prices []int64) int64 {
	var total int64
	for _, p := range prices {
		total += p
	}
	return total
}
