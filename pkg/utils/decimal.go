package utils

import "github.com/shopspring/decimal"

// FloorToLot rounds qty toward zero to a multiple of lot. A non-positive lot leaves qty unchanged.
func FloorToLot(qty, lot float64) float64 {
	if lot <= 0 || !IsFinite(qty) {
		return qty
	}
	d := decimal.NewFromFloat(qty)
	l := decimal.NewFromFloat(lot)
	steps := d.Div(l).Truncate(0)
	out, _ := steps.Mul(l).Float64()
	return out
}

// RoundQty trims float noise to 8 decimals.
func RoundQty(qty float64) float64 {
	out, _ := decimal.NewFromFloat(qty).Round(8).Float64()
	return out
}

// SubQty subtracts b from a without binary float drift.
func SubQty(a, b float64) float64 {
	out, _ := decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Float64()
	return out
}
