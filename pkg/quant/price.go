// Package quant holds the fixed-point representations shared by the ledger.
//
// Prices are LST/SOL exchange rates scaled by 2^32 (P32). Amounts are u64
// base units (lamports, LST units, share units). Every conversion floors, so
// rounding loss always lands on the depositor or claimant and never on the pool.
package quant

import (
	"errors"
	"math/big"
	"math/bits"

	"github.com/shopspring/decimal"
)

// PriceP32 is an exchange rate multiplied by 2^32.
type PriceP32 uint64

const (
	// PriceOne is the P32 representation of 1.0.
	PriceOne PriceP32 = 1 << 32

	// BasisPoints100 is 100% expressed in basis points.
	BasisPoints100 uint16 = 10_000
)

var (
	// ErrDivisionByZeroPrice is returned when converting against a price that was never set.
	ErrDivisionByZeroPrice = errors.New("division by zero price")

	// ErrDivisionByZero is returned by MulDiv when the denominator is zero.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrOverflow is returned when a MulDiv quotient does not fit in 64 bits.
	ErrOverflow = errors.New("mul_div overflow")

	// ErrZeroBacking is returned when shares are outstanding but back no SOL,
	// so no deposit can be priced.
	ErrZeroBacking = errors.New("shares outstanding with zero backing")

	// ErrNegativePrice is returned when a decimal price is below zero.
	ErrNegativePrice = errors.New("negative price")
)

var twoPow32 = decimal.NewFromInt(1 << 32)

// MulDiv computes floor(amount * numerator / denominator) with a 128-bit
// intermediate product.
func MulDiv(amount, numerator, denominator uint64) (uint64, error) {
	if denominator == 0 {
		return 0, ErrDivisionByZero
	}
	hi, lo := bits.Mul64(amount, numerator)
	// bits.Div64 panics when the quotient overflows
	if hi >= denominator {
		return 0, ErrOverflow
	}
	quo, _ := bits.Div64(hi, lo, denominator)
	return quo, nil
}

// ToSolValue converts an LST amount into its SOL value: floor(lst * price / 2^32).
func ToSolValue(lstAmount uint64, price PriceP32) (uint64, error) {
	return MulDiv(lstAmount, uint64(price), uint64(PriceOne))
}

// FromSolValue converts a SOL value into LST units: floor(sol * 2^32 / price).
func FromSolValue(solValue uint64, price PriceP32) (uint64, error) {
	if price == 0 {
		return 0, ErrDivisionByZeroPrice
	}
	return MulDiv(solValue, uint64(PriceOne), uint64(price))
}

// ApplyBp returns floor(amount * bp / 10000).
func ApplyBp(amount uint64, bp uint16) (uint64, error) {
	return MulDiv(amount, uint64(bp), uint64(BasisPoints100))
}

// SharesForSolValue converts a SOL value into share units at the pool ratio
// supply/backing. An empty pool mints 1:1.
func SharesForSolValue(solValue, backingSolValue, shareSupply uint64) (uint64, error) {
	if shareSupply == 0 {
		return solValue, nil
	}
	if backingSolValue == 0 {
		return 0, ErrZeroBacking
	}
	return MulDiv(solValue, shareSupply, backingSolValue)
}

// SolValueForShares converts share units into SOL value at the pool ratio
// backing/supply.
func SolValueForShares(shares, backingSolValue, shareSupply uint64) (uint64, error) {
	return MulDiv(shares, backingSolValue, shareSupply)
}

// PriceFromRatio returns floor(numerator * 2^32 / denominator).
func PriceFromRatio(numerator, denominator uint64) (PriceP32, error) {
	p, err := MulDiv(numerator, uint64(PriceOne), denominator)
	return PriceP32(p), err
}

// Decimal returns the human readable rate.
func (p PriceP32) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(p)), 0).Div(twoPow32)
}

func (p PriceP32) String() string {
	return p.Decimal().StringFixed(9)
}

// PriceFromDecimal converts a human readable rate into P32, flooring.
func PriceFromDecimal(d decimal.Decimal) (PriceP32, error) {
	if d.IsNegative() {
		return 0, ErrNegativePrice
	}
	scaled := d.Mul(twoPow32).Floor().BigInt()
	if !scaled.IsUint64() {
		return 0, ErrOverflow
	}
	return PriceP32(scaled.Uint64()), nil
}
