package domain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	// Fractional digits kept by every division in the pipeline
	DivisionPrecision = 18

	// ERC-20 decimals() is a uint8
	MaxTokenDecimals = 255
)

var ErrDecimalsOutOfRange = errors.New("token decimals out of range")

func ValidDecimals(decimals uint32) bool { return decimals <= MaxTokenDecimals }

// amount / 10^decimals
func ConvertTokenToDecimal(amount *big.Int, decimals uint32) (decimal.Decimal, error) {
	if !ValidDecimals(decimals) {
		return decimal.Zero, fmt.Errorf("%w: %d", ErrDecimalsOutOfRange, decimals)
	}
	if amount == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)), nil
}

// a / b, zero when b is zero
func SafeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.DivRound(b, DivisionPrecision)
}

func ParseDecimal(s string) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
