package pricing

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Direction is the sign of a detected threshold crossing.
type Direction int32

const (
	DirectionUp Direction = iota
	DirectionDown
)

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "Up"
	case DirectionDown:
		return "Down"
	default:
		return "Unknown"
	}
}

// DetectCrossing reports whether, and in which direction, the price series
// first moved past maxPercentage relative to prices[startIndex].
//
// Prices are fixed-point unsigned integers scaled by priceDecimals;
// maxPercentage is a percentage scaled by percentageDecimals. The scan walks
// prices[startIndex+1:] in order and returns on the FIRST element at or
// beyond a threshold, with the up comparison evaluated before the down
// comparison at each position. A maxPercentage of 0 therefore resolves Up on
// the first price equal to the reference, never Down.
//
// An out-of-range startIndex (including an empty series) is a defined
// no-crossing outcome, not an error.
//
// The function is pure and prefix-stable: extending the series past a
// detected crossing never changes the result for the same startIndex.
func DetectCrossing(
	prices []uint64,
	startIndex int,
	maxPercentage uint64,
	priceDecimals int32,
	percentageDecimals int32,
) (Direction, bool) {
	if startIndex < 0 || startIndex >= len(prices) {
		return DirectionUp, false
	}

	reference := fromScaled(prices[startIndex], priceDecimals)

	// maxPercentage is a percentage, so the value is
	// maxPercentage / 10^percentageDecimals / 100. Folding the /100 into the
	// exponent keeps every operation here exact: no decimal division, no
	// rounding, so boundary comparisons cannot flip.
	ratio := fromScaled(maxPercentage, percentageDecimals+2)

	one := decimal.NewFromInt(1)
	upThreshold := reference.Mul(one.Add(ratio))
	downThreshold := reference.Mul(one.Sub(ratio))

	for _, p := range prices[startIndex+1:] {
		current := fromScaled(p, priceDecimals)

		if current.Cmp(upThreshold) >= 0 {
			return DirectionUp, true
		}
		if current.Cmp(downThreshold) <= 0 {
			return DirectionDown, true
		}
	}

	return DirectionUp, false
}

// fromScaled interprets a fixed-point unsigned integer as an exact decimal
// with the given number of fractional digits.
func fromScaled(value uint64, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(value), -decimals)
}
