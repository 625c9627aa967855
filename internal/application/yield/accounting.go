package yield

import (
	"errors"
	"math/bits"

	"estate-backend/internal/pkg/fixedpoint"
)

// purchaseCost is price * amount, failing instead of wrapping.
func purchaseCost(price, amount uint64) (uint64, error) {
	hi, lo := bits.Mul64(price, amount)
	if hi != 0 {
		return 0, ErrArithmeticOverflow
	}
	return lo, nil
}

// accrue returns the accumulator after distributing amount over supply shares:
// acc + floor(amount * Precision / supply). The floor loses under one scaled unit
// per share, never paid out.
func accrue(acc fixedpoint.Scaled, amount, supply uint64) (fixedpoint.Scaled, error) {
	inc, err := fixedpoint.PerShare(amount, supply)
	if err != nil {
		return fixedpoint.Scaled{}, err
	}
	return acc.Add(inc)
}

// pendingYield is floor((acc - last) * balance / Precision).
func pendingYield(acc, last fixedpoint.Scaled, balance uint64) (uint64, error) {
	gap, err := acc.Sub(last)
	if errors.Is(err, fixedpoint.ErrUnderflow) {
		return 0, ErrSnapshotConsistency
	}
	if err != nil {
		return 0, err
	}
	return gap.MulUnits(balance)
}
