package policy

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// ComputeSupplyDelta returns floor(supply*rate/10^Decimals) as a signed delta.
// The product is evaluated at 512-bit width; a result outside the int256 range
// fails with ErrArithmeticOverflow.
func ComputeSupplyDelta(supply *big.Int, rate uint64) (*big.Int, error) {
	if supply == nil {
		return big.NewInt(0), nil
	}
	if supply.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative total supply %s", ErrArithmeticOverflow, supply)
	}
	total, overflow := uint256.FromBig(supply)
	if overflow {
		return nil, fmt.Errorf("%w: total supply %s exceeds uint256", ErrArithmeticOverflow, supply)
	}
	delta, overflow := new(uint256.Int).MulDivOverflow(total, uint256.NewInt(rate), u256RateScale)
	if overflow || delta.Gt(u256MaxInt256) {
		return nil, fmt.Errorf("%w: supply delta for supply %s at rate %d exceeds int256", ErrArithmeticOverflow, supply, rate)
	}
	return delta.ToBig(), nil
}

// ClampSupplyDelta limits a positive delta so that supply+delta never exceeds
// MaxSupply. Zero and negative deltas are returned unchanged.
func ClampSupplyDelta(supply, delta *big.Int) (*big.Int, error) {
	if delta == nil {
		return big.NewInt(0), nil
	}
	clamped := new(big.Int).Set(delta)
	if clamped.Sign() <= 0 {
		return clamped, nil
	}
	current := big.NewInt(0)
	if supply != nil {
		current.Set(supply)
	}
	if current.Cmp(maxSupply) > 0 {
		return nil, fmt.Errorf("%w: total supply %s above max supply", ErrArithmeticOverflow, current)
	}
	next := new(big.Int).Add(current, clamped)
	if next.Cmp(maxSupply) > 0 {
		clamped.Sub(maxSupply, current)
	}
	return clamped, nil
}
