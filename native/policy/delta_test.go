package policy

import (
	"errors"
	"math/big"
	"testing"
)

func TestSupplySizingInvariant(t *testing.T) {
	product := new(big.Int).Mul(new(big.Int).SetUint64(MaxRate), MaxSupply())
	if product.Cmp(MaxInt256()) > 0 {
		t.Fatalf("MaxRate*MaxSupply %s exceeds int256 range", product)
	}
	next := new(big.Int).Add(MaxSupply(), big.NewInt(1))
	next.Mul(next, new(big.Int).SetUint64(MaxRate))
	if next.Cmp(MaxInt256()) <= 0 {
		t.Fatalf("expected MaxSupply to be the largest safe supply")
	}
}

func TestComputeSupplyDeltaDefaultRate(t *testing.T) {
	delta, err := ComputeSupplyDelta(big.NewInt(20_000), DefaultInflationRate)
	if err != nil {
		t.Fatalf("compute delta: %v", err)
	}
	if delta.Cmp(big.NewInt(38)) != 0 {
		t.Fatalf("expected delta 38, got %s", delta)
	}
}

func TestComputeSupplyDeltaFloors(t *testing.T) {
	cases := []struct {
		supply int64
		rate   uint64
		want   int64
	}{
		{supply: 999, rate: 1_000, want: 0},
		{supply: 1_000, rate: 1_000, want: 1},
		{supply: 1_999, rate: 1_000, want: 1},
		{supply: 123_456_789, rate: 1_900, want: 234_567},
		{supply: 5, rate: MaxRate, want: 5},
		{supply: 5, rate: 0, want: 0},
		{supply: 0, rate: MaxRate, want: 0},
	}
	for _, tc := range cases {
		got, err := ComputeSupplyDelta(big.NewInt(tc.supply), tc.rate)
		if err != nil {
			t.Fatalf("supply %d rate %d: %v", tc.supply, tc.rate, err)
		}
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Fatalf("supply %d rate %d: expected %d, got %s", tc.supply, tc.rate, tc.want, got)
		}
	}
}

func TestComputeSupplyDeltaOverflow(t *testing.T) {
	aboveInt256 := new(big.Int).Lsh(big.NewInt(1), 255)
	if _, err := ComputeSupplyDelta(aboveInt256, MaxRate); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected overflow for delta beyond int256, got %v", err)
	}
	aboveUint256 := new(big.Int).Lsh(big.NewInt(1), 256)
	if _, err := ComputeSupplyDelta(aboveUint256, 1); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected overflow for supply beyond uint256, got %v", err)
	}
	if _, err := ComputeSupplyDelta(big.NewInt(-1), 1); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected overflow for negative supply, got %v", err)
	}
	// The product exceeds 256 bits but the quotient still fits.
	delta, err := ComputeSupplyDelta(MaxInt256(), 1)
	if err != nil {
		t.Fatalf("expected wide product to be accepted: %v", err)
	}
	want := new(big.Int).Quo(MaxInt256(), big.NewInt(1_000_000))
	if delta.Cmp(want) != 0 {
		t.Fatalf("unexpected delta %s", delta)
	}
}

func TestClampSupplyDeltaAtCeiling(t *testing.T) {
	delta, err := ComputeSupplyDelta(MaxSupply(), DefaultInflationRate)
	if err != nil {
		t.Fatalf("compute delta: %v", err)
	}
	clamped, err := ClampSupplyDelta(MaxSupply(), delta)
	if err != nil {
		t.Fatalf("clamp: %v", err)
	}
	if clamped.Sign() != 0 {
		t.Fatalf("expected zero delta at max supply, got %s", clamped)
	}
}

func TestClampSupplyDeltaOneBelowCeiling(t *testing.T) {
	supply := new(big.Int).Sub(MaxSupply(), big.NewInt(1))
	delta, err := ComputeSupplyDelta(supply, MaxRate)
	if err != nil {
		t.Fatalf("compute delta: %v", err)
	}
	if delta.Cmp(big.NewInt(1)) <= 0 {
		t.Fatalf("expected unclamped delta above 1, got %s", delta)
	}
	clamped, err := ClampSupplyDelta(supply, delta)
	if err != nil {
		t.Fatalf("clamp: %v", err)
	}
	if clamped.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected clamped delta 1, got %s", clamped)
	}
}

func TestClampSupplyDeltaLeavesNonPositive(t *testing.T) {
	for _, delta := range []*big.Int{big.NewInt(0), big.NewInt(-5)} {
		got, err := ClampSupplyDelta(MaxSupply(), delta)
		if err != nil {
			t.Fatalf("clamp %s: %v", delta, err)
		}
		if got.Cmp(delta) != 0 {
			t.Fatalf("expected %s unchanged, got %s", delta, got)
		}
	}
}

func TestClampSupplyDeltaRejectsSupplyAboveCeiling(t *testing.T) {
	supply := new(big.Int).Add(MaxSupply(), big.NewInt(1))
	if _, err := ClampSupplyDelta(supply, big.NewInt(1)); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}
