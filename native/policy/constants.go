package policy

import (
	"math/big"

	"github.com/holiman/uint256"
)

const (
	// Decimals is the fixed-point precision of the inflation rate.
	Decimals = 6

	// MaxRate is the largest accepted inflation rate (100% per rebase).
	MaxRate uint64 = 1_000_000

	// DefaultInflationRate is 0.19% per rebase.
	DefaultInflationRate uint64 = 1900
	// DefaultMinRebaseTimeIntervalSec spaces rebases one day apart.
	DefaultMinRebaseTimeIntervalSec uint64 = 86_400
	// DefaultRebaseWindowOffsetSec opens the window at 20:00 UTC.
	DefaultRebaseWindowOffsetSec uint64 = 72_000
	// DefaultRebaseWindowLengthSec keeps the window open for 15 minutes.
	DefaultRebaseWindowLengthSec uint64 = 900
)

var (
	rateScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

	// maxInt256 bounds every supply delta. MaxSupply is derived from it so that
	// MaxRate*MaxSupply can never leave the signed delta range; changing the
	// delta width means re-deriving both.
	maxInt256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))
	maxSupply = new(big.Int).Quo(maxInt256, new(big.Int).SetUint64(MaxRate))

	u256RateScale = uint256.MustFromBig(rateScale)
	u256MaxInt256 = uint256.MustFromBig(maxInt256)
)

// MaxInt256 returns the largest representable supply delta.
func MaxInt256() *big.Int { return new(big.Int).Set(maxInt256) }

// MaxSupply returns the hard ceiling on total supply.
func MaxSupply() *big.Int { return new(big.Int).Set(maxSupply) }
