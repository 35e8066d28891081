package events

import (
	"math/big"
	"strconv"

	"rebasechain/core/types"
)

const (
	// TypePolicyRebase is emitted after every successful supply rebase.
	TypePolicyRebase = "policy.rebase"
)

// PolicyRebase records the outcome of one rebase cycle.
type PolicyRebase struct {
	Epoch         uint64
	InflationRate uint64
	SupplyDelta   *big.Int
	TimestampSec  uint64
}

// EventType implements the Event interface.
func (PolicyRebase) EventType() string { return TypePolicyRebase }

// Event converts the rebase into a types.Event payload.
func (e PolicyRebase) Event() *types.Event {
	delta := big.NewInt(0)
	if e.SupplyDelta != nil {
		delta = new(big.Int).Set(e.SupplyDelta)
	}
	return &types.Event{
		Type: TypePolicyRebase,
		Attributes: map[string]string{
			"epoch":         strconv.FormatUint(e.Epoch, 10),
			"inflationRate": strconv.FormatUint(e.InflationRate, 10),
			"supplyDelta":   delta.String(),
			"timestampSec":  strconv.FormatUint(e.TimestampSec, 10),
		},
	}
}
