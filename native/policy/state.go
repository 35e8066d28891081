package policy

import (
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// State is the long-lived monetary policy state owned by an Engine. Field order
// is part of the persisted RLP encoding.
type State struct {
	InflationRate            uint64
	MinRebaseTimeIntervalSec uint64
	LastRebaseTimestampSec   uint64
	RebaseWindowOffsetSec    uint64
	RebaseWindowLengthSec    uint64
	Epoch                    uint64
	Orchestrator             ethcommon.Address
	Admin                    ethcommon.Address
}

// DefaultState returns the initial policy state for the supplied admin. The
// orchestrator is unset until the admin assigns one.
func DefaultState(admin ethcommon.Address) *State {
	return &State{
		InflationRate:            DefaultInflationRate,
		MinRebaseTimeIntervalSec: DefaultMinRebaseTimeIntervalSec,
		LastRebaseTimestampSec:   0,
		RebaseWindowOffsetSec:    DefaultRebaseWindowOffsetSec,
		RebaseWindowLengthSec:    DefaultRebaseWindowLengthSec,
		Epoch:                    0,
		Admin:                    admin,
	}
}

// Clone returns a copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// Validate checks the invariants a restored state must satisfy.
func (s *State) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: state missing", ErrInvalidParameter)
	}
	if err := ValidateInflationRate(s.InflationRate); err != nil {
		return err
	}
	return ValidateTimingParameters(s.MinRebaseTimeIntervalSec, s.RebaseWindowOffsetSec, s.RebaseWindowLengthSec)
}

// Window returns the timing parameters of the state.
func (s *State) Window() Window {
	if s == nil {
		return Window{}
	}
	return Window{
		IntervalSec: s.MinRebaseTimeIntervalSec,
		OffsetSec:   s.RebaseWindowOffsetSec,
		LengthSec:   s.RebaseWindowLengthSec,
	}
}
