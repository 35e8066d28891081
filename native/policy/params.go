package policy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// ValidateInflationRate enforces 0 <= rate <= MaxRate.
func ValidateInflationRate(rate uint64) error {
	if rate > MaxRate {
		return fmt.Errorf("%w: inflation rate %d exceeds max rate %d", ErrInvalidParameter, rate, MaxRate)
	}
	return nil
}

// ValidateTimingParameters enforces interval > 0 and offset < interval. The
// window length is deliberately not checked against the interval.
func ValidateTimingParameters(intervalSec, offsetSec, _ uint64) error {
	if intervalSec == 0 {
		return fmt.Errorf("%w: rebase interval must be greater than zero", ErrInvalidParameter)
	}
	if offsetSec >= intervalSec {
		return fmt.Errorf("%w: window offset %d must be less than interval %d", ErrInvalidParameter, offsetSec, intervalSec)
	}
	return nil
}

// Params is a partial policy parameter update. Nil fields are left untouched.
type Params struct {
	InflationRate            *uint64
	MinRebaseTimeIntervalSec *uint64
	RebaseWindowOffsetSec    *uint64
	RebaseWindowLengthSec    *uint64
	Orchestrator             *ethcommon.Address
}

// Timing reports whether the update touches any timing parameter.
func (p Params) Timing() bool {
	return p.MinRebaseTimeIntervalSec != nil || p.RebaseWindowOffsetSec != nil || p.RebaseWindowLengthSec != nil
}

// Resolve overlays the update on top of base and validates the result.
func (p Params) Resolve(base *State) (*State, error) {
	if base == nil {
		return nil, fmt.Errorf("%w: base state missing", ErrInvalidParameter)
	}
	next := base.Clone()
	if p.InflationRate != nil {
		next.InflationRate = *p.InflationRate
	}
	if p.MinRebaseTimeIntervalSec != nil {
		next.MinRebaseTimeIntervalSec = *p.MinRebaseTimeIntervalSec
	}
	if p.RebaseWindowOffsetSec != nil {
		next.RebaseWindowOffsetSec = *p.RebaseWindowOffsetSec
	}
	if p.RebaseWindowLengthSec != nil {
		next.RebaseWindowLengthSec = *p.RebaseWindowLengthSec
	}
	if p.Orchestrator != nil {
		next.Orchestrator = *p.Orchestrator
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	return next, nil
}

type fileParams struct {
	InflationRate            *int64 `json:"inflationRate" toml:"inflationRate" yaml:"inflationRate"`
	MinRebaseTimeIntervalSec *int64 `json:"minRebaseTimeIntervalSec" toml:"minRebaseTimeIntervalSec" yaml:"minRebaseTimeIntervalSec"`
	RebaseWindowOffsetSec    *int64 `json:"rebaseWindowOffsetSec" toml:"rebaseWindowOffsetSec" yaml:"rebaseWindowOffsetSec"`
	RebaseWindowLengthSec    *int64 `json:"rebaseWindowLengthSec" toml:"rebaseWindowLengthSec" yaml:"rebaseWindowLengthSec"`
	Orchestrator             string `json:"orchestrator" toml:"orchestrator" yaml:"orchestrator"`
}

// LoadParams reads a parameter update from a JSON, TOML or YAML file. Unknown
// fields and negative values are rejected.
func LoadParams(path string) (Params, error) {
	if strings.TrimSpace(path) == "" {
		return Params{}, errors.New("policy: params path required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("policy: read params: %w", err)
	}
	var parsed fileParams
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&parsed); err != nil {
			return Params{}, fmt.Errorf("policy: decode params json: %w", err)
		}
	case ".toml", ".tml":
		meta, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&parsed)
		if err != nil {
			return Params{}, fmt.Errorf("policy: decode params toml: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return Params{}, fmt.Errorf("policy: unknown params fields %v", undecoded)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&parsed); err != nil {
			return Params{}, fmt.Errorf("policy: decode params yaml: %w", err)
		}
	default:
		return Params{}, fmt.Errorf("policy: unsupported params format %q", ext)
	}
	return parsed.toParams()
}

func (f fileParams) toParams() (Params, error) {
	var out Params
	var err error
	if out.InflationRate, err = nonNegative("inflationRate", f.InflationRate); err != nil {
		return Params{}, err
	}
	if out.MinRebaseTimeIntervalSec, err = nonNegative("minRebaseTimeIntervalSec", f.MinRebaseTimeIntervalSec); err != nil {
		return Params{}, err
	}
	if out.RebaseWindowOffsetSec, err = nonNegative("rebaseWindowOffsetSec", f.RebaseWindowOffsetSec); err != nil {
		return Params{}, err
	}
	if out.RebaseWindowLengthSec, err = nonNegative("rebaseWindowLengthSec", f.RebaseWindowLengthSec); err != nil {
		return Params{}, err
	}
	if orchestrator := strings.TrimSpace(f.Orchestrator); orchestrator != "" {
		if !ethcommon.IsHexAddress(orchestrator) {
			return Params{}, fmt.Errorf("%w: orchestrator %q is not a hex address", ErrInvalidParameter, orchestrator)
		}
		addr := ethcommon.HexToAddress(orchestrator)
		out.Orchestrator = &addr
	}
	if out.InflationRate != nil {
		if err := ValidateInflationRate(*out.InflationRate); err != nil {
			return Params{}, err
		}
	}
	return out, nil
}

func nonNegative(field string, value *int64) (*uint64, error) {
	if value == nil {
		return nil, nil
	}
	if *value < 0 {
		return nil, fmt.Errorf("%w: %s cannot be negative", ErrInvalidParameter, field)
	}
	v := uint64(*value)
	return &v, nil
}
