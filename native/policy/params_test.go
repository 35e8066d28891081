package policy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

func writeParams(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write params: %v", err)
	}
	return path
}

func TestLoadParamsFormats(t *testing.T) {
	orchestrator := "0x00000000000000000000000000000000000000b2"
	cases := map[string]string{
		"params.json": `{"inflationRate": 2500, "minRebaseTimeIntervalSec": 3600, "rebaseWindowOffsetSec": 600, "rebaseWindowLengthSec": 60, "orchestrator": "` + orchestrator + `"}`,
		"params.toml": "inflationRate = 2500\nminRebaseTimeIntervalSec = 3600\nrebaseWindowOffsetSec = 600\nrebaseWindowLengthSec = 60\norchestrator = \"" + orchestrator + "\"\n",
		"params.yaml": "inflationRate: 2500\nminRebaseTimeIntervalSec: 3600\nrebaseWindowOffsetSec: 600\nrebaseWindowLengthSec: 60\norchestrator: \"" + orchestrator + "\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			params, err := LoadParams(writeParams(t, name, body))
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if params.InflationRate == nil || *params.InflationRate != 2500 {
				t.Fatalf("unexpected rate %v", params.InflationRate)
			}
			if params.MinRebaseTimeIntervalSec == nil || *params.MinRebaseTimeIntervalSec != 3600 {
				t.Fatalf("unexpected interval %v", params.MinRebaseTimeIntervalSec)
			}
			if params.RebaseWindowOffsetSec == nil || *params.RebaseWindowOffsetSec != 600 {
				t.Fatalf("unexpected offset %v", params.RebaseWindowOffsetSec)
			}
			if params.RebaseWindowLengthSec == nil || *params.RebaseWindowLengthSec != 60 {
				t.Fatalf("unexpected length %v", params.RebaseWindowLengthSec)
			}
			if params.Orchestrator == nil || *params.Orchestrator != ethcommon.HexToAddress(orchestrator) {
				t.Fatalf("unexpected orchestrator %v", params.Orchestrator)
			}
			if !params.Timing() {
				t.Fatalf("expected timing update")
			}
		})
	}
}

func TestLoadParamsPartial(t *testing.T) {
	params, err := LoadParams(writeParams(t, "rate.yml", "inflationRate: 0\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if params.InflationRate == nil || *params.InflationRate != 0 {
		t.Fatalf("expected explicit zero rate")
	}
	if params.Timing() || params.Orchestrator != nil {
		t.Fatalf("unexpected fields set: %+v", params)
	}
	next, err := params.Resolve(DefaultState(ethcommon.Address{}))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if next.InflationRate != 0 || next.MinRebaseTimeIntervalSec != DefaultMinRebaseTimeIntervalSec {
		t.Fatalf("unexpected resolved state %+v", next)
	}
}

func TestLoadParamsRejectsUnknownFields(t *testing.T) {
	cases := map[string]string{
		"params.json": `{"inflationRate": 1, "rebaseLag": 10}`,
		"params.toml": "inflationRate = 1\nrebaseLag = 10\n",
		"params.yaml": "inflationRate: 1\nrebaseLag: 10\n",
	}
	for name, body := range cases {
		if _, err := LoadParams(writeParams(t, name, body)); err == nil {
			t.Fatalf("%s: expected unknown field rejection", name)
		}
	}
}

func TestLoadParamsRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"negative.json":     `{"rebaseWindowLengthSec": -1}`,
		"rate.json":         `{"inflationRate": 1000001}`,
		"orchestrator.json": `{"orchestrator": "not-an-address"}`,
	}
	for name, body := range cases {
		if _, err := LoadParams(writeParams(t, name, body)); !errors.Is(err, ErrInvalidParameter) {
			t.Fatalf("%s: expected ErrInvalidParameter, got %v", name, err)
		}
	}
}

func TestLoadParamsUnsupportedFormat(t *testing.T) {
	if _, err := LoadParams(writeParams(t, "params.ini", "rate=1")); err == nil {
		t.Fatalf("expected unsupported format error")
	}
	if _, err := LoadParams(""); err == nil {
		t.Fatalf("expected missing path error")
	}
}

func TestParamsResolveValidatesCombination(t *testing.T) {
	offset := uint64(DefaultMinRebaseTimeIntervalSec)
	if _, err := (Params{RebaseWindowOffsetSec: &offset}).Resolve(DefaultState(ethcommon.Address{})); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	interval := uint64(1_000)
	offset = 999
	next, err := (Params{MinRebaseTimeIntervalSec: &interval, RebaseWindowOffsetSec: &offset}).Resolve(DefaultState(ethcommon.Address{}))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if next.MinRebaseTimeIntervalSec != 1_000 || next.RebaseWindowOffsetSec != 999 {
		t.Fatalf("unexpected state %+v", next)
	}
}
