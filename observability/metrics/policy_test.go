package metrics

import (
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPolicyMetricsRecordRebase(t *testing.T) {
	m := Policy()
	if m != Policy() {
		t.Fatalf("expected singleton registry")
	}
	before := testutil.ToFloat64(m.rebases.WithLabelValues("success"))
	m.ObserveRebase("success", 10*time.Millisecond)
	if got := testutil.ToFloat64(m.rebases.WithLabelValues("success")); got != before+1 {
		t.Fatalf("expected success counter to increment, got %v", got)
	}
	m.RecordRebase(3, big.NewInt(38), big.NewInt(20_038))
	if testutil.ToFloat64(m.epoch) != 3 || testutil.ToFloat64(m.supplyDelta) != 38 || testutil.ToFloat64(m.totalSupply) != 20_038 {
		t.Fatalf("unexpected gauges")
	}
	m.SetInflationRate(1900)
	if testutil.ToFloat64(m.inflationRate) != 1900 {
		t.Fatalf("unexpected inflation rate gauge")
	}
	m.SetWindowOpen(true)
	if testutil.ToFloat64(m.windowOpen) != 1 {
		t.Fatalf("expected window gauge set")
	}
	m.SetWindowOpen(false)
	if testutil.ToFloat64(m.windowOpen) != 0 {
		t.Fatalf("expected window gauge cleared")
	}
}

func TestPolicyMetricsRecordState(t *testing.T) {
	m := Policy()
	m.RecordState(12, big.NewInt(5_000))
	if testutil.ToFloat64(m.epoch) != 12 || testutil.ToFloat64(m.totalSupply) != 5_000 {
		t.Fatalf("unexpected gauges after RecordState")
	}
}

func TestPolicyMetricsNilSafe(t *testing.T) {
	var m *PolicyMetrics
	m.RecordState(1, big.NewInt(1))
	m.ObserveRebase("success", time.Second)
	m.RecordRebase(1, big.NewInt(1), big.NewInt(1))
	m.SetInflationRate(1)
	m.SetWindowOpen(true)
	var api *APIMetrics
	api.Observe("route", 200, time.Second)
	api.RecordThrottle("rate_limit")
	api.StreamOpened()
	api.StreamClosed()
}

func TestBigToFloat(t *testing.T) {
	if bigToFloat(nil) != 0 {
		t.Fatalf("nil should map to zero")
	}
	huge := new(big.Int).Lsh(big.NewInt(1), 2000)
	if bigToFloat(huge) != math.MaxFloat64 {
		t.Fatalf("expected clamp to MaxFloat64")
	}
	if bigToFloat(new(big.Int).Neg(huge)) != -math.MaxFloat64 {
		t.Fatalf("expected clamp to -MaxFloat64")
	}
}

func TestAPIMetricsObserve(t *testing.T) {
	m := API()
	before := testutil.ToFloat64(m.errors.WithLabelValues("/v1/rebase", "409"))
	m.Observe("/v1/rebase", 409, time.Millisecond)
	if got := testutil.ToFloat64(m.errors.WithLabelValues("/v1/rebase", "409")); got != before+1 {
		t.Fatalf("expected error counter to increment, got %v", got)
	}
	m.StreamOpened()
	m.StreamOpened()
	m.StreamClosed()
	if testutil.ToFloat64(m.streams) < 1 {
		t.Fatalf("expected at least one open stream")
	}
}
