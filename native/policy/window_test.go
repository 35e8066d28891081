package policy

import (
	"math"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

func TestInRebaseWindowMatchesModuloDefinition(t *testing.T) {
	cases := []Window{
		{IntervalSec: 1, OffsetSec: 0, LengthSec: 0},
		{IntervalSec: 1, OffsetSec: 0, LengthSec: 1},
		{IntervalSec: 10, OffsetSec: 0, LengthSec: 3},
		{IntervalSec: 10, OffsetSec: 9, LengthSec: 1},
		{IntervalSec: 10, OffsetSec: 9, LengthSec: 5},
		{IntervalSec: 10, OffsetSec: 4, LengthSec: 0},
		{IntervalSec: 10, OffsetSec: 2, LengthSec: 25},
		{IntervalSec: 86_400, OffsetSec: 72_000, LengthSec: 900},
	}
	for _, w := range cases {
		for now := uint64(0); now < 3*w.IntervalSec+7; now++ {
			m := now % w.IntervalSec
			want := m >= w.OffsetSec && m < w.OffsetSec+w.LengthSec
			if got := InRebaseWindow(now, w.IntervalSec, w.OffsetSec, w.LengthSec); got != want {
				t.Fatalf("window %+v now %d: expected %v, got %v", w, now, want, got)
			}
		}
	}
}

func TestInRebaseWindowDefaultBoundaries(t *testing.T) {
	w := DefaultState(ethcommon.Address{}).Window()
	day := uint64(1_699_920_000)
	checks := map[uint64]bool{
		day + 71_999: false,
		day + 72_000: true,
		day + 72_899: true,
		day + 72_900: false,
		day + 86_399: false,
	}
	for now, want := range checks {
		if got := w.Contains(now); got != want {
			t.Fatalf("now %d: expected %v, got %v", now, want, got)
		}
	}
}

func TestInRebaseWindowLengthLongerThanInterval(t *testing.T) {
	w := Window{IntervalSec: 10, OffsetSec: 0, LengthSec: 20}
	for now := uint64(0); now < 50; now++ {
		if !w.Contains(now) {
			t.Fatalf("expected window spanning the interval to always be open, closed at %d", now)
		}
	}
}

func TestInRebaseWindowEndDoesNotWrap(t *testing.T) {
	w := Window{IntervalSec: 100, OffsetSec: 5, LengthSec: math.MaxUint64}
	if w.Contains(4) {
		t.Fatalf("expected closed window before offset")
	}
	if !w.Contains(5) || !w.Contains(99) {
		t.Fatalf("expected open window after offset when end overflows")
	}
}

func TestInRebaseWindowZeroInterval(t *testing.T) {
	if InRebaseWindow(10, 0, 0, 10) {
		t.Fatalf("expected zero interval to keep the window closed")
	}
}

func TestWindowStartSnapsToOffset(t *testing.T) {
	w := Window{IntervalSec: 86_400, OffsetSec: 72_000, LengthSec: 900}
	now := uint64(1_699_920_000 + 72_500)
	if got := w.Start(now); got != 1_699_920_000+72_000 {
		t.Fatalf("unexpected window start %d", got)
	}
}

func TestIntervalElapsedOverflow(t *testing.T) {
	if intervalElapsed(math.MaxUint64-1, 10, math.MaxUint64) {
		t.Fatalf("expected overflowing guard to report not elapsed")
	}
	if intervalElapsed(100, 10, 110) {
		t.Fatalf("expected equality to report not elapsed")
	}
	if !intervalElapsed(100, 10, 111) {
		t.Fatalf("expected elapsed interval")
	}
}
