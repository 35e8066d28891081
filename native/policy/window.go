package policy

import "math/bits"

// Window describes the recurring time window in which rebases are permitted.
type Window struct {
	IntervalSec uint64
	OffsetSec   uint64
	LengthSec   uint64
}

// Contains reports whether nowSec falls inside the window, i.e. whether
// nowSec mod IntervalSec lies in [OffsetSec, OffsetSec+LengthSec). The upper
// bound is computed without wrapping.
func (w Window) Contains(nowSec uint64) bool {
	if w.IntervalSec == 0 {
		return false
	}
	m := nowSec % w.IntervalSec
	if m < w.OffsetSec {
		return false
	}
	end, carry := bits.Add64(w.OffsetSec, w.LengthSec, 0)
	if carry != 0 {
		return true
	}
	return m < end
}

// Start returns the timestamp at which the window containing (or preceding)
// nowSec opened: nowSec - nowSec mod IntervalSec + OffsetSec.
func (w Window) Start(nowSec uint64) uint64 {
	if w.IntervalSec == 0 {
		return nowSec
	}
	return nowSec - nowSec%w.IntervalSec + w.OffsetSec
}

// InRebaseWindow is the timing gate: a pure function of the current time and
// the three timing parameters.
func InRebaseWindow(nowSec, intervalSec, offsetSec, lengthSec uint64) bool {
	return Window{IntervalSec: intervalSec, OffsetSec: offsetSec, LengthSec: lengthSec}.Contains(nowSec)
}

// intervalElapsed reports whether last+interval < now. A sum that overflows
// can never be exceeded.
func intervalElapsed(lastSec, intervalSec, nowSec uint64) bool {
	next, carry := bits.Add64(lastSec, intervalSec, 0)
	if carry != 0 {
		return false
	}
	return next < nowSec
}
