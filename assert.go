package display

import (
	"fmt"
	"sync/atomic"
)

// assertPanics makes failed assertions panic. It follows the displaydebug
// build tag; tests that trip assertions on purpose turn it off.
var assertPanics atomic.Bool

// assertFailures counts failed assertions.
var assertFailures atomic.Int64

func init() {
	assertPanics.Store(debugAssertions)
}

// assertf checks an internal invariant. A failed check is logged and, in
// builds tagged displaydebug, panics. It returns cond so callers can bail out.
func assertf(cond bool, format string, args ...any) bool {
	if cond {
		return true
	}
	assertFailures.Add(1)
	msg := fmt.Sprintf(format, args...)
	Logger().Error("assertion failed", "msg", msg)
	if assertPanics.Load() {
		panic("display: " + msg)
	}
	return false
}
