// Package trace provides logging helpers adapted from
// antgroup-hugescm's modules/trace: a thin wrapper around logrus that
// also records the caller's location, plus a lightweight stderr
// step-timer that is a no-op unless enabled when it is built. No other
// package of this repository imports it; the CLI logs through logrus
// directly.
package trace

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Location returns the calling function's name and line number, skip
// frames up from Location itself.
func Location(skip int) (string, int) {
	pc, _, line, ok := runtime.Caller(skip)
	if !ok {
		return "?", line
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "?", line
	}
	return fn.Name(), line
}

// Errorf logs a formatted message at error level, tagged with the
// caller's location, and returns it as a plain error, turning a fatal
// condition into both a log line and a return value in one call.
func Errorf(format string, a ...any) error {
	fn, line := Location(2)
	msg := fmt.Sprintf(format, a...)
	logrus.Errorf("%s:%d %s", fn, line, msg)
	return fmt.Errorf("%s", msg)
}

// Tracker emits a stderr timing line between successive StepNext calls
// when debug mode is enabled; used to break down where a run's time is
// going (object-store I/O vs. filter CPU work) without a full profiler.
type Tracker struct {
	debug bool
	last  time.Time
}

// NewTracker returns a Tracker that is a no-op unless debugMode is true.
func NewTracker(debugMode bool) *Tracker {
	return &Tracker{debug: debugMode, last: time.Now()}
}

// StepNext logs the time elapsed since the previous StepNext call.
func (t *Tracker) StepNext(format string, a ...any) {
	if !t.debug {
		return
	}
	s := fmt.Sprintf(format, a...)
	now := time.Now()
	fmt.Fprintf(os.Stderr, "* %s use time: %v\n", strings.Trim(s, "\n"), now.Sub(t.last))
	t.last = now
}
