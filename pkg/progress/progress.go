// Package progress reports rewrite progress (spec §6). RewriteLine
// shows done/total counts, rate, elapsed time and ETA as a live
// terminal bar in its own layout; PlainLine writes the literal text
// "DONE / TOTAL objects rewritten (RATE objs/sec) in ELAPSED, ETA:
// ETA". RewriteLine is built on
// github.com/vbauerster/mpb/v8, the same progress-bar library
// antgroup-hugescm's pkg/progress and pkg/zeta/transfer.go use for
// their own download/upload bars.
package progress

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// RewriteLine is a single live progress indicator for one rewrite run,
// counting objects rewritten against a total that — per spec §4.4 — is
// allowed to keep growing after the bar is created.
type RewriteLine struct {
	p     *mpb.Progress
	bar   *mpb.Bar
	quiet bool
}

// NewRewriteLine starts a progress line. When quiet is true, every
// method is a no-op: no output is produced (spec §6's progress output
// is advisory, not required for correctness).
func NewRewriteLine(quiet bool) *RewriteLine {
	if quiet {
		return &RewriteLine{quiet: true}
	}
	p := mpb.New(mpb.WithOutput(os.Stderr), mpb.WithAutoRefresh())
	bar := p.New(0,
		mpb.BarStyle().Filler("#").Padding(" "),
		mpb.PrependDecorators(
			decor.Name("objects rewritten", decor.WC{W: len("objects rewritten") + 1, C: decor.DindentRight}),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.EwmaSpeed(0, "% .1f objs/sec", 30),
			decor.Name(" in "),
			decor.Elapsed(decor.ET_STYLE_GO, 0),
			decor.Name(", ETA: "),
			decor.OnComplete(decor.EwmaETA(decor.ET_STYLE_GO, 30), "done"),
		),
	)
	return &RewriteLine{p: p, bar: bar}
}

// Update is a rewrite.ProgressFunc: call it directly as the Scheduler's
// onProgress callback.
func (l *RewriteLine) Update(done, total int64, _ time.Duration) {
	if l.quiet {
		return
	}
	l.bar.SetTotal(total, false)
	l.bar.SetCurrent(done)
}

// Done marks the bar complete and stops the refresher goroutine,
// matching the spec's "progress line is terminated with a newline"
// (§7).
func (l *RewriteLine) Done() {
	if l.quiet {
		return
	}
	l.bar.SetTotal(l.bar.Current(), true)
	l.p.Wait()
	fmt.Fprintln(os.Stderr)
}

// PlainLine is a dependency-free fallback that writes the exact
// "DONE / TOTAL objects rewritten (RATE objs/sec) in ELAPSED, ETA: ETA"
// format literally, for callers (or tests) that want to assert on the
// line's text rather than drive a terminal-updating bar.
func PlainLine(w io.Writer, done, total int64, elapsed time.Duration) {
	rate := float64(done) / elapsed.Seconds()
	var eta time.Duration
	if rate > 0 && total > done {
		eta = time.Duration(float64(total-done)/rate) * time.Second
	}
	fmt.Fprintf(w, "\r%d / %d objects rewritten (%.1f objs/sec) in %v, ETA: %v",
		done, total, rate, elapsed.Truncate(time.Millisecond), eta.Truncate(time.Millisecond))
}
