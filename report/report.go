// Package report formats profiling data (spec component K) as colored
// text, grounded on the teacher's report/text package (writer.go):
// same "color.New(fg,bg) theme per severity, template-free Sprint"
// style, adapted from per-issue security-severity coloring to
// per-function tick-share coloring.
package report

import (
	"fmt"
	"io"

	"github.com/gookit/color"

	"github.com/taintscript/seclua/profile"
)

var (
	hotStyle  = color.New(color.FgLightWhite, color.BgRed)
	warmStyle = color.New(color.FgBlack, color.BgYellow)
	coolStyle = color.New(color.FgWhite, color.BgBlack)
)

// Threshold fractions of total ticks a function must exceed to be
// rendered in the hot/warm theme rather than the default cool one.
const (
	hotFraction  = 0.30
	warmFraction = 0.10
)

// WriteFuncReport writes a colorized listing of fns to w, in whatever
// order the caller already sorted them in (cmd/seclua sorts by
// descending ticks before calling this, mirroring the teacher's own
// "sort CLI-side, format package just formats" split between
// cmd/gosec's sortIssues and report.CreateReport). enableColor mirrors
// the teacher's own --no-color style toggle (piped output or a non-
// terminal stdout should pass false).
func WriteFuncReport(w io.Writer, fns []profile.FuncEntry, enableColor bool) error {
	var total uint64
	for _, fn := range fns {
		total += fn.Ticks
	}

	for _, fn := range fns {
		line := fmt.Sprintf("%-24s %-20s calls=%-8d ticks=%dns", fn.Source, fn.Name, fn.Calls, fn.Ticks)
		if !enableColor {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
			continue
		}
		style := styleFor(fn.Ticks, total)
		if _, err := fmt.Fprintln(w, style.Sprint(line)); err != nil {
			return err
		}
	}
	return nil
}

func styleFor(ticks, total uint64) color.Style {
	if total == 0 {
		return coolStyle
	}
	frac := float64(ticks) / float64(total)
	switch {
	case frac >= hotFraction:
		return hotStyle
	case frac >= warmFraction:
		return warmStyle
	default:
		return coolStyle
	}
}
