// Package trace implements the uncaught-exception logging spec.md §7
// names: "uncaught exceptions log {class, reason, stacktrace} and
// terminate the process." It is deliberately a thin wrapper over
// *log.Logger, the teacher's own register for user-facing diagnostics
// (cmd/id3tool/main.go calls log.SetFlags(0) then log.Printf/log.Fatal
// directly) — generalized here into an injectable logger so the
// scheduler isn't wired to the package-level default logger and tests
// can assert on output.
package trace

import (
	"fmt"
	"log"
	"os"

	"github.com/ktkr-us/beamcore/frame"
	"github.com/ktkr-us/beamcore/term"
)

// Logger logs uncaught exceptions. The zero value is not usable; New(nil)
// writes to os.Stderr with no line prefix, matching the teacher's
// log.SetFlags(0) register.
type Logger struct {
	l *log.Logger
}

// New builds a Logger writing through l. A nil l falls back to a
// stderr logger with no timestamp prefix.
func New(l *log.Logger) *Logger {
	if l == nil {
		l = log.New(os.Stderr, "", 0)
	}
	return &Logger{l: l}
}

// Uncaught logs pid's uncaught exception exactly once, spec.md §7's
// "{class, reason, stacktrace}" triple. format is the render function
// for terms (package term's Decode/compare machinery needs a heap and
// atom table to stringify atoms, which trace has no business owning) —
// callers pass a closure bound to the exiting process's own heap.
func (lg *Logger) Uncaught(pid term.Term, exc frame.Exception, format func(term.Term) string) {
	lg.l.Printf("process %s: uncaught %s:%s stacktrace=%s",
		format(pid), exc.Class, format(exc.Reason), format(exc.Stacktrace))
}

// Exited logs a process's normal or deliberate exit at a lower noise
// level than Uncaught — still useful for a cmd/beamsmoke trace but
// never mistaken for a crash.
func (lg *Logger) Exited(pid term.Term, reason string) {
	lg.l.Printf("process %s: exited %s", fmt.Sprint(pid), reason)
}
