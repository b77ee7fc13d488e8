package scheduler

import (
	"fmt"
	"strings"

	"github.com/ktkr-us/beamcore/atom"
	"github.com/ktkr-us/beamcore/process"
	"github.com/ktkr-us/beamcore/term"
)

// termString renders t for the trace log only. It is not erlang:term_to_
// binary or io_lib:format — just enough structure (atoms by name, pid
// numbers, tuple/list shape) to make an uncaught-exception line
// readable, grounded on the teacher's id3.String()/Tag.String() debug
// renderers in id3/frame.go rather than any formal term printer.
func termString(p *process.Process, tb *atom.Table, t term.Term) string {
	switch {
	case term.IsAtomTerm(t):
		if _, ok := tb.Lookup(term.AtomID(t)); ok {
			return term.AtomID(t).QuotedName(tb)
		}
		return "<unknown atom>"
	case term.IsSmallInt(t):
		return fmt.Sprintf("%d", term.SmallInt(t))
	case term.IsNil(t):
		return "[]"
	case term.IsLocalPidTerm(t):
		number, serial := term.LocalPid(t)
		return fmt.Sprintf("<0.%d.%d>", number, serial)
	case term.IsNone(t):
		return "undefined"
	}

	tt := term.Decode(p.Heap, t)
	switch tt.Kind {
	case term.KindFloat:
		return fmt.Sprintf("%g", term.FloatValue(p.Heap, t))
	case term.KindBigInt:
		return term.BigIntValue(p.Heap, t).String()
	case term.KindTuple:
		elems := term.TupleElements(p.Heap, t)
		parts := make([]string, len(elems))
		for i, e := range elems {
			parts[i] = termString(p, tb, e)
		}
		return "{" + strings.Join(parts, ",") + "}"
	case term.KindCons:
		var parts []string
		cur := t
		for term.IsCons(cur) {
			parts = append(parts, termString(p, tb, term.Head(p.Heap, cur)))
			cur = term.Tail(p.Heap, cur)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case term.KindReference:
		_, counter := term.ReferenceParts(p.Heap, t)
		return fmt.Sprintf("#Ref<%d>", counter)
	case term.KindExternalPid:
		_, number, serial := term.ExternalPidParts(p.Heap, t)
		return fmt.Sprintf("<external.%d.%d>", number, serial)
	default:
		return "<term>"
	}
}
