// Package bif implements the built-in-function contract from spec.md
// §6: native(process, args...) returning a term or a {class, reason,
// stacktrace} exception, plus place_frame_with_arguments, the stack
// wiring that lets a BIF be invoked exactly like compiled code through
// the frame engine.
//
// A handful of natives (spawn_link, send, read_timer) need scheduler
// capabilities this package has no business importing directly — bif
// must not depend on package scheduler, since scheduler depends on bif
// for its frame hooks. Host inverts that dependency the same way
// frame.ProcessHandle does: bif defines the interface it needs,
// scheduler.Scheduler implements it.
package bif

import (
	"github.com/pkg/errors"

	"github.com/ktkr-us/beamcore/atom"
	"github.com/ktkr-us/beamcore/frame"
	"github.com/ktkr-us/beamcore/process"
	"github.com/ktkr-us/beamcore/term"
)

// Exception is frame.Exception under the name SPEC_FULL.md §5.8 gives
// it. It has to be a type alias rather than a fresh struct: frame.Run
// already needs the {class, reason, stacktrace} shape for Signal
// (package frame cannot import bif, or bif's own dependency on frame
// would cycle), so the type lives in frame and bif re-exports the name
// BIF authors actually write.
type Exception = frame.Exception

// Native is a built-in function body: spec.md §6's
// "native(process, args…) returns Ok(Term) or Err(Exception)".
type Native func(tb *atom.Table, p *process.Process, args []term.Term) (term.Term, *Exception)

// Host is the scheduler-level capability surface a handful of natives
// need (spawning, sending, reading a timer) that plain process state
// can't provide on its own.
type Host interface {
	SpawnLink(parent *process.Process, mfa frame.MFA, args []term.Term) (childPid term.Term, err *frame.Exception)
	Send(from *process.Process, target, msg term.Term) (term.Term, *frame.Exception)
	// ReadTimer decodes ref against asking's heap (references carry their
	// identity as a {creator, counter} word pair that survives a copying
	// GC intact, so any heap currently holding a copy of ref can decode
	// it — asking need not be the process that originally started the
	// timer).
	ReadTimer(asking *process.Process, ref term.Term) (term.Term, *frame.Exception)
}

// PlaceFrameWithArguments pushes args in declaration order and installs
// native as a frame under mfa; the frame pops them back off and hands
// native a slice in declaration order — the
// general shape every otp/erlang/*_2.rs "place_frame_with_arguments"
// function in the original runtime follows (see subtract_2.rs).
func PlaceFrameWithArguments(p *process.Process, placement frame.Placement, tb *atom.Table, mfa frame.MFA, native Native, args ...term.Term) error {
	for _, a := range args {
		if err := p.StackPush(a); err != nil {
			return errors.Wrap(err, "bif: place_frame_with_arguments")
		}
	}
	argc := len(args)
	code := func(ph frame.ProcessHandle) frame.Signal {
		pp, ok := ph.(*process.Process)
		if !ok {
			panic("bif: place_frame_with_arguments requires a *process.Process")
		}
		popped := make([]term.Term, argc)
		for i := argc - 1; i >= 0; i-- {
			v, ok := pp.StackPop()
			if !ok {
				panic("bif: frame invoked with fewer stacked arguments than declared")
			}
			popped[i] = v
		}
		value, exc := native(tb, pp, popped)
		if exc != nil {
			return frame.Raise(*exc)
		}
		if err := pp.ReturnFromCall(value); err != nil {
			exc := SystemLimit(tb)
			return frame.Raise(exc)
		}
		return frame.Return(value)
	}
	p.PlaceFrame(frame.Frame{MFA: mfa, Code: code}, placement)
	return nil
}

func exception(tb *atom.Table, class frame.Class, reasonAtom string) frame.Exception {
	id, err := tb.Intern(reasonAtom)
	if err != nil {
		panic(errors.Wrap(err, "bif: interning a built-in exception reason"))
	}
	return frame.Exception{Class: class, Reason: term.MakeAtom(id)}
}

// Badarg is error:badarg — "argument fails a type or range
// precondition" (spec.md §6).
func Badarg(tb *atom.Table) frame.Exception { return exception(tb, frame.ClassError, "badarg") }

// Badarith is error:badarith — "non-numeric operand in arithmetic".
func Badarith(tb *atom.Table) frame.Exception { return exception(tb, frame.ClassError, "badarith") }

// SystemLimit is error:system_limit — "atom table, heap size, or
// reference counter exhausted".
func SystemLimit(tb *atom.Table) frame.Exception {
	return exception(tb, frame.ClassError, "system_limit")
}

// FunctionClause is error:function_clause.
func FunctionClause(tb *atom.Table) frame.Exception {
	return exception(tb, frame.ClassError, "function_clause")
}

// IfClause is error:if_clause.
func IfClause(tb *atom.Table) frame.Exception { return exception(tb, frame.ClassError, "if_clause") }

// Badmatch is error:badmatch(V).
func Badmatch(tb *atom.Table, p *process.Process, v term.Term) frame.Exception {
	return wrapReason(tb, p, frame.ClassError, "badmatch", v)
}

// CaseClause is error:case_clause(V).
func CaseClause(tb *atom.Table, p *process.Process, v term.Term) frame.Exception {
	return wrapReason(tb, p, frame.ClassError, "case_clause", v)
}

// Undef is error:undef{M, F, A} — "call to unloaded or unexported
// {M,F,A}" — represented as the 3-tuple {module, function, arity}
// wrapped in an undef tag, mirroring how badmatch/case_clause wrap
// their value.
func Undef(tb *atom.Table, p *process.Process, mfa frame.MFA) frame.Exception {
	modTerm := term.MakeAtom(atom.ID(mfa.Module))
	funTerm := term.MakeAtom(atom.ID(mfa.Function))
	arityTerm, ok := term.MakeSmallInt(int64(mfa.Arity))
	if !ok {
		panic("bif: arity does not fit a small int")
	}
	mfaTuple, err := term.MakeTuple(p.Heap, []term.Term{modTerm, funTerm, arityTerm})
	if err != nil {
		panic(errors.Wrap(err, "bif: building an undef reason tuple"))
	}
	return wrapReason(tb, p, frame.ClassError, "undef", mfaTuple)
}

// Exit is exit:Reason — "deliberate termination; propagates to links".
func Exit(reason term.Term) frame.Exception {
	return frame.Exception{Class: frame.ClassExit, Reason: reason}
}

// Throw is throw:V — becomes error:{nocatch, V} if it escapes uncaught;
// that translation happens where a frame stack finishes unwinding with
// nothing left to catch it (package scheduler), since only the
// scheduler observes "uncaught".
func Throw(v term.Term) frame.Exception {
	return frame.Exception{Class: frame.ClassThrow, Reason: v}
}

func wrapReason(tb *atom.Table, p *process.Process, class frame.Class, tag string, v term.Term) frame.Exception {
	id, err := tb.Intern(tag)
	if err != nil {
		panic(errors.Wrap(err, "bif: interning an exception tag"))
	}
	tup, err := term.MakeTuple(p.Heap, []term.Term{term.MakeAtom(id), v})
	if err != nil {
		panic(errors.Wrap(err, "bif: building a tagged exception reason"))
	}
	return frame.Exception{Class: class, Reason: tup}
}
