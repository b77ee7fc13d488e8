// Package frame implements the frame & reduction engine described in
// spec.md §4.5: a frame couples an MFA identity with a code
// continuation, and Run drives a process's frame stack exactly as the
// five-step engine loop the spec spells out.
//
// frame intentionally does not import package process: a Frame's code
// function only needs a handful of operations on whatever process is
// running it, so it is expressed against the ProcessHandle interface
// here instead. process.Process satisfies it; this keeps the natural
// process → frame dependency one-directional.
package frame

import "github.com/ktkr-us/beamcore/term"

// MFA is the identity every frame carries. It is term.MFA verbatim —
// the same triple a boxed closure captures — so a frame built to run a
// closure and the closure's own identity never drift apart.
type MFA = term.MFA

// Placement controls where place_frame installs a new frame relative to
// the one currently on top of the stack.
type Placement int

const (
	// Push installs the new frame below the current one: the current
	// frame will resume once the pushed frame returns.
	Push Placement = iota
	// Replace overwrites the current frame, the shape a tail call takes.
	Replace
)

func (p Placement) String() string {
	if p == Replace {
		return "replace"
	}
	return "push"
}

// Code is a compiled function body: one step of work against the
// process that owns the frame, returning a control token instead of
// directly recursing into the next frame (spec.md §9: "Cooperative
// scheduling ... represented as frames returning control tokens rather
// than coroutines; the scheduler owns the loop"). A BIF's code,
// mirroring the original runtime's native/code split, pops its
// arguments off the stack, calls native, and turns the result into a
// Return or Exception signal; Run is what actually advances to
// whatever frame comes next, not Code itself.
type Code func(ProcessHandle) Signal

// Frame is a single stack record: an identity plus the code that runs
// when this frame is on top.
type Frame struct {
	MFA  MFA
	Code Code
}

// ProcessHandle is everything the frame engine needs from a process,
// independent of package process's concrete PCB layout.
type ProcessHandle interface {
	// Reduce charges one reduction against the budget and reports
	// whether the process may continue running this quantum.
	Reduce() Signal
	// StackPush/StackPop move plain argument/result words across frame
	// boundaries; they are distinct from the frame stack itself.
	StackPush(t term.Term) error
	StackPop() (term.Term, bool)
	// PlaceFrame installs f per placement.
	PlaceFrame(f Frame, placement Placement)
	// CurrentFrame returns the frame on top of the stack, if any.
	CurrentFrame() (Frame, bool)
	// PopFrame removes and returns the frame on top of the stack.
	PopFrame() (Frame, bool)
	// ReturnFromCall pops the current frame and records value as the
	// result available to whatever frame runs next.
	ReturnFromCall(value term.Term) error
}

// SignalKind discriminates the control token a Code function or Run
// itself hands back to its caller.
type SignalKind int

const (
	// SignalContinue means keep running this process in the current
	// quantum; Run should advance to the next frame immediately.
	SignalContinue SignalKind = iota
	// SignalYield means the reduction budget is exhausted; the process
	// should be marked Runnable and re-enqueued.
	SignalYield
	// SignalReturn carries a frame's result back up.
	SignalReturn
	// SignalException carries an unhandled exception out of the frame
	// stack.
	SignalException
)

func (k SignalKind) String() string {
	switch k {
	case SignalContinue:
		return "continue"
	case SignalYield:
		return "yield"
	case SignalReturn:
		return "return"
	case SignalException:
		return "exception"
	default:
		return "unknown"
	}
}

// Signal is the tagged-variant control token frame code and Run pass
// around, matching the decoding style package term uses for terms
// (spec.md §9: match on a tagged variant instead of virtual dispatch).
type Signal struct {
	Kind      SignalKind
	Value     term.Term // meaningful when Kind == SignalReturn
	Exception Exception // meaningful when Kind == SignalException
}

// Continue, Yield, Return and Raise build the four Signal shapes.
func Continue() Signal { return Signal{Kind: SignalContinue} }
func Yield() Signal    { return Signal{Kind: SignalYield} }
func Return(v term.Term) Signal {
	return Signal{Kind: SignalReturn, Value: v}
}
func Raise(exc Exception) Signal {
	return Signal{Kind: SignalException, Exception: exc}
}

// Class is the exception class named in spec.md §6.
type Class int

const (
	ClassError Class = iota
	ClassExit
	ClassThrow
)

func (c Class) String() string {
	switch c {
	case ClassError:
		return "error"
	case ClassExit:
		return "exit"
	case ClassThrow:
		return "throw"
	default:
		return "unknown"
	}
}

// Exception is the {class, reason, stacktrace} triple spec.md §6/§7
// describe: reason and stacktrace are ordinary terms (an atom for
// simple reasons like badarg, a tuple for badmatch(V) and friends) so
// BIFs never need anything beyond the term package to build one.
type Exception struct {
	Class      Class
	Reason     term.Term
	Stacktrace term.Term
}

// Run drives ph's frame stack for one scheduling quantum, implementing
// the five-step loop from spec.md §4.5 verbatim:
//
//  1. reductions exhausted → Yield.
//  2. invoke the top frame's code.
//  3. Return(v) → remember v and continue (the frame already popped
//     itself via ReturnFromCall before returning this signal).
//  4. Exception → unwind; this core has no catch-frame machinery of its
//     own (compiled code owns try/catch, per spec.md §6's "compiled
//     code contract" — the core only needs to propagate the signal), so
//     Run simply hands the exception straight back to the scheduler,
//     which sets the process Exiting(reason).
//  5. Yield → same as (1).
//
// Run returns when the process yields, raises an uncaught exception, or
// its frame stack empties (a normal return to the scheduler, carrying
// the value of the last Return, or Nil if no frame returned one).
func Run(ph ProcessHandle) Signal {
	last := term.Nil
	for {
		if sig := ph.Reduce(); sig.Kind == SignalYield {
			return sig
		}

		f, ok := ph.CurrentFrame()
		if !ok {
			return Return(last)
		}

		switch sig := f.Code(ph); sig.Kind {
		case SignalContinue:
			continue
		case SignalReturn:
			last = sig.Value
			continue
		case SignalYield:
			return sig
		case SignalException:
			return sig
		default:
			return sig
		}
	}
}
