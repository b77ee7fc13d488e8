package bif

import (
	"github.com/ktkr-us/beamcore/atom"
	"github.com/ktkr-us/beamcore/frame"
	"github.com/ktkr-us/beamcore/process"
	"github.com/ktkr-us/beamcore/term"
)

// ReadTimer2 implements erlang:read_timer/2, grounded on
// otp/erlang/tests/read_timer_2/with_reference/with_empty_list_options.rs:
// a reference that was never handed out by start_timer/send_after (or
// whose timer already fired/was cancelled) reads as the atom false;
// otherwise it reads as the number of milliseconds remaining. Options
// only select {async, true} in the original runtime, which changes how
// the *result* is delivered (synchronously vs. as a message) and not
// what it is — this core always answers synchronously, so options are
// validated and otherwise ignored, same as send/3.
func ReadTimer2(host Host) Native {
	return func(tb *atom.Table, p *process.Process, args []term.Term) (term.Term, *frame.Exception) {
		ref, options := args[0], args[1]
		if !term.IsReference(p.Heap, ref) {
			exc := Badarg(tb)
			return 0, &exc
		}
		if !term.IsProperList(p.Heap, options) {
			exc := Badarg(tb)
			return 0, &exc
		}
		v, exc := host.ReadTimer(p, ref)
		if exc != nil {
			return 0, exc
		}
		return v, nil
	}
}

// PlaceReadTimer2 installs ReadTimer2(host) under the
// erlang:read_timer/2 identity.
func PlaceReadTimer2(p *process.Process, placement frame.Placement, tb *atom.Table, mfa frame.MFA, host Host, ref, options term.Term) error {
	return PlaceFrameWithArguments(p, placement, tb, mfa, ReadTimer2(host), ref, options)
}
