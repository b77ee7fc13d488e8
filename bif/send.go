package bif

import (
	"github.com/ktkr-us/beamcore/atom"
	"github.com/ktkr-us/beamcore/frame"
	"github.com/ktkr-us/beamcore/process"
	"github.com/ktkr-us/beamcore/term"
)

// Send3 implements erlang:send/3 for local destinations only (spec.md's
// scope excludes distribution), grounded on
// otp/erlang/tests/send_3/with_proper_list_options/with_local_pid_destination/with_different_process.rs:
// the message reaches the destination's mailbox regardless of whether
// its heap happens to be locked at the moment of the call, and the call
// itself answers 'ok'. Options (noconnect, nosuspend, ...) only matter
// for distributed sends; locally they're validated as a proper list and
// otherwise ignored.
func Send3(host Host) Native {
	return func(tb *atom.Table, p *process.Process, args []term.Term) (term.Term, *frame.Exception) {
		target, msg, options := args[0], args[1], args[2]
		if !term.IsProperList(p.Heap, options) {
			exc := Badarg(tb)
			return 0, &exc
		}
		if _, exc := host.Send(p, target, msg); exc != nil {
			return 0, exc
		}
		id, err := tb.Intern("ok")
		if err != nil {
			exc := SystemLimit(tb)
			return 0, &exc
		}
		return term.MakeAtom(id), nil
	}
}

// PlaceSend3 installs Send3(host) under the erlang:send/3 identity.
func PlaceSend3(p *process.Process, placement frame.Placement, tb *atom.Table, mfa frame.MFA, host Host, target, msg, options term.Term) error {
	return PlaceFrameWithArguments(p, placement, tb, mfa, Send3(host), target, msg, options)
}
