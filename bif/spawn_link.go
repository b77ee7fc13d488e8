package bif

import (
	"github.com/ktkr-us/beamcore/atom"
	"github.com/ktkr-us/beamcore/frame"
	"github.com/ktkr-us/beamcore/process"
	"github.com/ktkr-us/beamcore/term"
)

// SpawnLink3 implements erlang:spawn_link/3, grounded on
// otp/erlang/spawn_link_3/test/.../with_loaded_module.rs: spawn a new
// linked process running Module:Function(Arguments); if the MFA can't
// be resolved to loaded code the child immediately exits undef, and
// because the link exists before either process runs, the caller (not
// trapping exits) takes that same exit too. All of that propagation is
// scheduler business — this native only validates its arguments and
// delegates to Host.SpawnLink, which does the linking and the
// resolve-or-undef dance.
func SpawnLink3(host Host) Native {
	return func(tb *atom.Table, p *process.Process, args []term.Term) (term.Term, *frame.Exception) {
		module, function, arguments := args[0], args[1], args[2]
		if !term.IsAtomTerm(module) || !term.IsAtomTerm(function) {
			exc := Badarg(tb)
			return 0, &exc
		}
		argv, ok := term.ListToSlice(p.Heap, arguments)
		if !ok {
			exc := Badarg(tb)
			return 0, &exc
		}
		mfa := frame.MFA{
			Module:   term.Word(term.AtomID(module)),
			Function: term.Word(term.AtomID(function)),
			Arity:    len(argv),
		}
		childPid, exc := host.SpawnLink(p, mfa, argv)
		if exc != nil {
			return 0, exc
		}
		return childPid, nil
	}
}

// PlaceSpawnLink3 installs SpawnLink3(host) under the
// erlang:spawn_link/3 identity.
func PlaceSpawnLink3(p *process.Process, placement frame.Placement, tb *atom.Table, mfa frame.MFA, host Host, module, function, arguments term.Term) error {
	return PlaceFrameWithArguments(p, placement, tb, mfa, SpawnLink3(host), module, function, arguments)
}
