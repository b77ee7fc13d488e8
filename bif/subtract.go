package bif

import (
	"math/big"

	"github.com/ktkr-us/beamcore/atom"
	"github.com/ktkr-us/beamcore/frame"
	"github.com/ktkr-us/beamcore/process"
	"github.com/ktkr-us/beamcore/term"
)

// Subtract2 implements erlang:'-'/2 (binary subtraction, surfaced in
// the original runtime as otp/erlang/subtract_2.rs), grounded on
// spec.md §8 scenario 3: `native(process, int(5), int(3)) = Ok(int(2))`
// and `native(process, atom("a"), int(1)) = Err(badarith)`. A float on
// either side promotes the whole operation to float, matching BEAM's
// usual arithmetic coercion; two integers subtract exactly via
// math/big and renormalize, since int64 subtraction can overflow where
// a bigint-backed term can't.
func Subtract2(tb *atom.Table, p *process.Process, args []term.Term) (term.Term, *Exception) {
	minuend, subtrahend := args[0], args[1]
	if !term.IsNumber(p.Heap, minuend) || !term.IsNumber(p.Heap, subtrahend) {
		exc := Badarith(tb)
		return 0, &exc
	}

	p.Charge(1)

	if term.IsFloat(p.Heap, minuend) || term.IsFloat(p.Heap, subtrahend) {
		diff := term.ToFloat(p.Heap, minuend) - term.ToFloat(p.Heap, subtrahend)
		v, err := term.MakeFloat(p.Heap, diff)
		if err != nil {
			exc := SystemLimit(tb)
			return 0, &exc
		}
		return v, nil
	}

	diff := new(big.Int).Sub(term.ToBigInt(p.Heap, minuend), term.ToBigInt(p.Heap, subtrahend))
	v, err := term.NormalizeBigInt(p.Heap, diff)
	if err != nil {
		exc := SystemLimit(tb)
		return 0, &exc
	}
	return v, nil
}

// PlaceSubtract2 installs Subtract2 under the erlang:'-'/2 identity.
func PlaceSubtract2(p *process.Process, placement frame.Placement, tb *atom.Table, mfa frame.MFA, minuend, subtrahend term.Term) error {
	return PlaceFrameWithArguments(p, placement, tb, mfa, Subtract2, minuend, subtrahend)
}
