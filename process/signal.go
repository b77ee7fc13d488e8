package process

import (
	"github.com/ktkr-us/beamcore/atom"
	"github.com/ktkr-us/beamcore/heap"
	"github.com/ktkr-us/beamcore/term"
)

// ExitMessage builds the 3-tuple {'EXIT', From, Reason} a trapping
// linked process receives in place of dying outright (spec.md §4.4;
// supplemented per SPEC_FULL.md §6, pinned down by the original
// runtime's process exit propagation tests). h must be the receiving
// process's own heap, already locked by the caller — from and reason
// must already live on h, which is the scheduler's job, not this
// constructor's: it only assembles the tuple shape.
func ExitMessage(h *heap.Heap, exitID atom.ID, from, reason term.Term) (term.Term, error) {
	return term.MakeTuple(h, []term.Term{term.MakeAtom(exitID), from, reason})
}

// DownMessage builds the 5-tuple {'DOWN', Ref, process, From, Reason} a
// monitor always receives regardless of trap_exit (spec.md §4.4).
func DownMessage(h *heap.Heap, downID, processID atom.ID, ref, from, reason term.Term) (term.Term, error) {
	return term.MakeTuple(h, []term.Term{term.MakeAtom(downID), ref, term.MakeAtom(processID), from, reason})
}
