package term

import (
	"github.com/pkg/errors"

	"github.com/ktkr-us/beamcore/heap"
)

// Collect runs a copying garbage collection over h: every term reachable
// from roots is copied into a fresh region of the same capacity, roots is
// updated in place to the relocated terms, and h is left pointing at the
// new region (spec.md §4.3/§9: "garbage collection is a copying
// collector scoped to a single process heap").
//
// Off-heap procbins referenced by a surviving term keep their refcount
// exactly as it was — the term's ownership of the reference moves with
// it, it is not duplicated. Procbins referenced only by terms that did
// not survive have that one reference released, possibly freeing them.
// Resource handles are not refcount-adjusted here for the same reason:
// copyBoxed re-boxes a surviving resource term onto tmp, which rebuilds
// tmp's resource manifest out of exactly the handles still reachable —
// a relocation, not a new reference, so the registry entry's count is
// untouched. A handle referenced only by terms that did not survive
// simply never gets re-pushed and is picked up at process teardown
// instead (see scheduler.exit), the same way a procbin found only in
// dead terms is released here rather than carried forward.
//
// Callers must hold h's lock for the duration of the call.
func Collect(h *heap.Heap, roots []Term) {
	tmp := heap.New(h.Cap(), h.Cap())

	forward := make(map[int]Term)
	touchedProcbin := make(map[int]bool)

	var copyTerm func(Term) Term
	copyTerm = func(t Term) Term {
		switch primaryTag(t) {
		case ptImmediate:
			return t
		case ptList:
			old := listIndex(t)
			if nt, ok := forward[old]; ok {
				return nt
			}
			words := h.Words()
			head, tail := Term(words[old]), Term(words[old+1])
			base, err := tmp.AllocWords(2)
			if err != nil {
				panic(errors.Wrap(err, "term: gc ran out of room copying a live cons cell"))
			}
			nt := makeList(base)
			forward[old] = nt
			newHead, newTail := copyTerm(head), copyTerm(tail)
			words = tmp.Words()
			words[base] = heap.Word(newHead)
			words[base+1] = heap.Word(newTail)
			return nt
		case ptBoxed:
			old := boxedIndex(t)
			if nt, ok := forward[old]; ok {
				return nt
			}
			nt := copyBoxed(h, tmp, t, copyTerm, touchedProcbin)
			forward[old] = nt
			return nt
		default:
			return t
		}
	}

	for i, r := range roots {
		roots[i] = copyTerm(r)
	}

	for i, p := range h.Procbins() {
		if !touchedProcbin[i] {
			p.Release()
		}
	}

	finalWords := tmp.Words()[:cap(tmp.Words())]
	h.ReplaceAfterCollect(finalWords, tmp.Len(), tmp.Procbins(), tmp.Resources())
}

// CopyTerm deep-copies t out of src and into dst, the shape cross-process
// message send needs (spec.md §4.6: "deep-copy msg into the receiver's
// heap") as opposed to Collect's in-place relocation. The two differ in
// one way that matters: a surviving reference under Collect *moves* (the
// source is about to be discarded, so the procbin refcount is
// untouched), while a reference copied by CopyTerm is a genuine
// duplication — src keeps its copy, dst gets a new one — so every
// touched procbin is explicitly Retained here. A copied resource term
// is pushed onto dst's resource manifest the same way MakeResource
// always does, which is enough for dst's own eventual process teardown
// to find and release it, but package term has no registry handle to
// call Retain on at the moment of duplication — that is on the caller
// (scheduler.copyTerm diffs dst's manifest before and after the call
// and retains whatever this copy added).
//
// Callers must hold whichever locks src and dst require for the
// duration of the call; for a cross-process send that means the
// receiver's heap lock (the sender's own heap is only being read, not
// mutated).
func CopyTerm(dst, src *heap.Heap, t Term) Term {
	forward := make(map[int]Term)
	touchedProcbin := make(map[int]bool)

	var copyTerm func(Term) Term
	copyTerm = func(t Term) Term {
		switch primaryTag(t) {
		case ptImmediate:
			return t
		case ptList:
			old := listIndex(t)
			if nt, ok := forward[old]; ok {
				return nt
			}
			words := src.Words()
			head, tail := Term(words[old]), Term(words[old+1])
			base, err := dst.AllocWords(2)
			if err != nil {
				panic(errors.Wrap(err, "term: copy_term ran out of room on a cons cell"))
			}
			nt := makeList(base)
			forward[old] = nt
			newHead, newTail := copyTerm(head), copyTerm(tail)
			words = dst.Words()
			words[base] = heap.Word(newHead)
			words[base+1] = heap.Word(newTail)
			return nt
		case ptBoxed:
			old := boxedIndex(t)
			if nt, ok := forward[old]; ok {
				return nt
			}
			nt := copyBoxed(src, dst, t, copyTerm, touchedProcbin)
			forward[old] = nt
			return nt
		default:
			return t
		}
	}

	result := copyTerm(t)
	for idx := range touchedProcbin {
		src.Procbin(idx).Retain()
	}
	return result
}

// copyBoxed copies the single boxed object t (not yet memoized by the
// caller) into tmp, recursing into any Term-valued fields via copyTerm.
func copyBoxed(h, tmp *heap.Heap, t Term, copyTerm func(Term) Term, touchedProcbin map[int]bool) Term {
	tag, _, base := boxedHeader(h, t)
	must := func(nt Term, err error) Term {
		if err != nil {
			panic(errors.Wrap(err, "term: gc ran out of room copying a live boxed term"))
		}
		return nt
	}
	switch tag {
	case btBigInt:
		return must(MakeBigInt(tmp, BigIntValue(h, t)))
	case btFloat:
		return must(MakeFloat(tmp, FloatValue(h, t)))
	case btReference:
		creator, counter := ReferenceParts(h, t)
		return must(MakeReference(tmp, copyTerm(creator), counter))
	case btExternalPid:
		node, number, serial := ExternalPidParts(h, t)
		return must(MakeExternalPid(tmp, copyTerm(node), number, serial))
	case btExternalPort:
		node, number := ExternalPortParts(h, t)
		return must(MakeExternalPort(tmp, copyTerm(node), number))
	case btTuple:
		elems := TupleElements(h, t)
		for i, e := range elems {
			elems[i] = copyTerm(e)
		}
		return must(MakeTuple(tmp, elems))
	case btMap:
		keys, values := MapPairs(h, t)
		for i := range keys {
			keys[i] = copyTerm(keys[i])
			values[i] = copyTerm(values[i])
		}
		return must(MakeMap(tmp, keys, values))
	case btHeapBinary:
		return must(MakeHeapBinary(tmp, HeapBinaryBytes(h, t)))
	case btSubBinary:
		parent, bitOffset, bitLength, _ := subBinaryParts(h, t)
		return must(MakeSubBinary(tmp, copyTerm(parent), bitOffset, bitLength))
	case btProcBin:
		idx := int(h.Words()[base+1])
		touchedProcbin[idx] = true
		return must(MakeProcbin(tmp, h.Procbin(idx)))
	case btClosure:
		mfa := ClosureMFA(h, t)
		env := ClosureEnv(h, t)
		for i, e := range env {
			env[i] = copyTerm(e)
		}
		return must(MakeClosure(tmp, mfa, env))
	case btResource:
		return must(MakeResource(tmp, ResourceHandle(h, t)))
	default:
		panic(errors.Errorf("term: gc encountered unknown boxed tag %d", tag))
	}
}
