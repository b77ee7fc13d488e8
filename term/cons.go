package term

import "github.com/ktkr-us/beamcore/heap"

// MakeCons allocates a single cons cell (head, tail) and returns a list
// term pointing to it. Cons cells are built bottom-up by callers; there
// is no mutator that can later rewrite a tail to close a cycle (spec.md
// §9 design note).
func MakeCons(h *heap.Heap, head, tail Term) (Term, error) {
	base, err := h.AllocWords(2)
	if err != nil {
		return 0, err
	}
	words := h.Words()
	words[base] = heap.Word(head)
	words[base+1] = heap.Word(tail)
	return makeList(base), nil
}

// Head and Tail read a cons cell's slots. Callers must have already
// established t is a non-nil list (e.g. via IsList(t) && !IsNil(t)).
func Head(h *heap.Heap, t Term) Term {
	return Term(h.Words()[listIndex(t)])
}

func Tail(h *heap.Heap, t Term) Term {
	return Term(h.Words()[listIndex(t)+1])
}

// IsCons reports whether t is a non-nil list cell.
func IsCons(t Term) bool { return primaryTag(t) == ptList }

// IsProperList reports whether t is [] or a chain of cons cells ending
// in []. An improper list (one whose final tail is some other term)
// reports false. Terms are finite by construction, so this always
// terminates.
func IsProperList(h *heap.Heap, t Term) bool {
	for {
		if IsNil(t) {
			return true
		}
		if !IsCons(t) {
			return false
		}
		t = Tail(h, t)
	}
}

// ListToSlice flattens a proper list into a Go slice, in order. It
// reports false if t is not a proper list.
func ListToSlice(h *heap.Heap, t Term) ([]Term, bool) {
	var out []Term
	for {
		if IsNil(t) {
			return out, true
		}
		if !IsCons(t) {
			return nil, false
		}
		out = append(out, Head(h, t))
		t = Tail(h, t)
	}
}

// SliceToList builds a proper list from elems, in order, most recently
// built tail first so the result preserves elems' order.
func SliceToList(h *heap.Heap, elems []Term) (Term, error) {
	list := Nil
	for i := len(elems) - 1; i >= 0; i-- {
		var err error
		list, err = MakeCons(h, elems[i], list)
		if err != nil {
			return 0, err
		}
	}
	return list, nil
}

// Concatenate implements the two-argument list-append primitive behind
// lists:concatenate/2's pairwise step. It preserves a deliberate BEAM
// quirk noted in spec.md §9: when the first argument is [], the second
// is returned completely unchanged, even if it is not itself a list.
func Concatenate(h *heap.Heap, a, b Term) (Term, error) {
	if IsNil(a) {
		return b, nil
	}
	elems, ok := ListToSlice(h, a)
	if !ok {
		return 0, errNotAProperList
	}
	list := b
	for i := len(elems) - 1; i >= 0; i-- {
		var err error
		list, err = MakeCons(h, elems[i], list)
		if err != nil {
			return 0, err
		}
	}
	return list, nil
}
