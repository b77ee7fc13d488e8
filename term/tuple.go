package term

import "github.com/ktkr-us/beamcore/heap"

// IsTuple reports whether t is a boxed tuple.
func IsTuple(h *heap.Heap, t Term) bool {
	return primaryTag(t) == ptBoxed && boxTagOf(h, t) == btTuple
}

func boxTagOf(h *heap.Heap, t Term) boxTag {
	tag, _, _ := boxedHeader(h, t)
	return tag
}

// MakeTuple allocates a tuple of len(elems) slots, laid out contiguously
// after the header word, and copies elems into it.
func MakeTuple(h *heap.Heap, elems []Term) (Term, error) {
	t, base, err := alloc(h, btTuple, len(elems), len(elems))
	if err != nil {
		return 0, err
	}
	words := h.Words()
	for i, e := range elems {
		words[base+1+i] = heap.Word(e)
	}
	return t, nil
}

// TupleArity returns a tuple's slot count.
func TupleArity(h *heap.Heap, t Term) int {
	_, size, _ := boxedHeader(h, t)
	return size
}

// TupleElement returns the i-th slot of a tuple, 1-indexed as in
// Erlang's element/2. It reports false for i outside [1, arity], which
// the bif layer turns into error:badarg (spec.md §8: "i=0 or i>N raises
// badarg").
func TupleElement(h *heap.Heap, t Term, i int) (Term, bool) {
	_, size, base := boxedHeader(h, t)
	if i < 1 || i > size {
		return 0, false
	}
	return Term(h.Words()[base+i]), true
}

// TupleElements returns every slot of a tuple in order, for iteration
// and for GC root walking.
func TupleElements(h *heap.Heap, t Term) []Term {
	_, size, base := boxedHeader(h, t)
	out := make([]Term, size)
	words := h.Words()
	for i := 0; i < size; i++ {
		out[i] = Term(words[base+1+i])
	}
	return out
}
