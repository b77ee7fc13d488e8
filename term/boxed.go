package term

import "github.com/ktkr-us/beamcore/heap"

// A boxed term's first heap word is a header: a boxed tag in the low
// bits and a size field (meaning depends on the tag) in the rest.
const (
	boxTagBits = 5
	boxTagMask = 1<<boxTagBits - 1
)

type boxTag Word

const (
	btBigInt boxTag = iota
	btFloat
	btReference
	btExternalPid
	btExternalPort
	btTuple
	btMap
	btHeapBinary
	btSubBinary
	btProcBin
	btClosure
	btResource
)

func makeHeader(tag boxTag, size int) heap.Word {
	return heap.Word(uint64(size)<<boxTagBits | uint64(tag)&boxTagMask)
}

func headerTag(h heap.Word) boxTag {
	return boxTag(uint64(h) & boxTagMask)
}

func headerSize(h heap.Word) int {
	return int(uint64(h) >> boxTagBits)
}

// boxedHeader reads the header word at the target of a boxed term. It
// panics if t is not boxed; callers are expected to have already
// dispatched on primaryTag via Decode or an Is* predicate.
func boxedHeader(h *heap.Heap, t Term) (boxTag, int, int) {
	idx := boxedIndex(t)
	header := h.Words()[idx]
	return headerTag(header), headerSize(header), idx
}

func alloc(h *heap.Heap, tag boxTag, size int, extraWords int) (Term, int, error) {
	base, err := h.AllocWords(1 + extraWords)
	if err != nil {
		return 0, 0, err
	}
	words := h.Words()
	words[base] = makeHeader(tag, size)
	return makeBoxed(base), base, nil
}
