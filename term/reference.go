package term

import (
	"sync/atomic"

	"github.com/ktkr-us/beamcore/heap"
)

// RefCounter is a monotonic, per-process atomic counter. Each Process
// owns one; spec.md §3: "64-bit monotonically increasing counter per
// process, extended with the pid to be globally unique".
type RefCounter struct {
	n uint64
}

// Next returns the next counter value, starting at 1 so the zero value
// is never handed out (useful as an internal "no reference" sentinel).
func (c *RefCounter) Next() uint64 {
	return atomic.AddUint64(&c.n, 1)
}

// MakeReference boxes a reference: a 64-bit counter value plus the pid
// of the process that minted it.
func MakeReference(h *heap.Heap, creator Term, counter uint64) (Term, error) {
	t, base, err := alloc(h, btReference, 2, 2)
	if err != nil {
		return 0, err
	}
	words := h.Words()
	words[base+1] = heap.Word(creator)
	words[base+2] = heap.Word(counter)
	return t, nil
}

// IsReference reports whether t is a boxed reference.
func IsReference(h *heap.Heap, t Term) bool {
	return primaryTag(t) == ptBoxed && boxTagOf(h, t) == btReference
}

// ReferenceParts decodes a boxed reference into its creator pid and
// counter value.
func ReferenceParts(h *heap.Heap, t Term) (creator Term, counter uint64) {
	_, _, base := boxedHeader(h, t)
	words := h.Words()
	return Term(words[base+1]), uint64(words[base+2])
}
