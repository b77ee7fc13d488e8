package term

import (
	"github.com/ktkr-us/beamcore/heap"
	"github.com/ktkr-us/beamcore/resource"
)

// MakeResource boxes a handle into a host-side registry (package
// resource). Comparisons between resource terms use handle identity,
// which stands in for the pointer identity spec.md §6 calls for since
// Go code never holds a raw pointer to the host object here.
func MakeResource(h *heap.Heap, handle resource.Handle) (Term, error) {
	t, base, err := alloc(h, btResource, 1, 1)
	if err != nil {
		return 0, err
	}
	h.Words()[base+1] = heap.Word(handle)
	h.PushResource(heap.Word(handle))
	return t, nil
}

// IsResource reports whether t is a boxed resource reference.
func IsResource(h *heap.Heap, t Term) bool {
	return primaryTag(t) == ptBoxed && boxTagOf(h, t) == btResource
}

// ResourceHandle decodes a resource term's registry handle.
func ResourceHandle(h *heap.Heap, t Term) resource.Handle {
	_, _, base := boxedHeader(h, t)
	return resource.Handle(h.Words()[base+1])
}
