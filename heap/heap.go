// Package heap implements the per-process bump-allocated term heap
// described in spec.md §4.3: a contiguous region of machine words used as
// a bump arena, with off-heap reference-counted binaries (Procbin) held
// separately and tracked in a per-heap list.
//
// Heap itself is deliberately ignorant of term encoding — it allocates
// and stores opaque Words and leaves interpreting their bits to package
// term, which avoids an import cycle between the two (term allocates
// through a Heap; Heap must not need to know what a Term is).
package heap

import (
	"sync"

	"github.com/pkg/errors"
)

// Word is one heap slot. Boxed terms reference a Word index into the
// owning Heap rather than a raw pointer, which keeps allocation entirely
// within ordinary, GC-safe Go slices instead of reaching for unsafe
// pointer arithmetic.
type Word uintptr

// ErrOutOfMemory is returned by AllocWords when the heap's current
// region has no room for the request. Heap does not collect or Grow on
// its own, because it cannot compute GC roots, and no caller in this
// module collects or grows and retries: the error is passed back up as
// is.
var ErrOutOfMemory = errors.New("heap: out of memory in current region")

// ErrSystemLimit is returned by Grow when the heap is already at its
// configured maximum size.
var ErrSystemLimit = errors.New("heap: system_limit, heap already at maximum size")

// Heap is a per-process bump-allocated term region plus the off-heap
// binaries it references. The zero value is not usable; call New.
type Heap struct {
	mu        sync.Mutex
	words     []Word
	top       int
	max       int
	procbins  []*Procbin
	resources []Word
}

// New returns a Heap with room for initialWords words. Grow doubles the
// region up to maxWords and returns ErrSystemLimit once it is there;
// allocation itself never grows the heap, and fails with ErrOutOfMemory
// as soon as the current region is full.
func New(initialWords, maxWords int) *Heap {
	if maxWords < initialWords {
		maxWords = initialWords
	}
	return &Heap{
		words: make([]Word, initialWords),
		max:   maxWords,
	}
}

// Lock acquires the heap for mutation. Callers must hold this before any
// term allocation, including the receiver's heap during a cross-process
// send copy (spec.md §5: "send-copy acquires the receiver's heap lock
// after reading source terms").
func (h *Heap) Lock() { h.mu.Lock() }

// Unlock releases the heap.
func (h *Heap) Unlock() { h.mu.Unlock() }

// AllocWords reserves n contiguous words and returns the index of the
// first one. It returns ErrOutOfMemory if the current region has no
// room; the caller must not hold this as the final word — Collect or
// Grow first, then retry. Callers must hold the heap lock.
func (h *Heap) AllocWords(n int) (int, error) {
	if h.top+n > len(h.words) {
		return 0, ErrOutOfMemory
	}
	base := h.top
	h.top += n
	return base, nil
}

// Words exposes the live portion of the backing region for direct
// reads/writes by package term, which alone understands the bit layout
// stored there. The returned slice is valid only while the heap lock is
// held and until the next Grow or ReplaceAfterCollect.
func (h *Heap) Words() []Word { return h.words[:h.top] }

// Cap returns the capacity of the current region, in words.
func (h *Heap) Cap() int { return len(h.words) }

// Len returns the number of words currently allocated (the bump
// pointer's position).
func (h *Heap) Len() int { return h.top }

// Grow doubles the heap's capacity, preserving existing word indices, up
// to the configured maximum. It returns ErrSystemLimit if the heap is
// already at its maximum.
func (h *Heap) Grow() error {
	if len(h.words) >= h.max {
		return ErrSystemLimit
	}
	newSize := len(h.words) * 2
	if newSize == 0 {
		newSize = 16
	}
	if newSize > h.max {
		newSize = h.max
	}
	grown := make([]Word, newSize)
	copy(grown, h.words)
	h.words = grown
	return nil
}

// PushProcbin records an off-heap binary referenced from this heap and
// returns its index, used as the payload of a boxed procbin term.
func (h *Heap) PushProcbin(p *Procbin) int {
	h.procbins = append(h.procbins, p)
	return len(h.procbins) - 1
}

// Procbin returns the off-heap binary at index i, as pushed by
// PushProcbin.
func (h *Heap) Procbin(i int) *Procbin { return h.procbins[i] }

// Procbins returns the heap's full procbin list, for GC root scanning.
func (h *Heap) Procbins() []*Procbin { return h.procbins }

// PushResource records a resource handle boxed onto this heap and
// returns its index. The handle itself is opaque to Heap — package term
// stores a resource.Handle value through here, keeping Heap ignorant of
// what a resource is the same way it is of what a Term is.
func (h *Heap) PushResource(handle Word) int {
	h.resources = append(h.resources, handle)
	return len(h.resources) - 1
}

// Resources returns every resource handle ever boxed onto this heap.
// Unlike Procbins, this is not a GC root list: a copying collection only
// re-pushes the handles it actually finds reachable (see term.Collect),
// so after a collection this naturally holds just the survivors.
func (h *Heap) Resources() []Word { return h.resources }

// ReplaceAfterCollect installs a freshly-collected region, procbin list,
// and resource manifest, as computed by a copying collection in package
// term. The caller must hold the heap lock.
func (h *Heap) ReplaceAfterCollect(words []Word, top int, procbins []*Procbin, resources []Word) {
	h.words = words
	h.top = top
	h.procbins = procbins
	h.resources = resources
}
