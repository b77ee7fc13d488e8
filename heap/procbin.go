package heap

import "sync/atomic"

// ProcbinThreshold is the byte size above which a binary is allocated
// off-heap as a Procbin rather than inline on the process heap (spec.md
// §4.3).
const ProcbinThreshold = 64

// Procbin is a reference-counted, off-heap binary blob. Multiple process
// heaps may hold terms referencing the same Procbin (e.g. after a
// message send copies the boxed reference but not the bytes, or after a
// sub-binary is taken); the bytes are freed only once the last reference
// is released.
type Procbin struct {
	Data     []byte
	refcount int64
}

// NewProcbin wraps data in a Procbin with an initial refcount of 1.
func NewProcbin(data []byte) *Procbin {
	return &Procbin{Data: data, refcount: 1}
}

// Retain increments the refcount. Called whenever a new term is made to
// reference this Procbin (a copy into another heap, a sub-binary taken
// against it).
func (p *Procbin) Retain() {
	atomic.AddInt64(&p.refcount, 1)
}

// Release decrements the refcount and reports whether this was the last
// reference. Callers that get true back should treat p.Data as gone;
// Release itself does not need to zero it since Go's GC reclaims the
// backing array once unreferenced.
func (p *Procbin) Release() bool {
	return atomic.AddInt64(&p.refcount, -1) == 0
}

// RefCount returns the current refcount, for tests and diagnostics.
func (p *Procbin) RefCount() int64 {
	return atomic.LoadInt64(&p.refcount)
}
