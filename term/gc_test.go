package term

import (
	"testing"

	"github.com/ktkr-us/beamcore/atom"
	"github.com/ktkr-us/beamcore/heap"
	"github.com/ktkr-us/beamcore/resource"
)

func TestCollectPreservesLiveValues(t *testing.T) {
	h := newHeap()
	tb := atom.New()
	one, _ := MakeSmallInt(1)
	two, _ := MakeSmallInt(2)
	tup, err := MakeTuple(h, []Term{one, two})
	if err != nil {
		t.Fatal(err)
	}
	list, err := SliceToList(h, []Term{tup, one})
	if err != nil {
		t.Fatal(err)
	}

	roots := []Term{list}
	h.Lock()
	Collect(h, roots)
	h.Unlock()

	got, ok := ListToSlice(h, roots[0])
	if !ok || len(got) != 2 {
		t.Fatalf("list did not survive collection intact: %v, %v", got, ok)
	}
	elems := TupleElements(h, got[0])
	if len(elems) != 2 || !ExactEqual(h, elems[0], one) || !ExactEqual(h, elems[1], two) {
		t.Fatalf("tuple contents changed across collection: %v", elems)
	}
	if !ExactEqual(h, got[1], one) {
		t.Fatal("second list element changed across collection")
	}
}

func TestCollectDropsGarbage(t *testing.T) {
	h := newHeap()
	one, _ := MakeSmallInt(1)
	garbage, err := MakeTuple(h, []Term{one})
	if err != nil {
		t.Fatal(err)
	}
	_ = garbage
	before := h.Len()

	roots := []Term{one}
	h.Lock()
	Collect(h, roots)
	h.Unlock()

	if h.Len() >= before {
		t.Fatalf("collection did not shrink the heap after dropping an unreferenced tuple: before=%d after=%d", before, h.Len())
	}
}

func TestCollectReleasesUnreachableProcbin(t *testing.T) {
	h := newHeap()
	data := make([]byte, heap.ProcbinThreshold+1)
	dead, err := MakeBinary(h, data)
	if err != nil {
		t.Fatal(err)
	}
	_, idx := dead, 0
	p := h.Procbin(idx)
	if p.RefCount() != 1 {
		t.Fatalf("expected initial refcount 1, got %d", p.RefCount())
	}

	roots := []Term{} // the procbin term itself is not rooted
	h.Lock()
	Collect(h, roots)
	h.Unlock()

	if p.RefCount() != 0 {
		t.Fatalf("unreferenced procbin should have been released to refcount 0, got %d", p.RefCount())
	}
}

func TestCollectKeepsReachableProcbinRefcountUnchanged(t *testing.T) {
	h := newHeap()
	data := make([]byte, heap.ProcbinThreshold+1)
	live, err := MakeBinary(h, data)
	if err != nil {
		t.Fatal(err)
	}
	p := h.Procbin(0)

	roots := []Term{live}
	h.Lock()
	Collect(h, roots)
	h.Unlock()

	if p.RefCount() != 1 {
		t.Fatalf("a surviving procbin's refcount must not change across collection (it moves, it is not duplicated); got %d", p.RefCount())
	}
	if !IsProcbin(h, roots[0]) {
		t.Fatal("surviving procbin term lost its category across collection")
	}
}

func TestCopyTermPreservesStructureAcrossHeaps(t *testing.T) {
	src := newHeap()
	dst := newHeap()
	one, _ := MakeSmallInt(1)
	two, _ := MakeSmallInt(2)
	tup, err := MakeTuple(src, []Term{one, two})
	if err != nil {
		t.Fatal(err)
	}
	list, err := SliceToList(src, []Term{tup, one})
	if err != nil {
		t.Fatal(err)
	}

	copied := CopyTerm(dst, src, list)

	got, ok := ListToSlice(dst, copied)
	if !ok || len(got) != 2 {
		t.Fatalf("copied list malformed: %v, %v", got, ok)
	}
	elems := TupleElements(dst, got[0])
	if len(elems) != 2 || !ExactEqual(dst, elems[0], one) || !ExactEqual(dst, elems[1], two) {
		t.Fatalf("copied tuple contents wrong: %v", elems)
	}
}

func TestCopyTermRetainsDuplicatedProcbin(t *testing.T) {
	src := newHeap()
	dst := newHeap()
	data := make([]byte, heap.ProcbinThreshold+1)
	orig, err := MakeBinary(src, data)
	if err != nil {
		t.Fatal(err)
	}
	p := src.Procbin(0)
	if p.RefCount() != 1 {
		t.Fatalf("expected initial refcount 1, got %d", p.RefCount())
	}

	copied := CopyTerm(dst, src, orig)

	if p.RefCount() != 2 {
		t.Fatalf("copying a procbin into another heap should retain it (both heaps now reference it); got refcount %d", p.RefCount())
	}
	if !IsProcbin(dst, copied) || !ExactEqual(dst, copied, copied) {
		t.Fatal("copied term lost its procbin category")
	}
}

func TestCollectDropsUnreachableResourceFromManifest(t *testing.T) {
	h := newHeap()
	live, err := MakeResource(h, resource.Handle(1))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := MakeResource(h, resource.Handle(2)); err != nil {
		t.Fatal(err)
	}
	if got := len(h.Resources()); got != 2 {
		t.Fatalf("expected 2 manifest entries before collection, got %d", got)
	}

	roots := []Term{live}
	h.Lock()
	Collect(h, roots)
	h.Unlock()

	got := h.Resources()
	if len(got) != 1 || resource.Handle(got[0]) != 1 {
		t.Fatalf("collection should drop the unreachable handle from the manifest, got %v", got)
	}
	if ResourceHandle(h, roots[0]) != 1 {
		t.Fatal("surviving resource term lost its handle across collection")
	}
}

func TestCopyTermAddsResourceToDestinationManifest(t *testing.T) {
	src := newHeap()
	dst := newHeap()
	orig, err := MakeResource(src, resource.Handle(7))
	if err != nil {
		t.Fatal(err)
	}

	copied := CopyTerm(dst, src, orig)

	if !IsResource(dst, copied) || ResourceHandle(dst, copied) != 7 {
		t.Fatal("copied resource term lost its handle")
	}
	if got := dst.Resources(); len(got) != 1 || resource.Handle(got[0]) != 7 {
		t.Fatalf("copy should push the duplicated handle onto dst's manifest, got %v", got)
	}
	if got := src.Resources(); len(got) != 1 || resource.Handle(got[0]) != 7 {
		t.Fatalf("src's own manifest entry should be untouched by the copy, got %v", got)
	}
}
