package term

import (
	"math/big"
	"testing"

	"github.com/ktkr-us/beamcore/atom"
	"github.com/ktkr-us/beamcore/heap"
)

func newHeap() *heap.Heap { return heap.New(256, 4096) }

func TestSmallIntRoundTrip(t *testing.T) {
	for _, n := range []int64{0, 1, -1, SmallIntMax, SmallIntMin} {
		tm, ok := MakeSmallInt(n)
		if !ok {
			t.Fatalf("MakeSmallInt(%d) reported out of range", n)
		}
		if !IsSmallInt(tm) {
			t.Fatalf("IsSmallInt false for %d", n)
		}
		if got := SmallInt(tm); got != n {
			t.Fatalf("SmallInt round-trip: got %d, want %d", got, n)
		}
	}
	if _, ok := MakeSmallInt(SmallIntMax + 1); ok {
		t.Fatal("MakeSmallInt accepted a value one past the maximum")
	}
}

func TestNormalizeIntPromotes(t *testing.T) {
	h := newHeap()
	tm, err := NormalizeInt(h, SmallIntMax+1)
	if err != nil {
		t.Fatal(err)
	}
	if !IsBigInt(h, tm) {
		t.Fatal("value outside small-int range did not promote to a big integer")
	}
	if got := BigIntValue(h, tm); got.Cmp(big.NewInt(SmallIntMax+1)) != 0 {
		t.Fatalf("got %v, want %d", got, SmallIntMax+1)
	}
}

func TestNilDistinctFromEmptyBinary(t *testing.T) {
	h := newHeap()
	empty, err := MakeBinary(h, nil)
	if err != nil {
		t.Fatal(err)
	}
	if Nil == empty {
		t.Fatal("[] and <<>> must be distinct terms")
	}
	if !IsList(Nil) || IsBitstring(h, Nil) {
		t.Fatal("Nil miscategorized")
	}
	if IsList(empty) || !IsBitstring(h, empty) {
		t.Fatal("<<>> miscategorized")
	}
}

func TestAtomRoundTrip(t *testing.T) {
	tb := atom.New()
	id, err := tb.Intern("frobnicate")
	if err != nil {
		t.Fatal(err)
	}
	tm := MakeAtom(id)
	if !IsAtomTerm(tm) {
		t.Fatal("IsAtomTerm false for an atom term")
	}
	if got := AtomID(tm); got != id {
		t.Fatalf("AtomID round-trip: got %d, want %d", got, id)
	}
}

func TestFromBool(t *testing.T) {
	tb := atom.New()
	trueID, _ := tb.InternExisting("true")
	falseID, _ := tb.InternExisting("false")
	if AtomID(FromBool(true, tb)) != trueID {
		t.Fatal("FromBool(true) did not return the true atom")
	}
	if AtomID(FromBool(false, tb)) != falseID {
		t.Fatal("FromBool(false) did not return the false atom")
	}
}

func TestLocalPidRoundTrip(t *testing.T) {
	tm := MakeLocalPid(12345, 67)
	n, s := LocalPid(tm)
	if n != 12345 || s != 67 {
		t.Fatalf("got (%d, %d), want (12345, 67)", n, s)
	}
}

func TestTupleElementBounds(t *testing.T) {
	h := newHeap()
	one, _ := MakeSmallInt(1)
	two, _ := MakeSmallInt(2)
	tup, err := MakeTuple(h, []Term{one, two})
	if err != nil {
		t.Fatal(err)
	}
	if TupleArity(h, tup) != 2 {
		t.Fatalf("arity = %d, want 2", TupleArity(h, tup))
	}
	if _, ok := TupleElement(h, tup, 0); ok {
		t.Fatal("element 0 should be out of range (1-indexed)")
	}
	if _, ok := TupleElement(h, tup, 3); ok {
		t.Fatal("element 3 should be out of range for a 2-tuple")
	}
	e, ok := TupleElement(h, tup, 2)
	if !ok || e != two {
		t.Fatalf("element(2, T) = %v, %v; want %v, true", e, ok, two)
	}
}

func TestListRoundTrip(t *testing.T) {
	h := newHeap()
	one, _ := MakeSmallInt(1)
	two, _ := MakeSmallInt(2)
	three, _ := MakeSmallInt(3)
	list, err := SliceToList(h, []Term{one, two, three})
	if err != nil {
		t.Fatal(err)
	}
	if !IsProperList(h, list) {
		t.Fatal("built list reports improper")
	}
	got, ok := ListToSlice(h, list)
	if !ok || len(got) != 3 || got[0] != one || got[1] != two || got[2] != three {
		t.Fatalf("round trip mismatch: %v, %v", got, ok)
	}
}

func TestConcatenateEmptyFirstArgReturnsSecondUnchanged(t *testing.T) {
	h := newHeap()
	notAList, _ := MakeSmallInt(42)
	got, err := Concatenate(h, Nil, notAList)
	if err != nil {
		t.Fatal(err)
	}
	if got != notAList {
		t.Fatal("Concatenate([], X) must return X verbatim, even when X is not a list")
	}
}

func TestMapPutGrowsOnlyForNewKeys(t *testing.T) {
	h := newHeap()
	tb := atom.New()
	k1 := MakeAtom(mustIntern(t, tb, "a"))
	v1, _ := MakeSmallInt(1)
	m, err := MakeMap(h, []Term{k1}, []Term{v1})
	if err != nil {
		t.Fatal(err)
	}
	v2, _ := MakeSmallInt(2)
	m2, err := MapPut(h, m, k1, v2)
	if err != nil {
		t.Fatal(err)
	}
	if MapSize(h, m2) != 1 {
		t.Fatalf("replacing an existing key changed size: got %d, want 1", MapSize(h, m2))
	}
	k2 := MakeAtom(mustIntern(t, tb, "b"))
	m3, err := MapPut(h, m2, k2, v2)
	if err != nil {
		t.Fatal(err)
	}
	if MapSize(h, m3) != 2 {
		t.Fatalf("adding a new key did not grow size: got %d, want 2", MapSize(h, m3))
	}
}

func TestBinaryThresholdDispatch(t *testing.T) {
	h := newHeap()
	small := make([]byte, heap.ProcbinThreshold)
	offHeap, err := MakeBinary(h, make([]byte, heap.ProcbinThreshold+1))
	if err != nil {
		t.Fatal(err)
	}
	smallTm, err := MakeBinary(h, small)
	if err != nil {
		t.Fatal(err)
	}
	if !IsHeapBinary(h, smallTm) {
		t.Fatal("a binary at the threshold should be a heap binary")
	}
	if !IsProcbin(h, offHeap) {
		t.Fatal("a binary over the threshold should be a procbin")
	}
}

func TestSubBinaryByteSizeRoundsUp(t *testing.T) {
	h := newHeap()
	parent, _ := MakeBinary(h, []byte{0xFF, 0xFF})
	sub, err := MakeSubBinary(h, parent, 0, 5)
	if err != nil {
		t.Fatal(err)
	}
	if got := SubBinaryByteSize(h, sub); got != 1 {
		t.Fatalf("ceil(5/8) = %d, want 1", got)
	}
}

func TestDecodeCategories(t *testing.T) {
	h := newHeap()
	tb := atom.New()
	small, _ := MakeSmallInt(1)
	at := MakeAtom(mustIntern(t, tb, "x"))
	cases := []struct {
		name string
		tm   Term
		cat  Category
	}{
		{"small int", small, CategoryNumber},
		{"atom", at, CategoryAtom},
		{"nil", Nil, CategoryNil},
	}
	for _, c := range cases {
		if got := Decode(h, c.tm).Category(); got != c.cat {
			t.Errorf("%s: Category() = %v, want %v", c.name, got, c.cat)
		}
	}
}

func mustIntern(t *testing.T, tb *atom.Table, name string) atom.ID {
	t.Helper()
	id, err := tb.Intern(name)
	if err != nil {
		t.Fatal(err)
	}
	return id
}
