package term

import (
	"math/big"

	"github.com/ktkr-us/beamcore/atom"
	"github.com/ktkr-us/beamcore/heap"
)

// Compare implements the total order spec.md §3 mandates across every
// term category: number < atom < reference < fun < port < pid < tuple <
// map < nil < list < bitstring. It returns -1, 0 or 1. table is only
// consulted when two atoms with different ids must be tie-broken by
// name; every other category orders without it.
func Compare(h *heap.Heap, table *atom.Table, a, b Term) int {
	ta, tb := Decode(h, a), Decode(h, b)
	ca, cb := ta.Category(), tb.Category()
	if ca != cb {
		return compareInt(int(ca), int(cb))
	}
	switch ca {
	case CategoryNumber:
		return compareNumbers(h, a, b)
	case CategoryAtom:
		ida, idb := AtomID(a), AtomID(b)
		if ida == idb {
			return 0
		}
		return table.Compare(ida, idb)
	case CategoryReference:
		return compareReferences(h, a, b)
	case CategoryFun:
		return compareClosures(h, a, b)
	case CategoryPort:
		return comparePorts(h, a, b)
	case CategoryPid:
		return comparePids(h, a, b)
	case CategoryTuple:
		return compareTuples(h, table, a, b)
	case CategoryMap:
		return compareMaps(h, table, a, b)
	case CategoryNil:
		return 0
	case CategoryList:
		return compareLists(h, table, a, b)
	case CategoryBitstring:
		return compareBitstrings(h, a, b)
	default:
		return 0
	}
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// compareNumbers orders mixed int/float numbers by value: two small
// integers compare as int64s, two integers of which at least one is big
// compare through big.Int, and anything involving a float is promoted
// through big.Float. Ties between a float and an
// equal-valued integer compare equal here; Equal and ExactEqual layer
// their own == / =:= rules on top of this ordering.
func compareNumbers(h *heap.Heap, a, b Term) int {
	if IsSmallInt(a) && IsSmallInt(b) {
		return compareInt64(SmallInt(a), SmallInt(b))
	}
	if !IsFloat(h, a) && !IsFloat(h, b) {
		return ToBigInt(h, a).Cmp(ToBigInt(h, b))
	}
	fa := new(big.Float).SetPrec(200)
	fb := new(big.Float).SetPrec(200)
	setNumber(h, fa, a)
	setNumber(h, fb, b)
	return fa.Cmp(fb)
}

func setNumber(h *heap.Heap, f *big.Float, t Term) {
	switch {
	case IsSmallInt(t):
		f.SetInt64(SmallInt(t))
	case IsBigInt(h, t):
		f.SetInt(BigIntValue(h, t))
	default:
		f.SetFloat64(FloatValue(h, t))
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareReferences(h *heap.Heap, a, b Term) int {
	_, ca := ReferenceParts(h, a)
	_, cb := ReferenceParts(h, b)
	return compareInt64(int64(ca), int64(cb))
}

func compareClosures(h *heap.Heap, a, b Term) int {
	ma, mb := ClosureMFA(h, a), ClosureMFA(h, b)
	if c := compareInt64(int64(ma.Module), int64(mb.Module)); c != 0 {
		return c
	}
	if c := compareInt64(int64(ma.Function), int64(mb.Function)); c != 0 {
		return c
	}
	if c := compareInt(ma.Arity, mb.Arity); c != 0 {
		return c
	}
	// Same MFA, different closures (distinct captured environments):
	// order deterministically but arbitrarily by allocation identity.
	return compareInt64(int64(a), int64(b))
}

func comparePorts(h *heap.Heap, a, b Term) int {
	if IsLocalPortTerm(a) != IsLocalPortTerm(b) {
		// Local ports sort before external ones.
		if IsLocalPortTerm(a) {
			return -1
		}
		return 1
	}
	na, nb := portOrd(h, a), portOrd(h, b)
	return compareInt64(int64(na), int64(nb))
}

// portOrd returns a port's number, whether it is local or external;
// comparePorts orders local ports before external ones and then by
// this number.
func portOrd(h *heap.Heap, t Term) uint64 {
	if IsLocalPortTerm(t) {
		return LocalPort(t)
	}
	_, number := ExternalPortParts(h, t)
	return number
}

func comparePids(h *heap.Heap, a, b Term) int {
	if IsLocalPidTerm(a) && IsLocalPidTerm(b) {
		na, sa := LocalPid(a)
		nb, sb := LocalPid(b)
		if c := compareInt64(int64(na), int64(nb)); c != 0 {
			return c
		}
		return compareInt64(int64(sa), int64(sb))
	}
	if IsLocalPidTerm(a) != IsLocalPidTerm(b) {
		// Local pids sort before external ones.
		if IsLocalPidTerm(a) {
			return -1
		}
		return 1
	}
	_, na, sa := ExternalPidParts(h, a)
	_, nb, sb := ExternalPidParts(h, b)
	if c := compareInt64(int64(na), int64(nb)); c != 0 {
		return c
	}
	return compareInt64(int64(sa), int64(sb))
}

func compareTuples(h *heap.Heap, table *atom.Table, a, b Term) int {
	ea, eb := TupleElements(h, a), TupleElements(h, b)
	if c := compareInt(len(ea), len(eb)); c != 0 {
		return c
	}
	for i := range ea {
		if c := Compare(h, table, ea[i], eb[i]); c != 0 {
			return c
		}
	}
	return 0
}

func compareLists(h *heap.Heap, table *atom.Table, a, b Term) int {
	for {
		aNil, bNil := IsNil(a), IsNil(b)
		if aNil && bNil {
			return 0
		}
		if aNil != bNil {
			// A list that ends sooner is "smaller", matching the usual
			// lexicographic extension to unequal-length sequences.
			if aNil {
				return -1
			}
			return 1
		}
		if c := Compare(h, table, Head(h, a), Head(h, b)); c != 0 {
			return c
		}
		a, b = Tail(h, a), Tail(h, b)
	}
}

// compareMaps follows spec.md §3 exactly: size first, then sorted key
// lists, then values in key order.
func compareMaps(h *heap.Heap, table *atom.Table, a, b Term) int {
	if c := compareInt(MapSize(h, a), MapSize(h, b)); c != 0 {
		return c
	}
	ka, va := sortedMapPairs(h, table, a)
	kb, vb := sortedMapPairs(h, table, b)
	for i := range ka {
		if c := Compare(h, table, ka[i], kb[i]); c != 0 {
			return c
		}
	}
	for i := range va {
		if c := Compare(h, table, va[i], vb[i]); c != 0 {
			return c
		}
	}
	return 0
}

func sortedMapPairs(h *heap.Heap, table *atom.Table, t Term) (keys, values []Term) {
	keys, values = MapPairs(h, t)
	keys = append([]Term(nil), keys...)
	values = append([]Term(nil), values...)
	// Insertion sort: maps are small in the common case and this keeps
	// the dependency-free comparator self-contained.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && Compare(h, table, keys[j-1], keys[j]) > 0; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
			values[j-1], values[j] = values[j], values[j-1]
		}
	}
	return
}

func compareBitstrings(h *heap.Heap, a, b Term) int {
	ba, lenA := ExtractBits(h, a)
	bb, lenB := ExtractBits(h, b)
	n := len(ba)
	if len(bb) < n {
		n = len(bb)
	}
	for i := 0; i < n; i++ {
		if ba[i] != bb[i] {
			if ba[i] < bb[i] {
				return -1
			}
			return 1
		}
	}
	return compareInt(lenA, lenB)
}

// Equal implements Erlang's == : numeric categories compare by value
// across int/float (1 == 1.0), every other category requires identical
// structure with matching elements under == recursively.
func Equal(h *heap.Heap, a, b Term) bool {
	ta, tb := Decode(h, a), Decode(h, b)
	ca, cb := ta.Category(), tb.Category()
	if ca != cb {
		return false
	}
	if ca == CategoryNumber {
		return compareNumbers(h, a, b) == 0
	}
	return exactEqualSameCategory(h, ta, tb, Equal)
}

// ExactEqual implements Erlang's =:= : like Equal, but a float and an
// equal-valued integer are never exactly equal.
func ExactEqual(h *heap.Heap, a, b Term) bool {
	ta, tb := Decode(h, a), Decode(h, b)
	if ta.Kind != tb.Kind {
		return false
	}
	if ta.Kind == KindSmallInt || ta.Kind == KindBigInt {
		return compareNumbers(h, a, b) == 0
	}
	if ta.Kind == KindFloat {
		return FloatValue(h, a) == FloatValue(h, b)
	}
	return exactEqualSameCategory(h, ta, tb, ExactEqual)
}

// exactEqualSameCategory compares two terms already known to share a
// Category (Equal) or Kind (ExactEqual), structurally, comparing nested
// elements with eq (Equal or ExactEqual, whichever called it).
func exactEqualSameCategory(h *heap.Heap, ta, tb TypedTerm, eq func(*heap.Heap, Term, Term) bool) bool {
	a, b := ta.Term, tb.Term
	switch ta.Category() {
	case CategoryAtom:
		return AtomID(a) == AtomID(b)
	case CategoryReference:
		ca, cca := ReferenceParts(h, a)
		cb, ccb := ReferenceParts(h, b)
		return cca == ccb && eq(h, ca, cb)
	case CategoryFun:
		ma, mb := ClosureMFA(h, a), ClosureMFA(h, b)
		if ma != mb {
			return false
		}
		ea, eb := ClosureEnv(h, a), ClosureEnv(h, b)
		if len(ea) != len(eb) {
			return false
		}
		for i := range ea {
			if !eq(h, ea[i], eb[i]) {
				return false
			}
		}
		return true
	case CategoryPort:
		return portOrd(h, a) == portOrd(h, b) && IsLocalPortTerm(a) == IsLocalPortTerm(b)
	case CategoryPid:
		return comparePids(h, a, b) == 0 && IsLocalPidTerm(a) == IsLocalPidTerm(b)
	case CategoryTuple:
		ea, eb := TupleElements(h, a), TupleElements(h, b)
		if len(ea) != len(eb) {
			return false
		}
		for i := range ea {
			if !eq(h, ea[i], eb[i]) {
				return false
			}
		}
		return true
	case CategoryMap:
		if MapSize(h, a) != MapSize(h, b) {
			return false
		}
		ka, va := MapPairs(h, a)
		for i, k := range ka {
			v, ok := MapGet(h, b, k)
			if !ok || !eq(h, va[i], v) {
				return false
			}
		}
		return true
	case CategoryNil:
		return true
	case CategoryList:
		for {
			aNil, bNil := IsNil(a), IsNil(b)
			if aNil || bNil {
				return aNil == bNil
			}
			if !eq(h, Head(h, a), Head(h, b)) {
				return false
			}
			a, b = Tail(h, a), Tail(h, b)
		}
	case CategoryBitstring:
		ba, lenA := ExtractBits(h, a)
		bb, lenB := ExtractBits(h, b)
		if lenA != lenB {
			return false
		}
		for i := range ba {
			if ba[i] != bb[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}
