package term

import "github.com/ktkr-us/beamcore/heap"

// Kind is the category a term decodes to. BIFs match on Kind instead of
// using virtual dispatch (spec.md §9 design note: "the typed view is a
// tagged variant... produced by a decoder; BIFs match on it instead of
// using virtual dispatch").
type Kind int

const (
	KindNone Kind = iota
	KindSmallInt
	KindBigInt
	KindFloat
	KindAtom
	KindReference
	KindClosure
	KindLocalPort
	KindExternalPort
	KindLocalPid
	KindExternalPid
	KindTuple
	KindMap
	KindNil
	KindCons
	KindHeapBinary
	KindProcBin
	KindSubBinary
	KindResource
)

// TypedTerm is the decoded view of a Term: which category it belongs to,
// borrowing (not copying) its payload via the accessor functions in this
// package (SmallInt, TupleElements, BinaryBytes, ...). Decoding performs
// no allocation and transfers no ownership.
type TypedTerm struct {
	Kind Kind
	Term Term
}

// Decode classifies t. h may be nil only if t is known to be an
// immediate (IsImmediate(t) true); decoding a boxed or list term
// requires the heap it was allocated on.
func Decode(h *heap.Heap, t Term) TypedTerm {
	switch primaryTag(t) {
	case ptImmediate:
		switch immTag(t) {
		case immSmallInt:
			return TypedTerm{KindSmallInt, t}
		case immAtom:
			return TypedTerm{KindAtom, t}
		case immPid:
			return TypedTerm{KindLocalPid, t}
		case immPort:
			return TypedTerm{KindLocalPort, t}
		case immNil:
			return TypedTerm{KindNil, t}
		case immNone:
			return TypedTerm{KindNone, t}
		}
	case ptList:
		return TypedTerm{KindCons, t}
	case ptBoxed:
		switch boxTagOf(h, t) {
		case btBigInt:
			return TypedTerm{KindBigInt, t}
		case btFloat:
			return TypedTerm{KindFloat, t}
		case btReference:
			return TypedTerm{KindReference, t}
		case btExternalPid:
			return TypedTerm{KindExternalPid, t}
		case btExternalPort:
			return TypedTerm{KindExternalPort, t}
		case btTuple:
			return TypedTerm{KindTuple, t}
		case btMap:
			return TypedTerm{KindMap, t}
		case btHeapBinary:
			return TypedTerm{KindHeapBinary, t}
		case btProcBin:
			return TypedTerm{KindProcBin, t}
		case btSubBinary:
			return TypedTerm{KindSubBinary, t}
		case btClosure:
			return TypedTerm{KindClosure, t}
		case btResource:
			return TypedTerm{KindResource, t}
		}
	}
	return TypedTerm{KindNone, t}
}

// Category returns the broad comparison category used by Compare
// (spec.md §3's total order: number < atom < reference < fun < port <
// pid < tuple < map < nil < list < bitstring).
func (tt TypedTerm) Category() Category {
	switch tt.Kind {
	case KindSmallInt, KindBigInt, KindFloat:
		return CategoryNumber
	case KindAtom:
		return CategoryAtom
	case KindReference:
		return CategoryReference
	case KindClosure:
		return CategoryFun
	case KindLocalPort, KindExternalPort:
		return CategoryPort
	case KindLocalPid, KindExternalPid:
		return CategoryPid
	case KindTuple:
		return CategoryTuple
	case KindMap:
		return CategoryMap
	case KindNil:
		return CategoryNil
	case KindCons:
		return CategoryList
	case KindHeapBinary, KindProcBin, KindSubBinary:
		return CategoryBitstring
	default:
		// KindNone has no place in the user-visible total order; treat
		// it as maximal so it never silently compares equal to a real
		// value.
		return CategoryBitstring + 1
	}
}
