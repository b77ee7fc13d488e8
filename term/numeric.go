package term

import (
	"math"
	"math/big"

	"github.com/ktkr-us/beamcore/heap"
)

// MakeFloat boxes a 64-bit float.
func MakeFloat(h *heap.Heap, f float64) (Term, error) {
	t, base, err := alloc(h, btFloat, 1, 1)
	if err != nil {
		return 0, err
	}
	h.Words()[base+1] = heap.Word(math.Float64bits(f))
	return t, nil
}

// FloatValue reads a boxed float's value.
func FloatValue(h *heap.Heap, t Term) float64 {
	_, _, base := boxedHeader(h, t)
	return math.Float64frombits(uint64(h.Words()[base+1]))
}

// IsFloat reports whether t is a boxed float.
func IsFloat(h *heap.Heap, t Term) bool {
	return primaryTag(t) == ptBoxed && boxTagOf(h, t) == btFloat
}

const bigIntSignWords = 1

// MakeBigInt boxes an arbitrary-precision integer. Small values that fit
// the immediate small-integer range should use MakeSmallInt instead;
// NormalizeInt picks the right representation automatically.
func MakeBigInt(h *heap.Heap, n *big.Int) (Term, error) {
	digits := n.Bits()
	t, base, err := alloc(h, btBigInt, len(digits), bigIntSignWords+len(digits))
	if err != nil {
		return 0, err
	}
	words := h.Words()
	sign := heap.Word(0)
	if n.Sign() < 0 {
		sign = 1
	}
	words[base+1] = sign
	for i, d := range digits {
		words[base+2+i] = heap.Word(d)
	}
	return t, nil
}

// BigIntValue reconstructs the *big.Int boxed at t.
func BigIntValue(h *heap.Heap, t Term) *big.Int {
	_, size, base := boxedHeader(h, t)
	words := h.Words()
	digits := make([]big.Word, size)
	for i := range digits {
		digits[i] = big.Word(words[base+2+i])
	}
	n := new(big.Int).SetBits(digits)
	if words[base+1] == 1 {
		n.Neg(n)
	}
	return n
}

// IsBigInt reports whether t is a boxed big integer.
func IsBigInt(h *heap.Heap, t Term) bool {
	return primaryTag(t) == ptBoxed && boxTagOf(h, t) == btBigInt
}

// IsInteger reports whether t is a small or big integer.
func IsInteger(h *heap.Heap, t Term) bool {
	return IsSmallInt(t) || IsBigInt(h, t)
}

// IsNumber reports whether t is a small int, big int, or float.
func IsNumber(h *heap.Heap, t Term) bool {
	return IsSmallInt(t) || IsBigInt(h, t) || IsFloat(h, t)
}

// NormalizeInt boxes n as a small integer when it fits, otherwise
// promotes it to a big integer (spec.md §3 invariant: "values outside
// [small range] promote to big integers").
func NormalizeInt(h *heap.Heap, n int64) (Term, error) {
	if small, ok := MakeSmallInt(n); ok {
		return small, nil
	}
	return MakeBigInt(h, big.NewInt(n))
}

// NormalizeBigInt boxes n as a small integer when it fits in the small
// range, otherwise as a big integer.
func NormalizeBigInt(h *heap.Heap, n *big.Int) (Term, error) {
	if n.IsInt64() {
		if small, ok := MakeSmallInt(n.Int64()); ok {
			return small, nil
		}
	}
	return MakeBigInt(h, n)
}

// ToBigInt widens any integer term (small or big) to a *big.Int, for use
// in arithmetic that must not silently wrap.
func ToBigInt(h *heap.Heap, t Term) *big.Int {
	if IsSmallInt(t) {
		return big.NewInt(SmallInt(t))
	}
	return BigIntValue(h, t)
}

// ToFloat widens any number term to a float64.
func ToFloat(h *heap.Heap, t Term) float64 {
	switch {
	case IsSmallInt(t):
		return float64(SmallInt(t))
	case IsBigInt(h, t):
		f := new(big.Float).SetInt(BigIntValue(h, t))
		v, _ := f.Float64()
		return v
	default:
		return FloatValue(h, t)
	}
}
