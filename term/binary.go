package term

import "github.com/ktkr-us/beamcore/heap"

func wordsForBytes(n int) int {
	return (n + 7) / 8
}

func packBytes(words []heap.Word, base int, data []byte) {
	for i, b := range data {
		words[base+i/8] |= heap.Word(b) << uint((i%8)*8)
	}
}

func unpackBytes(words []heap.Word, base, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(words[base+i/8] >> uint((i%8)*8))
	}
	return out
}

// MakeHeapBinary boxes data inline on the process heap. Callers should
// route anything larger than ProcbinThreshold bytes through MakeProcbin
// instead, per spec.md §4.3.
func MakeHeapBinary(h *heap.Heap, data []byte) (Term, error) {
	t, base, err := alloc(h, btHeapBinary, len(data), wordsForBytes(len(data)))
	if err != nil {
		return 0, err
	}
	packBytes(h.Words(), base+1, data)
	return t, nil
}

// IsHeapBinary reports whether t is an inline heap binary.
func IsHeapBinary(h *heap.Heap, t Term) bool {
	return primaryTag(t) == ptBoxed && boxTagOf(h, t) == btHeapBinary
}

// HeapBinaryBytes reconstructs the bytes of an inline heap binary.
func HeapBinaryBytes(h *heap.Heap, t Term) []byte {
	_, size, base := boxedHeader(h, t)
	return unpackBytes(h.Words(), base+1, size)
}

// MakeProcbin boxes a reference to an off-heap, refcounted binary
// already registered on h via heap.PushProcbin.
func MakeProcbin(h *heap.Heap, p *heap.Procbin) (Term, error) {
	idx := h.PushProcbin(p)
	t, base, err := alloc(h, btProcBin, len(p.Data), 1)
	if err != nil {
		return 0, err
	}
	h.Words()[base+1] = heap.Word(idx)
	return t, nil
}

// IsProcbin reports whether t is a boxed off-heap binary reference.
func IsProcbin(h *heap.Heap, t Term) bool {
	return primaryTag(t) == ptBoxed && boxTagOf(h, t) == btProcBin
}

// ProcbinBytes returns the bytes of a procbin-backed binary.
func ProcbinBytes(h *heap.Heap, t Term) []byte {
	_, _, base := boxedHeader(h, t)
	idx := int(h.Words()[base+1])
	return h.Procbin(idx).Data
}

// MakeBinary chooses MakeHeapBinary or MakeProcbin for data depending on
// its size relative to heap.ProcbinThreshold, the policy spec.md §4.3
// describes for "off-heap binaries over a threshold".
func MakeBinary(h *heap.Heap, data []byte) (Term, error) {
	if len(data) > heap.ProcbinThreshold {
		return MakeProcbin(h, heap.NewProcbin(append([]byte(nil), data...)))
	}
	return MakeHeapBinary(h, data)
}

// IsBinary reports whether t is a whole-byte binary (heap or off-heap).
// A sub-binary is only a Binary if its bit length is a multiple of 8;
// use IsBitstring for the more general category.
func IsBinary(h *heap.Heap, t Term) bool {
	if primaryTag(t) != ptBoxed {
		return false
	}
	switch boxTagOf(h, t) {
	case btHeapBinary, btProcBin:
		return true
	case btSubBinary:
		_, _, bitLen, _ := subBinaryParts(h, t)
		return bitLen%8 == 0
	default:
		return false
	}
}

// IsBitstring reports whether t is any binary-family value, including a
// partial-byte sub-binary. <<>> (the empty bitstring) and [] are
// distinct categories (spec.md §4.2): <<>> is a zero-length heap binary,
// which IsBitstring reports true for and IsList reports false for.
func IsBitstring(h *heap.Heap, t Term) bool {
	if primaryTag(t) != ptBoxed {
		return false
	}
	switch boxTagOf(h, t) {
	case btHeapBinary, btProcBin, btSubBinary:
		return true
	default:
		return false
	}
}

// BinaryBytes returns the logical bytes of any whole-byte binary term
// (heap, off-heap, or a byte-aligned sub-binary).
func BinaryBytes(h *heap.Heap, t Term) []byte {
	switch boxTagOf(h, t) {
	case btHeapBinary:
		return HeapBinaryBytes(h, t)
	case btProcBin:
		return ProcbinBytes(h, t)
	case btSubBinary:
		return SubBinaryBytes(h, t)
	default:
		panic("term: BinaryBytes called on a non-binary term")
	}
}

// ExtractBits returns the exact bit range t denotes as a left-justified,
// zero-padded byte slice (length ceil(bitLength/8)) together with the
// bit length, for any binary-family term including a non-byte-aligned
// sub-binary. It underlies both bitstring comparison and any future
// bit-level decoding.
func ExtractBits(h *heap.Heap, t Term) ([]byte, int) {
	switch boxTagOf(h, t) {
	case btHeapBinary:
		b := HeapBinaryBytes(h, t)
		return b, len(b) * 8
	case btProcBin:
		b := ProcbinBytes(h, t)
		return b, len(b) * 8
	case btSubBinary:
		parent, bitOffset, bitLength, _ := subBinaryParts(h, t)
		full, _ := ExtractBits(h, parent)
		return sliceBits(full, bitOffset, bitLength), bitLength
	default:
		panic("term: ExtractBits called on a non-bitstring term")
	}
}

// sliceBits extracts bitLength bits starting at bitOffset from the
// byte-aligned source full, returning a new left-justified,
// zero-padded byte slice.
func sliceBits(full []byte, bitOffset, bitLength int) []byte {
	out := make([]byte, (bitLength+7)/8)
	for i := 0; i < bitLength; i++ {
		srcBit := bitOffset + i
		bit := (full[srcBit/8] >> uint(7-srcBit%8)) & 1
		if bit != 0 {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}

// MakeSubBinary boxes a bit-range view into parent, which must already
// be a heap binary, procbin, or another sub-binary (in which case the
// offsets compose). spec.md §3 invariant: "A sub-binary's bit range lies
// within its parent" — callers (the bif layer) are responsible for
// checking that before calling this.
func MakeSubBinary(h *heap.Heap, parent Term, bitOffset, bitLength int) (Term, error) {
	if boxTagOf(h, parent) == btSubBinary {
		pParent, pOffset, _, _ := subBinaryParts(h, parent)
		parent = pParent
		bitOffset += pOffset
	}
	t, base, err := alloc(h, btSubBinary, bitLength, 2)
	if err != nil {
		return 0, err
	}
	words := h.Words()
	words[base+1] = heap.Word(parent)
	words[base+2] = heap.Word(bitOffset)
	return t, nil
}

// IsSubBinary reports whether t is a boxed sub-binary.
func IsSubBinary(h *heap.Heap, t Term) bool {
	return primaryTag(t) == ptBoxed && boxTagOf(h, t) == btSubBinary
}

func subBinaryParts(h *heap.Heap, t Term) (parent Term, bitOffset, bitLength, base int) {
	_, bitLength, base = boxedHeader(h, t)
	words := h.Words()
	return Term(words[base+1]), int(words[base+2]), bitLength, base
}

// SubBinaryByteSize returns ceil(bitLength/8) bytes, per spec.md §8.
func SubBinaryByteSize(h *heap.Heap, t Term) int {
	_, _, bitLength, _ := subBinaryParts(h, t)
	return (bitLength + 7) / 8
}

// SubBinaryBytes materializes a byte-aligned sub-binary's bytes. Callers
// must only call this when the bit range is byte-aligned
// (bitOffset%8==0 && bitLength%8==0); partial-byte sub-binaries have no
// Go []byte representation and must be read bit-by-bit.
func SubBinaryBytes(h *heap.Heap, t Term) []byte {
	parent, bitOffset, bitLength, _ := subBinaryParts(h, t)
	full := BinaryBytes(h, parent)
	byteOffset := bitOffset / 8
	byteLen := bitLength / 8
	return full[byteOffset : byteOffset+byteLen]
}
