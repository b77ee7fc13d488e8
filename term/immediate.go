package term

import "github.com/ktkr-us/beamcore/atom"

// Nil is the empty list, []. It is distinct from the empty bitstring
// (spec.md §4.2 edge cases).
var Nil = makeImmediate(immNil, 0)

// None is the internal sentinel used where "no value" must be
// representable as a Term (e.g. an uninitialized stack slot).
var None = makeImmediate(immNone, 0)

// MakeSmallInt returns the immediate encoding of n, or false if n is
// outside the small-integer range and must be promoted to a big integer
// via MakeBigInt instead.
func MakeSmallInt(n int64) (Term, bool) {
	if n < SmallIntMin || n > SmallIntMax {
		return 0, false
	}
	return makeImmediate(immSmallInt, uint64(n)&((1<<SmallIntBits)-1)), true
}

// SmallInt decodes t as a small integer. Callers should check IsSmallInt
// first, or use Decode.
func SmallInt(t Term) int64 {
	raw := immediatePayload(t)
	// sign-extend from SmallIntBits
	shift := 64 - SmallIntBits
	return int64(raw<<shift) >> shift
}

// MakeAtom returns the immediate Term for an already-interned atom id.
func MakeAtom(id atom.ID) Term {
	return makeImmediate(immAtom, uint64(id))
}

// AtomID decodes t as an atom id.
func AtomID(t Term) atom.ID {
	return atom.ID(immediatePayload(t))
}

// FromBool is the Go-source analogue of the original Rust runtime's
// IntoProcess<Term> for bool: it interns (if necessary) and returns the
// atom true or false for b, an Erlang boolean rather than a Go bool.
// No BIF in this module calls it.
func FromBool(b bool, t *atom.Table) Term {
	name := "false"
	if b {
		name = "true"
	}
	id, err := t.Intern(name)
	if err != nil {
		// true/false are seed atoms; Intern cannot fail for them.
		panic(err)
	}
	return MakeAtom(id)
}

// pidSerialBits splits the small-integer-sized payload of a local pid/port
// immediate into a serial field (low bits) and a number field (high
// bits).
const pidSerialBits = SmallIntBits / 3

// MakeLocalPid returns the immediate Term for a local process id.
// number and serial must fit in their respective fields; callers far
// from process creation should treat overflow as impossible in practice
// (it would require more concurrently-live pids than this build
// supports) rather than handle it as a runtime error.
func MakeLocalPid(number, serial uint32) Term {
	payload := uint64(number)<<pidSerialBits | uint64(serial)&(1<<pidSerialBits-1)
	return makeImmediate(immPid, payload)
}

// LocalPid decodes a local pid immediate into its number and serial.
func LocalPid(t Term) (number, serial uint32) {
	payload := immediatePayload(t)
	serial = uint32(payload & (1<<pidSerialBits - 1))
	number = uint32(payload >> pidSerialBits)
	return
}

// MakeLocalPort returns the immediate Term for a local port id.
func MakeLocalPort(number uint64) Term {
	return makeImmediate(immPort, number)
}

// LocalPort decodes a local port immediate into its number.
func LocalPort(t Term) uint64 {
	return immediatePayload(t)
}

// Category distinguishes the broad kinds of term, independent of the
// exact boxed sub-type; used by Compare to implement the total order
// from spec.md §3.
type Category int

const (
	CategoryNumber Category = iota
	CategoryAtom
	CategoryReference
	CategoryFun
	CategoryPort
	CategoryPid
	CategoryTuple
	CategoryMap
	CategoryNil
	CategoryList
	CategoryBitstring
)

// IsImmediate reports whether t is encoded entirely in its own bits
// (i.e. not a heap reference).
func IsImmediate(t Term) bool { return primaryTag(t) == ptImmediate }

func IsSmallInt(t Term) bool { return IsImmediate(t) && immTag(t) == immSmallInt }
func IsAtomTerm(t Term) bool { return IsImmediate(t) && immTag(t) == immAtom }
func IsLocalPidTerm(t Term) bool { return IsImmediate(t) && immTag(t) == immPid }
func IsLocalPortTerm(t Term) bool { return IsImmediate(t) && immTag(t) == immPort }
func IsNil(t Term) bool { return t == Nil }
func IsNone(t Term) bool { return t == None }

// IsList reports whether t is either Nil or a cons cell. It does not
// check properness.
func IsList(t Term) bool { return IsNil(t) || primaryTag(t) == ptList }
