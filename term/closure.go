package term

import "github.com/ktkr-us/beamcore/heap"

// MFA names a callable: module, function, arity. It is the identity
// every frame carries (spec.md §4.5/glossary) and, boxed as a closure,
// what a fun value captures along with its environment.
type MFA struct {
	Module   atomID
	Function atomID
	Arity    int
}

// atomID is a local alias to avoid this file importing package atom just
// for the type name; it is bit-for-bit atom.ID.
type atomID = Word

// MakeClosure boxes a closure: an MFA plus a captured environment.
func MakeClosure(h *heap.Heap, mfa MFA, env []Term) (Term, error) {
	t, base, err := alloc(h, btClosure, len(env), 3+len(env))
	if err != nil {
		return 0, err
	}
	words := h.Words()
	words[base+1] = heap.Word(mfa.Module)
	words[base+2] = heap.Word(mfa.Function)
	words[base+3] = heap.Word(mfa.Arity)
	for i, e := range env {
		words[base+4+i] = heap.Word(e)
	}
	return t, nil
}

// IsClosure reports whether t is a boxed fun.
func IsClosure(h *heap.Heap, t Term) bool {
	return primaryTag(t) == ptBoxed && boxTagOf(h, t) == btClosure
}

// ClosureMFA returns a closure's module/function/arity identity.
func ClosureMFA(h *heap.Heap, t Term) MFA {
	_, _, base := boxedHeader(h, t)
	words := h.Words()
	return MFA{
		Module:   words[base+1],
		Function: words[base+2],
		Arity:    int(words[base+3]),
	}
}

// ClosureEnv returns a closure's captured environment terms.
func ClosureEnv(h *heap.Heap, t Term) []Term {
	_, size, base := boxedHeader(h, t)
	words := h.Words()
	env := make([]Term, size)
	for i := 0; i < size; i++ {
		env[i] = Term(words[base+4+i])
	}
	return env
}
