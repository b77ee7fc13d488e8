package term

import "github.com/ktkr-us/beamcore/heap"

// External pids and ports name a process or port on a remote node.
// Cross-node distribution itself is out of scope (spec.md §1 Non-goals),
// but the term category must exist so a compiled program can hold and
// compare an external identity it received before this host joined a
// cluster, or simply to keep the total-order comparison in spec.md §3
// total.

// MakeExternalPid boxes an external pid: node name atom, process
// number, serial.
func MakeExternalPid(h *heap.Heap, node Term, number, serial uint32) (Term, error) {
	t, base, err := alloc(h, btExternalPid, 3, 3)
	if err != nil {
		return 0, err
	}
	words := h.Words()
	words[base+1] = heap.Word(node)
	words[base+2] = heap.Word(number)
	words[base+3] = heap.Word(serial)
	return t, nil
}

// IsExternalPid reports whether t is a boxed external pid.
func IsExternalPid(h *heap.Heap, t Term) bool {
	return primaryTag(t) == ptBoxed && boxTagOf(h, t) == btExternalPid
}

// IsPid reports whether t is either a local or external pid.
func IsPid(h *heap.Heap, t Term) bool {
	return IsLocalPidTerm(t) || IsExternalPid(h, t)
}

// ExternalPidParts decodes an external pid's node atom, number and
// serial.
func ExternalPidParts(h *heap.Heap, t Term) (node Term, number, serial uint32) {
	_, _, base := boxedHeader(h, t)
	words := h.Words()
	return Term(words[base+1]), uint32(words[base+2]), uint32(words[base+3])
}

// MakeExternalPort boxes an external port: node name atom, number.
func MakeExternalPort(h *heap.Heap, node Term, number uint64) (Term, error) {
	t, base, err := alloc(h, btExternalPort, 2, 2)
	if err != nil {
		return 0, err
	}
	words := h.Words()
	words[base+1] = heap.Word(node)
	words[base+2] = heap.Word(number)
	return t, nil
}

// IsExternalPort reports whether t is a boxed external port.
func IsExternalPort(h *heap.Heap, t Term) bool {
	return primaryTag(t) == ptBoxed && boxTagOf(h, t) == btExternalPort
}

// ExternalPortParts decodes an external port's node atom and number.
func ExternalPortParts(h *heap.Heap, t Term) (node Term, number uint64) {
	_, _, base := boxedHeader(h, t)
	words := h.Words()
	return Term(words[base+1]), uint64(words[base+2])
}

// IsPort reports whether t is either a local or external port.
func IsPort(h *heap.Heap, t Term) bool {
	return IsLocalPortTerm(t) || IsExternalPort(h, t)
}
