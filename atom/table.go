// Package atom implements the process-wide atom interning table: a
// readers-writer-locked, append-only mapping from UTF-8 names to dense
// integer identifiers with addresses stable for the table's lifetime.
package atom

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ID is a dense, never-reused atom identifier. Two atoms compare equal
// iff their IDs are equal.
type ID uint64

// MaxAtoms is the largest ID a Table will hand out. Atom IDs are tagged
// into the high bits of a term.Term, whose low 6 bits hold the primary
// tag and the immediate sub-tag, leaving 58 bits for the ID.
const MaxAtoms = ^uint64(0) >> 6

// MaxNameLength is the longest name, in bytes, a Table will intern.
const MaxNameLength = 255

// arenaChunkSize bounds how much we over-allocate per arena chunk; names
// larger than this get their own chunk.
const arenaChunkSize = 4096

// TooManyAtoms is returned by Intern when the table is full.
var TooManyAtoms = errors.New("atom: too many atoms")

// NonExistent is returned by InternExisting when no atom by that name has
// been interned yet.
var NonExistent = errors.New("atom: no such atom")

// InvalidLength is returned by Intern/InternExisting when the name is
// longer than MaxNameLength bytes.
type InvalidLength struct {
	Length int
}

func (e *InvalidLength) Error() string {
	return errors.Errorf("atom: name length %d exceeds maximum of %d", e.Length, MaxNameLength).Error()
}

// seedAtoms are interned at construction, in order, so their IDs are
// stable across every Table instance. Erlang/Elixir code and compiled
// frames alike rely on these being present.
var seedAtoms = []string{"true", "false", "undefined", "nil", "ok", "error"}

// Table is the atom interning table. The zero value is not usable; call
// New.
//
// Reads (NameOf, id lookup via InternExisting) take the shared lock.
// Insertion (Intern, when the name is new) takes the exclusive lock only
// long enough to copy the name into the arena and publish it; callers
// never observe a partially-inserted atom.
type Table struct {
	mu    sync.RWMutex
	ids   map[string]ID
	names []string
	arena [][]byte // chunks; interned names are byte slices into these
	cur   []byte   // current chunk, not yet full
}

// New returns a Table seeded with true, false, undefined, nil, ok, and
// error.
func New() *Table {
	t := &Table{
		ids: make(map[string]ID, len(seedAtoms)*2),
	}
	for _, name := range seedAtoms {
		if _, err := t.Intern(name); err != nil {
			// Seed atoms are all short ASCII; this can't fail.
			panic(errors.Wrap(err, "atom: seeding table"))
		}
	}
	return t
}

// Intern returns the ID for name, inserting it if this is the first time
// it has been seen. Atom equality is byte equality on the UTF-8
// representation; no Unicode normalization is performed (see
// DESIGN.md open question 1).
func (t *Table) Intern(name string) (ID, error) {
	if len(name) > MaxNameLength {
		return 0, &InvalidLength{Length: len(name)}
	}

	t.mu.RLock()
	if id, ok := t.ids[name]; ok {
		t.mu.RUnlock()
		return id, nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	// Re-check: another writer may have inserted name while we waited
	// for the exclusive lock.
	if id, ok := t.ids[name]; ok {
		return id, nil
	}

	if uint64(len(t.names)) >= MaxAtoms {
		return 0, TooManyAtoms
	}

	stored := t.copyIntoArena(name)
	id := ID(len(t.names))
	t.names = append(t.names, stored)
	t.ids[stored] = id
	return id, nil
}

// InternExisting returns the ID for name without inserting it. It
// returns NonExistent if name has not already been interned.
func (t *Table) InternExisting(name string) (ID, error) {
	if len(name) > MaxNameLength {
		return 0, &InvalidLength{Length: len(name)}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id, ok := t.ids[name]; ok {
		return id, nil
	}
	return 0, NonExistent
}

// NameOf returns the name for id. It panics if id was never interned by
// this table, since any caller holding an atom.ID obtained from this
// table is guaranteed one exists; callers that cannot make that
// guarantee should use Lookup instead.
func (t *Table) NameOf(id ID) string {
	name, ok := t.Lookup(id)
	if !ok {
		panic(errors.Errorf("atom: id %d was never interned by this table", id))
	}
	return name
}

// Lookup is the fallible form of NameOf.
func (t *Table) Lookup(id ID) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if uint64(id) >= uint64(len(t.names)) {
		return "", false
	}
	return t.names[id], true
}

// Compare orders two atoms: equal IDs compare equal, otherwise atoms are
// ordered lexicographically by name. ID order does not correspond to
// name order.
func (t *Table) Compare(a, b ID) int {
	if a == b {
		return 0
	}
	an, bn := t.NameOf(a), t.NameOf(b)
	switch {
	case an < bn:
		return -1
	case an > bn:
		return 1
	default:
		return 0
	}
}

// QuotedName renders id the way the original runtime's atom Display/Debug
// implementation does (supplemented per SPEC_FULL.md §6, since §7's
// exception logging needs atom names a human can read, not a bare
// integer id): a bare-identifier-shaped name prints unquoted; anything
// else — an uppercase-leading or punctuated name like 'EXIT' or 'DOWN' —
// is quoted and escaped with single quotes, matching the Erlang-style
// atom syntax spec.md itself uses throughout (`{'EXIT', From, Reason}`).
func (id ID) QuotedName(t *Table) string {
	name := t.NameOf(id)
	if isBareAtomName(name) {
		return name
	}
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range name {
		if r == '\'' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('\'')
	return b.String()
}

// isBareAtomName reports whether name needs no quoting: a lowercase
// ASCII letter followed by letters, digits, or underscores, optionally
// ending in ? or !.
func isBareAtomName(name string) bool {
	if name == "" {
		return false
	}
	if name[0] < 'a' || name[0] > 'z' {
		return false
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		case i == len(name)-1 && (c == '?' || c == '!'):
		default:
			return false
		}
	}
	return true
}

// copyIntoArena copies name into the arena and returns a string backed
// by the copy, giving it an address stable for the Table's lifetime.
// Must be called with t.mu held exclusively.
func (t *Table) copyIntoArena(name string) string {
	if name == "" {
		return ""
	}
	size := len(name)
	if size > arenaChunkSize {
		// Oversized name: give it a dedicated chunk.
		buf := make([]byte, size)
		copy(buf, name)
		t.arena = append(t.arena, buf)
		return string(buf)
	}
	if len(t.cur)+size > cap(t.cur) {
		t.cur = make([]byte, 0, arenaChunkSize)
		t.arena = append(t.arena, t.cur)
	}
	start := len(t.cur)
	t.cur = append(t.cur, name...)
	buf := t.cur[start : start+size : start+size]
	t.arena[len(t.arena)-1] = t.cur
	return string(buf)
}
