// Package timer implements the timer service spec.md §5 names:
// "timers are represented by a reference token returned from
// start_timer; cancel_timer(ref) returns remaining milliseconds or
// false; read_timer(ref) reads without cancelling. Expired but
// undelivered timers behave as if the message has already been sent."
//
// SPEC_FULL.md §5.7 grounds the storage shape: a min-heap of pending
// timers ordered by deadline (container/heap), driven by a single
// goroutine parked on a time.Timer set to the earliest deadline rather
// than one goroutine per pending timer.
package timer

import (
	cheap "container/heap"
	"sync"
	"time"

	"github.com/ktkr-us/beamcore/atom"
	bheap "github.com/ktkr-us/beamcore/heap"
	"github.com/ktkr-us/beamcore/process"
	"github.com/ktkr-us/beamcore/term"
)

// Deliverer is the one capability the timer service needs from the
// scheduler: a way to drop a fired timer's message into its target's
// mailbox. Kept as a narrow interface, the same dependency-inversion
// shape as bif.Host, so package timer never has to import scheduler.
type Deliverer interface {
	DeliverTimer(target, msg term.Term)
}

// key identifies a timer independent of which heap currently boxes its
// reference term: a reference's identity is its {creator pid, counter}
// payload (spec.md §3), and those two words survive a copying
// collection or a message-passing copy into another process's heap
// unchanged, so decoding ref against *any* heap holding a live copy of
// it yields the same key.
type key struct {
	creator term.Term
	counter uint64
}

type entry struct {
	key      key
	ref      term.Term
	deadline time.Time
	target   term.Term
	msg      term.Term
	index    int
}

// entryQueue is a container/heap.Interface ordered by deadline.
type entryQueue []*entry

func (q entryQueue) Len() int           { return len(q) }
func (q entryQueue) Less(i, j int) bool { return q[i].deadline.Before(q[j].deadline) }
func (q entryQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index, q[j].index = i, j
}
func (q *entryQueue) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}
func (q *entryQueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// Service owns every pending timer on a node. The zero value is not
// usable; build one with New.
type Service struct {
	mu        sync.Mutex
	tb        *atom.Table
	deliverer Deliverer
	entries   map[key]*entry
	queue     entryQueue
	wake      *time.Timer
	stop      chan struct{}
	stopOnce  sync.Once
}

// New starts a timer service that delivers through d, interning its
// atoms (false, for example) through tb.
func New(tb *atom.Table, d Deliverer) *Service {
	s := &Service{
		tb:        tb,
		deliverer: d,
		entries:   make(map[key]*entry),
		wake:      time.NewTimer(time.Hour),
		stop:      make(chan struct{}),
	}
	s.wake.Stop()
	go s.run()
	return s
}

// Stop halts the driver goroutine. Pending timers are discarded, not
// delivered.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Service) run() {
	for {
		select {
		case <-s.stop:
			s.wake.Stop()
			return
		case <-s.wake.C:
			s.fireDue()
		}
	}
}

// fireDue pops every entry whose deadline has passed, delivers their
// messages outside the lock (delivery may re-enter the scheduler, which
// must never block on the timer service's own mutex), then arms the
// next wake-up.
func (s *Service) fireDue() {
	now := time.Now()
	var due []*entry

	s.mu.Lock()
	for s.queue.Len() > 0 && !s.queue[0].deadline.After(now) {
		e := cheap.Pop(&s.queue).(*entry)
		delete(s.entries, e.key)
		due = append(due, e)
	}
	s.armLocked()
	s.mu.Unlock()

	for _, e := range due {
		s.deliverer.DeliverTimer(e.target, e.msg)
	}
}

// armLocked resets s.wake to fire at the new earliest deadline. Callers
// must hold s.mu.
func (s *Service) armLocked() {
	s.wake.Stop()
	select {
	case <-s.wake.C:
	default:
	}
	if s.queue.Len() == 0 {
		return
	}
	d := time.Until(s.queue[0].deadline)
	if d < 0 {
		d = 0
	}
	s.wake.Reset(d)
}

// StartTimer schedules msg to be delivered to target after delay and
// returns the reference token that identifies this timer, minted
// through p (spec.md §3's "counter per process, extended with the pid
// to be globally unique").
func (s *Service) StartTimer(p *process.Process, delay time.Duration, target, msg term.Term) (term.Term, error) {
	ref, err := p.NextReference()
	if err != nil {
		return 0, err
	}
	creator, counter := term.ReferenceParts(p.Heap, ref)
	e := &entry{
		key:      key{creator: creator, counter: counter},
		ref:      ref,
		deadline: time.Now().Add(delay),
		target:   target,
		msg:      msg,
	}

	s.mu.Lock()
	s.entries[e.key] = e
	cheap.Push(&s.queue, e)
	s.armLocked()
	s.mu.Unlock()

	return ref, nil
}

// CancelTimer cancels the timer ref refers to, returning the
// milliseconds that remained and true, or false if ref names no
// pending timer (already fired, already cancelled, or never minted by
// start_timer at all). h only needs to be a heap currently holding a
// copy of ref — not necessarily the one start_timer minted it against.
func (s *Service) CancelTimer(h *bheap.Heap, ref term.Term) (term.Term, bool) {
	creator, counter := term.ReferenceParts(h, ref)
	k := key{creator: creator, counter: counter}

	s.mu.Lock()
	e, ok := s.entries[k]
	if !ok {
		s.mu.Unlock()
		return s.falseAtom(), false
	}
	delete(s.entries, k)
	cheap.Remove(&s.queue, e.index)
	s.armLocked()
	s.mu.Unlock()

	return s.millis(h, time.Until(e.deadline)), true
}

// ReadTimer reports the milliseconds remaining on ref without
// cancelling it, or false if ref names no pending timer — grounded on
// read_timer_2/with_reference/with_empty_list_options.rs: a reference
// that was never associated with a timer (or whose timer already fired)
// reads as false.
func (s *Service) ReadTimer(h *bheap.Heap, ref term.Term) (term.Term, bool) {
	creator, counter := term.ReferenceParts(h, ref)
	k := key{creator: creator, counter: counter}

	s.mu.Lock()
	e, ok := s.entries[k]
	s.mu.Unlock()
	if !ok {
		return s.falseAtom(), false
	}
	return s.millis(h, time.Until(e.deadline)), true
}

func (s *Service) millis(h *bheap.Heap, d time.Duration) term.Term {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	v, err := term.NormalizeInt(h, ms)
	if err != nil {
		panic(err)
	}
	return v
}

func (s *Service) falseAtom() term.Term {
	id, err := s.tb.Intern("false")
	if err != nil {
		panic(err)
	}
	return term.MakeAtom(id)
}
