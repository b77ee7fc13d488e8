package scheduler

import (
	"github.com/ktkr-us/beamcore/atom"
	"github.com/ktkr-us/beamcore/heap"
	"github.com/ktkr-us/beamcore/term"
)

// envelopeQueueDepth bounds each scheduler's inbound forwarding queue.
// A full queue blocks the sending scheduler's goroutine on that one
// send rather than growing without limit — back-pressure, not an
// unbounded mailbox of mailboxes.
const envelopeQueueDepth = 256

// envelope is a message already copied off its sender's live process
// heap onto a standalone scratch heap it owns for the trip across
// scheduler goroutines.
type envelope struct {
	target term.Term
	msg    term.Term
	heap   *heap.Heap
}

// Cluster shards processes across N schedulers and forwards messages
// between them, the multi-scheduler half of spec.md §5's concurrency
// model: "a pid decodes to the scheduler shard that owns it; a send to
// a pid on another shard is forwarded, never delivered by reaching
// across goroutines." Routing is by pid.serial (Scheduler.mintPid packs
// the owning scheduler's index into that field); forwarding runs over a
// bounded channel per destination shard, the "lock-free inter-scheduler
// forwarding queue" the spec names — lock-free in the sense that no
// scheduler ever takes a lock belonging to another shard, not that the
// channel itself is literally lock-free.
type Cluster struct {
	schedulers []*Scheduler
	stop       chan struct{}
}

// NewCluster builds n schedulers sharing tb and load, wires each one's
// outbound routing through the cluster, and starts their forwarding
// pumps. n must be at least 1.
func NewCluster(n int, tb *atom.Table, load Loader) *Cluster {
	c := &Cluster{
		schedulers: make([]*Scheduler, n),
		stop:       make(chan struct{}),
	}
	for i := 0; i < n; i++ {
		s := New(i, tb, load, nil)
		s.inboxCh = make(chan envelope, envelopeQueueDepth)
		c.schedulers[i] = s
	}
	for _, s := range c.schedulers {
		s.outbox = c.route
	}
	for i := range c.schedulers {
		go c.pump(i)
	}
	return c
}

// Scheduler returns shard i.
func (c *Cluster) Scheduler(i int) *Scheduler { return c.schedulers[i] }

// Len reports how many schedulers make up the cluster.
func (c *Cluster) Len() int { return len(c.schedulers) }

// route decides which shard owns target, per mintPid's pid.serial ==
// owning scheduler index convention. An external pid (one this cluster
// never minted) has no shard and routes nowhere.
func (c *Cluster) route(target term.Term) (*Scheduler, bool) {
	if !term.IsLocalPidTerm(target) {
		return nil, false
	}
	_, serial := term.LocalPid(target)
	idx := int(serial)
	if idx < 0 || idx >= len(c.schedulers) {
		return nil, false
	}
	return c.schedulers[idx], true
}

// pump drains shard i's inbound envelope queue, handing each message to
// that shard's own deliverRemote — the only path by which a message
// crosses from one scheduler's goroutine to another's process table.
func (c *Cluster) pump(i int) {
	s := c.schedulers[i]
	for {
		select {
		case <-c.stop:
			return
		case env := <-s.inboxCh:
			s.deliverRemote(env)
		}
	}
}

// RunThroughAll advances every shard by one quantum each, reporting
// whether any shard did work. Exposed for deterministic multi-shard
// tests; a production driver would instead run each Scheduler's
// RunThrough in its own goroutine loop.
func (c *Cluster) RunThroughAll() bool {
	any := false
	for _, s := range c.schedulers {
		if s.RunThrough() {
			any = true
		}
	}
	return any
}

// Stop halts every shard's timer service and the cluster's forwarding
// pumps.
func (c *Cluster) Stop() {
	close(c.stop)
	for _, s := range c.schedulers {
		s.Stop()
	}
}
