// Package scheduler implements the per-scheduler run queues, spawn/
// link/send/teardown machinery, and registered-name directory from
// spec.md §4.6, plus the multi-scheduler Cluster from §5's concurrency
// model. A Scheduler also implements bif.Host and timer.Deliverer, the
// two capability interfaces those packages define instead of importing
// scheduler directly.
package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/ktkr-us/beamcore/atom"
	"github.com/ktkr-us/beamcore/bif"
	"github.com/ktkr-us/beamcore/frame"
	"github.com/ktkr-us/beamcore/heap"
	"github.com/ktkr-us/beamcore/internal/trace"
	"github.com/ktkr-us/beamcore/process"
	"github.com/ktkr-us/beamcore/resource"
	"github.com/ktkr-us/beamcore/term"
	"github.com/ktkr-us/beamcore/timer"
)

// lowPriorityStarveQuanta is spec.md §4.6's N: "low is only picked when
// normal is empty for N quanta (N = 8) to avoid starvation."
const lowPriorityStarveQuanta = 8

const (
	defaultInitialHeapWords = 256
	defaultMaxHeapWords     = 1 << 20
)

// Loader resolves an MFA to a runnable code body. This core has no
// compiler front end or bytecode loader of its own (spec.md §1 scopes
// those out as external collaborators); a Scheduler asks its Loader
// whenever spawn/spawn_link needs to start a new process, and treats a
// failed lookup as erlang:undef.
type Loader func(mfa frame.MFA) (frame.Code, bool)

// Scheduler owns one shard of processes: four priority run queues, the
// process table, and the registered-name directory. The zero value is
// not usable; build one with New.
type Scheduler struct {
	id        int
	atoms     *atom.Table
	load      Loader
	timers    *timer.Service
	resources *resource.Registry
	trace     *trace.Logger
	outbox    func(target term.Term) (*Scheduler, bool) // Cluster routing hook; nil when standalone
	inboxCh   chan envelope                             // Cluster forwarding queue for this shard; nil when standalone

	queueMu   sync.Mutex
	queues    [4]*runQueue // indexed by process.Priority
	lowStarve int

	procMu    sync.Mutex
	processes map[term.Term]*process.Process

	namesMu sync.RWMutex
	names   map[term.Term]term.Term // atom -> pid

	nextNumber uint32
}

// New builds a Scheduler identified as id within a Cluster (0 if
// standalone), using tb for atom interning, load to resolve spawned
// MFAs to code, and lg for uncaught-exception logging (nil gets a
// stderr default from package trace).
func New(id int, tb *atom.Table, load Loader, lg *trace.Logger) *Scheduler {
	s := &Scheduler{
		id:        id,
		atoms:     tb,
		load:      load,
		trace:     lg,
		resources: resource.NewRegistry(),
		processes: make(map[term.Term]*process.Process),
		names:     make(map[term.Term]term.Term),
	}
	if s.trace == nil {
		s.trace = trace.New(nil)
	}
	for i := range s.queues {
		s.queues[i] = newRunQueue()
	}
	s.timers = timer.New(tb, s)
	return s
}

// Atoms returns the atom table this scheduler interns into.
func (s *Scheduler) Atoms() *atom.Table { return s.atoms }

// Timers returns the timer service backing this scheduler's
// start_timer/cancel_timer/read_timer.
func (s *Scheduler) Timers() *timer.Service { return s.timers }

// Resources returns the registry backing this scheduler's host-object
// resource references (spec.md §5). BIF/host code registers an object
// here to get the Handle it boxes with term.MakeResource; a process's
// residual handles are released automatically when it exits.
func (s *Scheduler) Resources() *resource.Registry { return s.resources }

// copyTerm deep-copies t from src into dst and retains, in this
// scheduler's resource registry, every resource handle the copy
// duplicated onto dst. src keeps its own reference; dst's copy is an
// independent one that dst's own eventual process exit must release in
// turn, same as the off-heap procbin Retain CopyTerm already does
// internally. All cross-heap copies in this file go through here
// instead of calling term.CopyTerm directly, for exactly that reason.
func (s *Scheduler) copyTerm(dst, src *heap.Heap, t term.Term) term.Term {
	before := len(dst.Resources())
	copied := term.CopyTerm(dst, src, t)
	for _, handle := range dst.Resources()[before:] {
		s.resources.Retain(resource.Handle(handle))
	}
	return copied
}

// Stop halts the scheduler's timer service. Processes and run queues
// are left as-is; Stop is for clean shutdown of background goroutines,
// not process teardown.
func (s *Scheduler) Stop() { s.timers.Stop() }

func (s *Scheduler) mintPid() term.Term {
	n := atomic.AddUint32(&s.nextNumber, 1)
	return term.MakeLocalPid(n, uint32(s.id))
}

// Spawn creates a process running mfa(args...) under code, enqueues it
// Runnable, and returns its pid (spec.md §4.6: "spawn(mfa, args,
// options) → pid").
func (s *Scheduler) Spawn(priority process.Priority, mfa frame.MFA, code frame.Code, args []term.Term) term.Term {
	pid := s.mintPid()
	p := process.New(pid, priority, defaultInitialHeapWords, defaultMaxHeapWords, mfa, code, args)

	s.procMu.Lock()
	s.processes[pid] = p
	s.procMu.Unlock()

	s.enqueue(p)
	return pid
}

func (s *Scheduler) enqueue(p *process.Process) {
	p.SetStatus(process.StatusRunnable)
	s.queueMu.Lock()
	s.queues[p.Priority].push(p.Pid)
	s.queueMu.Unlock()
}

// resolve turns mfa into runnable code, falling back to a frame that
// immediately raises erlang:undef — grounded on
// spawn_link_3/.../with_loaded_module.rs's counterpart scenario (an MFA
// that resolves to nothing): the child still gets a pid and a heap, it
// just exits undef the first time it's scheduled.
func (s *Scheduler) resolve(mfa frame.MFA) frame.Code {
	if s.load != nil {
		if code, ok := s.load(mfa); ok {
			return code
		}
	}
	return func(ph frame.ProcessHandle) frame.Signal {
		pp := ph.(*process.Process)
		return frame.Raise(bif.Undef(s.atoms, pp, mfa))
	}
}

// SpawnLink implements bif.Host: spawn_link/3's spawn-then-link, with
// the link recorded before the child ever runs so an immediate undef
// exit still propagates to the parent.
func (s *Scheduler) SpawnLink(parent *process.Process, mfa frame.MFA, args []term.Term) (term.Term, *bif.Exception) {
	childPid := s.Spawn(process.PriorityNormal, mfa, s.resolve(mfa), args)
	s.Link(parent.Pid, childPid)
	return childPid, nil
}

// SpawnMonitor spawns a process and establishes a one-way monitor from
// the caller to the child, returning (childPid, monitorRef).
func (s *Scheduler) SpawnMonitor(parent *process.Process, mfa frame.MFA, args []term.Term) (childPid, ref term.Term, err error) {
	childPid = s.Spawn(process.PriorityNormal, mfa, s.resolve(mfa), args)
	ref, err = parent.NextReference()
	if err != nil {
		return childPid, 0, err
	}
	parent.AddMonitoring(ref, childPid)
	if child, ok := s.lookup(childPid); ok {
		child.AddMonitoredBy(ref, parent.Pid)
	}
	return childPid, ref, nil
}

// Link records a bidirectional link between a and b (spec.md §9:
// "store as symmetric sets of pids indexed by both endpoints"). Either
// side may already have exited; Link on a retired pid is a no-op for
// that side.
func (s *Scheduler) Link(a, b term.Term) {
	if pa, ok := s.lookup(a); ok {
		pa.Link(b)
	}
	if pb, ok := s.lookup(b); ok {
		pb.Link(a)
	}
}

func (s *Scheduler) lookup(pid term.Term) (*process.Process, bool) {
	s.procMu.Lock()
	defer s.procMu.Unlock()
	p, ok := s.processes[pid]
	return p, ok
}

// Register binds name (an atom term) to pid in this scheduler's
// registered-name directory. Returns an error if name is already
// registered.
func (s *Scheduler) Register(name, pid term.Term) error {
	s.namesMu.Lock()
	defer s.namesMu.Unlock()
	if _, taken := s.names[name]; taken {
		return errors.New("scheduler: name already registered")
	}
	s.names[name] = pid
	if p, ok := s.lookup(pid); ok {
		p.SetRegisteredName(name, true)
	}
	return nil
}

// Whereis looks up a registered name, reporting false if nothing is
// registered under it.
func (s *Scheduler) Whereis(name term.Term) (term.Term, bool) {
	s.namesMu.RLock()
	defer s.namesMu.RUnlock()
	pid, ok := s.names[name]
	return pid, ok
}

func (s *Scheduler) resolveDestination(target term.Term) (term.Term, bool) {
	if term.IsAtomTerm(target) {
		return s.Whereis(target)
	}
	if term.IsLocalPidTerm(target) {
		return target, true
	}
	return 0, false
}

// Send implements bif.Host and spec.md §4.6's send: local forms only —
// a pid or a registered atom name. Same-scheduler delivery acquires the
// destination's heap lock and deep-copies msg in; cross-scheduler
// delivery (Cluster) copies msg onto a standalone scratch heap here
// (the only heap this goroutine is allowed to touch besides from's own)
// and hands that off through the destination shard's bounded envelope
// channel, which is the only thing ever shared across scheduler
// goroutines.
func (s *Scheduler) Send(from *process.Process, target, msg term.Term) (term.Term, *bif.Exception) {
	dest, ok := s.resolveDestination(target)
	if !ok {
		exc := bif.Badarg(s.atoms)
		return 0, &exc
	}

	if s.outbox != nil {
		if owner, ok := s.outbox(dest); ok && owner != s {
			owner.sendRemote(s.forwardEnvelope(from, dest, msg))
			return okAtom(s.atoms), nil
		}
	}

	to, ok := s.lookup(dest)
	if !ok {
		// A send to a pid that has already exited is not an error in
		// BEAM; it is simply dropped.
		return okAtom(s.atoms), nil
	}
	s.deliverLocal(from, to, msg)
	return okAtom(s.atoms), nil
}

// forwardEnvelope copies msg out of from's heap onto a fresh,
// unshared scratch heap sized to what it just copied — the envelope a
// cross-scheduler send carries across the channel boundary, so the
// destination shard's pump never touches from's live process heap.
func (s *Scheduler) forwardEnvelope(from *process.Process, dest, msg term.Term) envelope {
	scratch := heap.New(defaultInitialHeapWords, defaultMaxHeapWords)
	copied := s.copyTerm(scratch, from.Heap, msg)
	return envelope{target: dest, msg: copied, heap: scratch}
}

// deliverLocal implements the deep-copy side of a same-scheduler send
// (spec.md §4.6: "acquire the receiver's heap lock, deep-copy msg into
// the receiver's heap"). from is nil only for a fired timer's delivery:
// that message has been held by timer.Service itself since start_timer,
// independent of any live process heap, so it is pushed as-is.
// Cross-scheduler delivery does not go through here at all — see
// deliverRemote, which copies out of the envelope's own scratch heap.
func (s *Scheduler) deliverLocal(from *process.Process, to *process.Process, msg term.Term) {
	if from == nil || from == to {
		to.Mailbox.Push(msg)
		if to.Status() == process.StatusWaiting {
			s.enqueue(to)
		}
		return
	}
	to.Heap.Lock()
	copied := s.copyTerm(to.Heap, from.Heap, msg)
	to.Heap.Unlock()
	to.Mailbox.Push(copied)
	if to.Status() == process.StatusWaiting {
		s.enqueue(to)
	}
}

// sendRemote hands env to this shard's forwarding queue, blocking if it
// is full (back-pressure on the sending goroutine rather than an
// unbounded buffer). Only meaningful on a Scheduler built by a Cluster.
func (s *Scheduler) sendRemote(env envelope) {
	s.inboxCh <- env
}

// deliverRemote is the receiving side of a cross-scheduler send: env's
// payload lives on its own scratch heap (built by the sender's
// forwardEnvelope), so this still performs a real cross-heap copy, not
// a same-scheduler passthrough.
func (s *Scheduler) deliverRemote(env envelope) {
	to, ok := s.lookup(env.target)
	if !ok {
		return
	}
	to.Heap.Lock()
	copied := s.copyTerm(to.Heap, env.heap, env.msg)
	to.Heap.Unlock()
	to.Mailbox.Push(copied)
	if to.Status() == process.StatusWaiting {
		s.enqueue(to)
	}
}

// DeliverTimer implements timer.Deliverer: a fired timer's message is
// delivered exactly like any other send.
func (s *Scheduler) DeliverTimer(target, msg term.Term) {
	if to, ok := s.lookup(target); ok {
		s.deliverLocal(nil, to, msg)
	}
}

// ReadTimer implements bif.Host by delegating to the timer service,
// translating "no such timer" into the atom false per
// read_timer_2/with_reference/with_empty_list_options.rs rather than an
// exception — the BIF always succeeds, it just may answer false.
func (s *Scheduler) ReadTimer(asking *process.Process, ref term.Term) (term.Term, *bif.Exception) {
	v, _ := s.timers.ReadTimer(asking.Heap, ref)
	return v, nil
}

func okAtom(tb *atom.Table) term.Term {
	id, err := tb.Intern("ok")
	if err != nil {
		panic(err)
	}
	return term.MakeAtom(id)
}

// pickQueue applies spec.md §4.6's selection policy: highest non-empty
// priority wins outright for Max/High; Normal is preferred over Low
// unless Low has been starved for lowPriorityStarveQuanta consecutive
// picks.
func (s *Scheduler) pickQueue() (process.Priority, bool) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	if s.queues[process.PriorityMax].len() > 0 {
		return process.PriorityMax, true
	}
	if s.queues[process.PriorityHigh].len() > 0 {
		return process.PriorityHigh, true
	}
	normalReady := s.queues[process.PriorityNormal].len() > 0
	lowReady := s.queues[process.PriorityLow].len() > 0
	switch {
	case normalReady && lowReady:
		if s.lowStarve >= lowPriorityStarveQuanta {
			s.lowStarve = 0
			return process.PriorityLow, true
		}
		s.lowStarve++
		return process.PriorityNormal, true
	case normalReady:
		return process.PriorityNormal, true
	case lowReady:
		s.lowStarve = 0
		return process.PriorityLow, true
	default:
		return 0, false
	}
}

// RunThrough advances one Runnable process by one scheduling quantum
// and reports whether any reduction happened, per spec.md §4.6: "used
// for deterministic testing."
func (s *Scheduler) RunThrough() bool {
	priority, ok := s.pickQueue()
	if !ok {
		return false
	}

	s.queueMu.Lock()
	pid, ok := s.queues[priority].pop()
	s.queueMu.Unlock()
	if !ok {
		return false
	}

	p, ok := s.lookup(pid)
	if !ok {
		return false
	}

	p.SetStatus(process.StatusRunning)
	p.ResetReductions()
	sig := frame.Run(p)

	switch sig.Kind {
	case frame.SignalYield:
		s.enqueue(p)
	case frame.SignalReturn:
		s.exit(p, normalAtom(s.atoms))
	case frame.SignalException:
		s.exitException(p, sig.Exception)
	}
	return true
}

func normalAtom(tb *atom.Table) term.Term {
	id, err := tb.Intern("normal")
	if err != nil {
		panic(err)
	}
	return term.MakeAtom(id)
}

// exitException turns an uncaught exception into an exit reason
// (spec.md §7: "throw:V ... becomes error:{nocatch,V} if uncaught")
// before tearing the process down, and logs it per §7's "uncaught
// exceptions log {class, reason, stacktrace}".
func (s *Scheduler) exitException(p *process.Process, exc frame.Exception) {
	reason := exc.Reason
	if exc.Class == frame.ClassThrow {
		nocatchID, err := s.atoms.Intern("nocatch")
		if err == nil {
			if tup, terr := term.MakeTuple(p.Heap, []term.Term{term.MakeAtom(nocatchID), exc.Reason}); terr == nil {
				reason = tup
			}
		}
	}
	s.trace.Uncaught(p.Pid, exc, func(t term.Term) string { return termString(p, s.atoms, t) })
	s.exit(p, reason)
}

// exit transitions p to Exiting(reason) and implements spec.md §4.4's
// teardown: a `killed` reason (what Exit turns `kill` into) is
// untrappable; otherwise trapping links
// receive {'EXIT', From, Reason} while non-trapping links die with the
// same reason, and monitors always receive {'DOWN', Ref, process, From,
// Reason} regardless of trap_exit.
func (s *Scheduler) exit(p *process.Process, reason term.Term) {
	p.SetExiting(reason)

	for _, peer := range p.Links() {
		peerProc, ok := s.lookup(peer)
		if !ok {
			continue
		}
		peerProc.Unlink(p.Pid)
		if peerProc.TrapExit() && !s.isKilled(reason) {
			s.deliverExitSignal(p, peerProc, p.Pid, reason)
			continue
		}
		if s.isNormal(reason) {
			continue
		}
		if peerProc.Status() != process.StatusExiting {
			// reason may be a boxed term still indexed against p's
			// heap (e.g. {badmatch, V}); peerProc becomes its new
			// owner from here on, including if it cascades further,
			// so it needs its own copy before propagating.
			peerProc.Heap.Lock()
			cascaded := s.copyTerm(peerProc.Heap, p.Heap, reason)
			peerProc.Heap.Unlock()
			s.exit(peerProc, cascaded)
		}
	}

	for ref, watcher := range p.MonitoredBy() {
		watcherProc, ok := s.lookup(watcher)
		if !ok {
			continue
		}
		s.deliverDownSignal(p, watcherProc, ref, p.Pid, reason)
	}

	for _, handle := range p.Heap.Resources() {
		s.resources.Release(resource.Handle(handle))
	}

	s.procMu.Lock()
	delete(s.processes, p.Pid)
	s.procMu.Unlock()

	if name, registered := p.RegisteredName(); registered {
		s.namesMu.Lock()
		delete(s.names, name)
		s.namesMu.Unlock()
	}
}

func (s *Scheduler) isKilled(reason term.Term) bool {
	if !term.IsAtomTerm(reason) {
		return false
	}
	killedID, err := s.atoms.InternExisting("killed")
	return err == nil && reason == term.MakeAtom(killedID)
}

func (s *Scheduler) isNormal(reason term.Term) bool {
	if !term.IsAtomTerm(reason) {
		return false
	}
	normalID, err := s.atoms.InternExisting("normal")
	return err == nil && reason == term.MakeAtom(normalID)
}

// deliverExitSignal builds {'EXIT', From, Reason} on to's heap. from is
// exiting's pid, an immediate that needs no copy; reason may be a boxed
// term (e.g. {badmatch, V}) still living on exiting's heap and is
// copied across under to's heap lock.
func (s *Scheduler) deliverExitSignal(exiting, to *process.Process, from, reason term.Term) {
	exitID, err := s.atoms.Intern("EXIT")
	if err != nil {
		return
	}
	to.Heap.Lock()
	copiedReason := s.copyTerm(to.Heap, exiting.Heap, reason)
	tup, err := process.ExitMessage(to.Heap, exitID, from, copiedReason)
	to.Heap.Unlock()
	if err != nil {
		return
	}
	to.Mailbox.Push(tup)
	if to.Status() == process.StatusWaiting {
		s.enqueue(to)
	}
}

// deliverDownSignal builds {'DOWN', Ref, process, From, Reason} on to's
// heap. ref was minted by to itself (SpawnMonitor calls
// parent.NextReference() on the monitoring process, not the monitored
// one), so it is already a valid term.Term on to's own heap and needs
// no copy; reason is copied from exiting's heap the same as above.
func (s *Scheduler) deliverDownSignal(exiting, to *process.Process, ref, from, reason term.Term) {
	downID, err := s.atoms.Intern("DOWN")
	if err != nil {
		return
	}
	processID, err := s.atoms.Intern("process")
	if err != nil {
		return
	}
	to.Heap.Lock()
	copiedReason := s.copyTerm(to.Heap, exiting.Heap, reason)
	tup, err := process.DownMessage(to.Heap, downID, processID, ref, from, copiedReason)
	to.Heap.Unlock()
	if err != nil {
		return
	}
	to.Mailbox.Push(tup)
	if to.Status() == process.StatusWaiting {
		s.enqueue(to)
	}
}

// Exit delivers an asynchronous exit signal to pid, spec.md §5's
// cancellation model: "a process is cancelled by delivering an exit
// signal. kill reason is untrappable and sets Exiting(killed)
// unconditionally." A normal reason has no observable effect (spec.md
// §8, line 194),
// and a trapping target receives the signal as an {'EXIT', From,
// Reason} message and keeps running, exactly like a trapping link does
// in exit's own cascade loop — only kill bypasses both.
func (s *Scheduler) Exit(pid, reason term.Term) {
	p, ok := s.lookup(pid)
	if !ok || p.Status() == process.StatusExiting {
		return
	}

	killID, err := s.atoms.Intern("kill")
	if err == nil && reason == term.MakeAtom(killID) {
		killedID, err := s.atoms.Intern("killed")
		if err != nil {
			return
		}
		reason = term.MakeAtom(killedID)
	}

	if s.isNormal(reason) {
		return
	}

	if p.TrapExit() && !s.isKilled(reason) {
		exitID, err := s.atoms.Intern("EXIT")
		if err != nil {
			return
		}
		p.Heap.Lock()
		tup, err := process.ExitMessage(p.Heap, exitID, pid, reason)
		p.Heap.Unlock()
		if err != nil {
			return
		}
		p.Mailbox.Push(tup)
		if p.Status() == process.StatusWaiting {
			s.enqueue(p)
		}
		return
	}

	s.exit(p, reason)
}

var _ bif.Host = (*Scheduler)(nil)
var _ timer.Deliverer = (*Scheduler)(nil)
