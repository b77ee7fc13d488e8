// Package process implements the process control block described in
// spec.md §4.4: per-process heap, mailbox, frame stack, reduction
// budget, status machine, and link/monitor bookkeeping. Process
// satisfies frame.ProcessHandle, which is how the frame engine in
// package frame drives it without frame needing to import this package.
package process

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/ktkr-us/beamcore/frame"
	"github.com/ktkr-us/beamcore/heap"
	"github.com/ktkr-us/beamcore/term"
)

// DefaultReductionBudget is the per-quantum reduction allowance spec.md
// §4.5 names: "Reduction budget default is 2,000 per scheduling
// quantum."
const DefaultReductionBudget = 2000

// Priority is one of the four run-queue priorities spec.md §4.6 names.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityMax
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityMax:
		return "max"
	default:
		return "unknown"
	}
}

// Status is the process state machine from spec.md §4.4: "Runnable →
// Running → (Runnable | Waiting | Exiting)".
type Status int32

const (
	StatusRunnable Status = iota
	StatusRunning
	StatusWaiting
	StatusExiting
)

func (s Status) String() string {
	switch s {
	case StatusRunnable:
		return "runnable"
	case StatusRunning:
		return "running"
	case StatusWaiting:
		return "waiting"
	case StatusExiting:
		return "exiting"
	default:
		return "unknown"
	}
}

// Process is a single logical Erlang/Elixir process. The zero value is
// not usable; build one with New.
type Process struct {
	Pid      term.Term // local pid, immediate
	Priority Priority

	Heap    *heap.Heap
	Mailbox *Mailbox

	status     int32 // atomic Status
	reductions int    // touched only by the scheduler goroutine running this process

	stack  []term.Term   // plain argument/result stack, distinct from frames
	frames []frame.Frame // call stack; frames[len-1] is current

	refCounter term.RefCounter

	mu          sync.Mutex
	exitReason  term.Term
	trapExit    bool
	links       map[term.Term]struct{}
	monitoring  map[term.Term]term.Term // ref -> peer, this process watches peer
	monitoredBy map[term.Term]term.Term // ref -> peer, peer watches this process
	registered  bool
	regName     term.Term // an atom term, valid only if registered
	dictionary  map[term.Term]term.Term
}

// New constructs a process ready to run mfa(args...) as its initial
// frame, per spec.md §4.4: "Process::new(priority, initial_heap_size,
// mfa, args) allocates a heap, pushes the initial frame, and returns a
// shared handle." code is the compiled (or BIF) body for mfa; the
// compiler/BIF layer is what actually supplies it (spec.md §6 — the
// core does not load code itself).
func New(pid term.Term, priority Priority, initialHeapWords, maxHeapWords int, mfa frame.MFA, code frame.Code, args []term.Term) *Process {
	p := &Process{
		Pid:         pid,
		Priority:    priority,
		Heap:        heap.New(initialHeapWords, maxHeapWords),
		Mailbox:     newMailbox(),
		reductions:  DefaultReductionBudget,
		links:       make(map[term.Term]struct{}),
		monitoring:  make(map[term.Term]term.Term),
		monitoredBy: make(map[term.Term]term.Term),
		dictionary:  make(map[term.Term]term.Term),
	}
	for i := len(args) - 1; i >= 0; i-- {
		p.StackPush(args[i])
	}
	p.PlaceFrame(frame.Frame{MFA: mfa, Code: code}, frame.Push)
	return p
}

// Status returns the process's current state.
func (p *Process) Status() Status {
	return Status(atomic.LoadInt32(&p.status))
}

// SetStatus transitions to s. Callers (the scheduler) are responsible
// for only making transitions the state machine in spec.md §4.4 allows.
func (p *Process) SetStatus(s Status) {
	atomic.StoreInt32(&p.status, int32(s))
}

// SetExiting transitions to Exiting and records reason, returning it
// from ExitReason from then on.
func (p *Process) SetExiting(reason term.Term) {
	p.mu.Lock()
	p.exitReason = reason
	p.mu.Unlock()
	p.SetStatus(StatusExiting)
}

// ExitReason returns the reason passed to SetExiting. Its value is only
// meaningful once Status() reports StatusExiting.
func (p *Process) ExitReason() term.Term {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitReason
}

// ResetReductions refills the reduction budget for a new scheduling
// quantum. Called by the scheduler immediately before resuming a
// process.
func (p *Process) ResetReductions() {
	p.reductions = DefaultReductionBudget
}

// Reduce implements frame.ProcessHandle: Yield once the budget is
// exhausted, otherwise charge one reduction and Continue.
func (p *Process) Reduce() frame.Signal {
	if p.reductions <= 0 {
		return frame.Yield()
	}
	p.reductions--
	return frame.Continue()
}

// Charge debits n reductions directly, for BIFs whose cost scales with
// their input (spec.md §4.5: "loops over N elements cost ~N").
func (p *Process) Charge(n int) {
	p.reductions -= n
}

// StackPush and StackPop manipulate the plain data stack frame code
// functions use to pass arguments and results across frame boundaries —
// separate from the call-frame stack itself.
func (p *Process) StackPush(t term.Term) error {
	p.stack = append(p.stack, t)
	return nil
}

func (p *Process) StackPop() (term.Term, bool) {
	if len(p.stack) == 0 {
		return 0, false
	}
	v := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	return v, true
}

// Stack exposes the live data stack for GC root scanning.
func (p *Process) Stack() []term.Term { return p.stack }

// PlaceFrame installs f per placement (spec.md §4.4/§4.5): Push stacks
// it so it runs before the current frame resumes; Replace overwrites
// the current frame outright, the shape a tail call takes.
func (p *Process) PlaceFrame(f frame.Frame, placement frame.Placement) {
	if placement == frame.Replace && len(p.frames) > 0 {
		p.frames[len(p.frames)-1] = f
		return
	}
	p.frames = append(p.frames, f)
}

// CurrentFrame returns the frame on top of the call stack, if any.
func (p *Process) CurrentFrame() (frame.Frame, bool) {
	if len(p.frames) == 0 {
		return frame.Frame{}, false
	}
	return p.frames[len(p.frames)-1], true
}

// PopFrame removes and returns the frame on top of the call stack.
func (p *Process) PopFrame() (frame.Frame, bool) {
	f, ok := p.CurrentFrame()
	if ok {
		p.frames = p.frames[:len(p.frames)-1]
	}
	return f, ok
}

// Frames exposes the live call stack for GC root scanning.
func (p *Process) Frames() []frame.Frame { return p.frames }

// ReturnFromCall pops the current frame and leaves value as the
// caller's result (spec.md §4.4), pushed onto the data stack so
// whatever frame runs next can pop it as an argument — the calling
// convention compiled code relies on; the core only needs to guarantee
// the value survives the pop.
func (p *Process) ReturnFromCall(value term.Term) error {
	if _, ok := p.PopFrame(); !ok {
		return errors.New("process: return_from_call with no frame on the stack")
	}
	return p.StackPush(value)
}

// NextReference mints a reference term unique to this process (spec.md
// §3: "64-bit monotonically increasing counter per process, extended
// with the pid to be globally unique").
func (p *Process) NextReference() (term.Term, error) {
	return term.MakeReference(p.Heap, p.Pid, p.refCounter.Next())
}

// TrapExit reports whether exit signals to this process arrive as
// {'EXIT', From, Reason} messages instead of killing it (spec.md
// §4.4).
func (p *Process) TrapExit() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.trapExit
}

// SetTrapExit sets the trap_exit flag.
func (p *Process) SetTrapExit(v bool) {
	p.mu.Lock()
	p.trapExit = v
	p.mu.Unlock()
}

// Link records a bidirectional link to peer. Callers are responsible
// for calling Link on both processes; Process itself never reaches
// across to a peer (spec.md §9: "store as symmetric sets of pids
// indexed by both endpoints; never as direct owning pointers").
func (p *Process) Link(peer term.Term) {
	p.mu.Lock()
	p.links[peer] = struct{}{}
	p.mu.Unlock()
}

// Unlink removes a previously recorded link.
func (p *Process) Unlink(peer term.Term) {
	p.mu.Lock()
	delete(p.links, peer)
	p.mu.Unlock()
}

// Links returns every linked peer pid.
func (p *Process) Links() []term.Term {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]term.Term, 0, len(p.links))
	for peer := range p.links {
		out = append(out, peer)
	}
	return out
}

// AddMonitoring records that this process is now monitoring peer under
// ref (the result of monitor/2 called from this process).
func (p *Process) AddMonitoring(ref, peer term.Term) {
	p.mu.Lock()
	p.monitoring[ref] = peer
	p.mu.Unlock()
}

// AddMonitoredBy records that peer is monitoring this process under
// ref, so this process's exit knows to notify peer.
func (p *Process) AddMonitoredBy(ref, peer term.Term) {
	p.mu.Lock()
	p.monitoredBy[ref] = peer
	p.mu.Unlock()
}

// RemoveMonitoring cancels a monitor this process created (demonitor).
func (p *Process) RemoveMonitoring(ref term.Term) (peer term.Term, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	peer, ok = p.monitoring[ref]
	delete(p.monitoring, ref)
	return
}

// MonitoredBy returns every (ref, watcher) pair watching this process,
// for exit teardown to notify.
func (p *Process) MonitoredBy() map[term.Term]term.Term {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[term.Term]term.Term, len(p.monitoredBy))
	for ref, peer := range p.monitoredBy {
		out[ref] = peer
	}
	return out
}

// SetRegisteredName records that this process has been registered as
// name (an atom term). The scheduler's name directory is the source of
// truth; this mirror lets a process answer "am I registered, and as
// what" without consulting it.
func (p *Process) SetRegisteredName(name term.Term, registered bool) {
	p.mu.Lock()
	p.regName = name
	p.registered = registered
	p.mu.Unlock()
}

// RegisteredName reports this process's registered name, if any.
func (p *Process) RegisteredName() (term.Term, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.regName, p.registered
}

// Get and Put implement the process dictionary (spec.md §4.4:
// "dictionary (opaque kv map)").
func (p *Process) Get(key term.Term) (term.Term, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.dictionary[key]
	return v, ok
}

func (p *Process) Put(key, value term.Term) {
	p.mu.Lock()
	p.dictionary[key] = value
	p.mu.Unlock()
}

// Dictionary returns a snapshot of the process dictionary, for GC root
// scanning.
func (p *Process) Dictionary() map[term.Term]term.Term {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[term.Term]term.Term, len(p.dictionary))
	for k, v := range p.dictionary {
		out[k] = v
	}
	return out
}

// Roots collects every term this process currently holds live outside
// its heap's own internal structure — the data stack, the mailbox's
// messages, the registered name (if any) and the values (not the keys)
// of the process dictionary — for package term's copying collector to
// scan (spec.md §4.3: "a
// copying collection scans process roots (stack frames, mailbox,
// registered-name reference, dictionary)").
func (p *Process) Roots() []term.Term {
	var roots []term.Term
	roots = append(roots, p.stack...)
	roots = append(roots, p.Mailbox.Messages()...)
	if name, ok := p.RegisteredName(); ok {
		roots = append(roots, name)
	}
	for _, v := range p.Dictionary() {
		roots = append(roots, v)
	}
	return roots
}

var _ frame.ProcessHandle = (*Process)(nil)
