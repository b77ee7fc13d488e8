package scheduler

import (
	"testing"

	"github.com/ktkr-us/beamcore/atom"
	"github.com/ktkr-us/beamcore/frame"
	"github.com/ktkr-us/beamcore/process"
	"github.com/ktkr-us/beamcore/resource"
	"github.com/ktkr-us/beamcore/term"
)

func newTestScheduler(t *testing.T) (*Scheduler, *atom.Table) {
	t.Helper()
	tb := atom.New()
	s := New(0, tb, nil, nil)
	t.Cleanup(s.Stop)
	return s, tb
}

func mfaOf(tb *atom.Table, module, function string, arity int) frame.MFA {
	mid, err := tb.Intern(module)
	if err != nil {
		panic(err)
	}
	fid, err := tb.Intern(function)
	if err != nil {
		panic(err)
	}
	return frame.MFA{Module: term.Word(mid), Function: term.Word(fid), Arity: arity}
}

func TestSpawnEnqueuesAndRunThroughExecutesIt(t *testing.T) {
	s, tb := newTestScheduler(t)
	ran := false
	code := func(ph frame.ProcessHandle) frame.Signal {
		ran = true
		ph.PopFrame()
		return frame.Return(term.Nil)
	}
	s.Spawn(process.PriorityNormal, mfaOf(tb, "m", "f", 0), code, nil)

	if !s.RunThrough() {
		t.Fatal("RunThrough reported no work with a freshly spawned process queued")
	}
	if !ran {
		t.Fatal("spawned process's code never ran")
	}
	if s.RunThrough() {
		t.Fatal("RunThrough found more work after the only process exited")
	}
}

func TestUnresolvedMFARaisesUndef(t *testing.T) {
	s, tb := newTestScheduler(t)
	pid := s.Spawn(process.PriorityNormal, mfaOf(tb, "missing", "f", 0), s.resolve(mfaOf(tb, "missing", "f", 0)), nil)
	s.RunThrough()
	if _, ok := s.lookup(pid); ok {
		t.Fatal("process with an unresolved MFA should have exited, not stayed runnable")
	}
}

func TestSendDeliversIntoMailboxAcrossHeaps(t *testing.T) {
	s, tb := newTestScheduler(t)
	idle := func(frame.ProcessHandle) frame.Signal { return frame.Return(term.Nil) }
	receiverPid := s.Spawn(process.PriorityNormal, mfaOf(tb, "m", "recv", 0), idle, nil)
	senderPid := s.Spawn(process.PriorityNormal, mfaOf(tb, "m", "send", 0), idle, nil)
	receiver, _ := s.lookup(receiverPid)
	sender, _ := s.lookup(senderPid)

	payload, err := term.MakeTuple(sender.Heap, []term.Term{term.Nil})
	if err != nil {
		t.Fatal(err)
	}
	if _, exc := s.Send(sender, receiverPid, payload); exc != nil {
		t.Fatalf("Send returned exception: %+v", exc)
	}

	got, ok := receiver.Mailbox.Receive(func(term.Term) bool { return true })
	if !ok {
		t.Fatal("receiver's mailbox is empty after Send")
	}
	if !term.IsTuple(receiver.Heap, got) {
		t.Fatal("delivered message lost its tuple shape crossing heaps")
	}
}

func TestNonTrappingLinkedProcessCascadesExit(t *testing.T) {
	s, tb := newTestScheduler(t)
	idle := func(frame.ProcessHandle) frame.Signal { return frame.Return(term.Nil) }
	parentPid := s.Spawn(process.PriorityNormal, mfaOf(tb, "m", "parent", 0), idle, nil)
	parent, _ := s.lookup(parentPid)

	childPid, exc := s.SpawnLink(parent, mfaOf(tb, "m", "child", 0), nil)
	if exc != nil {
		t.Fatalf("SpawnLink returned exception: %+v", exc)
	}
	child, _ := s.lookup(childPid)

	reasonID, _ := tb.Intern("boom")
	s.exit(child, term.MakeAtom(reasonID))

	if _, ok := s.lookup(parentPid); ok {
		t.Fatal("a non-trapping linked parent must cascade-exit with its child")
	}
}

func TestTrappingLinkedProcessReceivesExitTuple(t *testing.T) {
	s, tb := newTestScheduler(t)
	idle := func(frame.ProcessHandle) frame.Signal { return frame.Return(term.Nil) }
	parentPid := s.Spawn(process.PriorityNormal, mfaOf(tb, "m", "parent", 0), idle, nil)
	parent, _ := s.lookup(parentPid)
	parent.SetTrapExit(true)

	childPid, exc := s.SpawnLink(parent, mfaOf(tb, "m", "child", 0), nil)
	if exc != nil {
		t.Fatalf("SpawnLink returned exception: %+v", exc)
	}
	child, _ := s.lookup(childPid)

	reasonID, _ := tb.Intern("boom")
	s.exit(child, term.MakeAtom(reasonID))

	if _, ok := s.lookup(parentPid); !ok {
		t.Fatal("a trapping linked parent must survive its child's exit")
	}
	msg, ok := parent.Mailbox.Receive(func(term.Term) bool { return true })
	if !ok {
		t.Fatal("trapping parent never received an EXIT tuple")
	}
	if !term.IsTuple(parent.Heap, msg) || term.TupleArity(parent.Heap, msg) != 3 {
		t.Fatalf("expected a 3-tuple EXIT signal, got %v", msg)
	}
}

func TestRegisterAndWhereis(t *testing.T) {
	s, tb := newTestScheduler(t)
	pid := s.Spawn(process.PriorityNormal, mfaOf(tb, "m", "f", 0), func(frame.ProcessHandle) frame.Signal {
		return frame.Return(term.Nil)
	}, nil)
	nameID, _ := tb.Intern("worker")
	name := term.MakeAtom(nameID)
	if err := s.Register(name, pid); err != nil {
		t.Fatal(err)
	}
	got, ok := s.Whereis(name)
	if !ok || got != pid {
		t.Fatalf("Whereis = %v, %v; want %v, true", got, ok, pid)
	}
	if err := s.Register(name, pid); err == nil {
		t.Fatal("Register should refuse a name already taken")
	}
}

func TestExitReleasesOwnedResource(t *testing.T) {
	s, tb := newTestScheduler(t)
	idle := func(frame.ProcessHandle) frame.Signal { return frame.Return(term.Nil) }
	pid := s.Spawn(process.PriorityNormal, mfaOf(tb, "m", "owner", 0), idle, nil)
	p, _ := s.lookup(pid)

	destroyed := false
	h := s.Resources().Register("conn", func(interface{}) { destroyed = true })
	if _, err := term.MakeResource(p.Heap, h); err != nil {
		t.Fatal(err)
	}

	reasonID, _ := tb.Intern("normal")
	s.exit(p, term.MakeAtom(reasonID))

	if !destroyed {
		t.Fatal("exiting the only process holding a resource should have released it")
	}
}

func TestCrossHeapCopyRetainsResourceUntilBothOwnersExit(t *testing.T) {
	s, tb := newTestScheduler(t)
	idle := func(frame.ProcessHandle) frame.Signal { return frame.Return(term.Nil) }
	senderPid := s.Spawn(process.PriorityNormal, mfaOf(tb, "m", "sender", 0), idle, nil)
	receiverPid := s.Spawn(process.PriorityNormal, mfaOf(tb, "m", "receiver", 0), idle, nil)
	sender, _ := s.lookup(senderPid)
	receiver, _ := s.lookup(receiverPid)

	destroyed := false
	h := s.Resources().Register("conn", func(interface{}) { destroyed = true })
	msg, err := term.MakeResource(sender.Heap, h)
	if err != nil {
		t.Fatal(err)
	}
	if _, exc := s.Send(sender, receiverPid, msg); exc != nil {
		t.Fatalf("Send returned exception: %+v", exc)
	}

	reasonID, _ := tb.Intern("normal")
	s.exit(sender, term.MakeAtom(reasonID))
	if destroyed {
		t.Fatal("the receiver still holds a live copy; destructor should not have run yet")
	}

	s.exit(receiver, term.MakeAtom(reasonID))
	if !destroyed {
		t.Fatal("the last owner's exit should have released the resource")
	}
}

func TestExitWithNormalOnNonLinkedProcessHasNoEffect(t *testing.T) {
	s, tb := newTestScheduler(t)
	idle := func(frame.ProcessHandle) frame.Signal { return frame.Yield() }
	pid := s.Spawn(process.PriorityNormal, mfaOf(tb, "m", "target", 0), idle, nil)

	normalID, _ := tb.Intern("normal")
	s.Exit(pid, term.MakeAtom(normalID))

	p, ok := s.lookup(pid)
	if !ok {
		t.Fatal("exit(pid, normal) on a non-linked process must have no observable effect, but it was torn down")
	}
	if p.Status() == process.StatusExiting {
		t.Fatal("exit(pid, normal) on a non-linked process must not move it to Exiting")
	}
}

func TestExitWithKillAlwaysTerminatesEvenATrappingProcess(t *testing.T) {
	s, tb := newTestScheduler(t)
	idle := func(frame.ProcessHandle) frame.Signal { return frame.Yield() }
	pid := s.Spawn(process.PriorityNormal, mfaOf(tb, "m", "target", 0), idle, nil)
	p, _ := s.lookup(pid)
	p.SetTrapExit(true)

	killID, _ := tb.Intern("kill")
	s.Exit(pid, term.MakeAtom(killID))

	if _, ok := s.lookup(pid); ok {
		t.Fatal("exit(pid, kill) must terminate the process even with trap_exit set")
	}
	if _, ok := p.Mailbox.Receive(func(term.Term) bool { return true }); ok {
		t.Fatal("kill is untrappable: it must not be delivered as an EXIT message")
	}
}

func TestExitDeliversMessageToTrappingTarget(t *testing.T) {
	s, tb := newTestScheduler(t)
	idle := func(frame.ProcessHandle) frame.Signal { return frame.Yield() }
	pid := s.Spawn(process.PriorityNormal, mfaOf(tb, "m", "target", 0), idle, nil)
	p, _ := s.lookup(pid)
	p.SetTrapExit(true)

	reasonID, _ := tb.Intern("shutdown")
	s.Exit(pid, term.MakeAtom(reasonID))

	if _, ok := s.lookup(pid); !ok {
		t.Fatal("a trapping target must survive a non-kill exit signal")
	}
	msg, ok := p.Mailbox.Receive(func(term.Term) bool { return true })
	if !ok {
		t.Fatal("trapping target never received an EXIT tuple")
	}
	if !term.IsTuple(p.Heap, msg) || term.TupleArity(p.Heap, msg) != 3 {
		t.Fatalf("expected a 3-tuple EXIT signal, got %v", msg)
	}
}

func TestPickQueueHonorsPriorityAndLowStarvation(t *testing.T) {
	s, tb := newTestScheduler(t)
	low := s.Spawn(process.PriorityLow, mfaOf(tb, "m", "low", 0), func(frame.ProcessHandle) frame.Signal { return frame.Yield() }, nil)
	normal := s.Spawn(process.PriorityNormal, mfaOf(tb, "m", "normal", 0), func(frame.ProcessHandle) frame.Signal { return frame.Yield() }, nil)
	_ = low
	_ = normal

	for i := 0; i < lowPriorityStarveQuanta; i++ {
		priority, ok := s.pickQueue()
		if !ok || priority != process.PriorityNormal {
			t.Fatalf("pick %d: got %v, %v; want PriorityNormal, true", i, priority, ok)
		}
		s.queueMu.Lock()
		pid, _ := s.queues[priority].pop()
		s.queues[priority].push(pid)
		s.queueMu.Unlock()
	}
	priority, ok := s.pickQueue()
	if !ok || priority != process.PriorityLow {
		t.Fatalf("after starving low for %d quanta, got %v, %v; want PriorityLow, true", lowPriorityStarveQuanta, priority, ok)
	}
}
