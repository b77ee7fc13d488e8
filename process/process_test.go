package process

import (
	"testing"

	"github.com/ktkr-us/beamcore/frame"
	"github.com/ktkr-us/beamcore/term"
)

func testMFA() frame.MFA { return frame.MFA{Module: 1, Function: 2, Arity: 0} }

func TestNewPushesInitialFrameAndArgsInOrder(t *testing.T) {
	a, _ := term.MakeSmallInt(1)
	b, _ := term.MakeSmallInt(2)
	ran := false
	code := func(ph frame.ProcessHandle) frame.Signal {
		ran = true
		first, ok := ph.StackPop()
		if !ok || first != a {
			t.Fatalf("first popped arg = %v, %v; want %v, true", first, ok, a)
		}
		second, ok := ph.StackPop()
		if !ok || second != b {
			t.Fatalf("second popped arg = %v, %v; want %v, true", second, ok, b)
		}
		ph.PopFrame()
		return frame.Return(term.Nil)
	}
	p := New(term.MakeLocalPid(1, 0), PriorityNormal, 64, 1024, testMFA(), code, []term.Term{a, b})
	if _, ok := p.CurrentFrame(); !ok {
		t.Fatal("New did not install the initial frame")
	}
	sig := frame.Run(p)
	if !ran {
		t.Fatal("initial frame's code never ran")
	}
	if sig.Kind != frame.SignalReturn {
		t.Fatalf("got %v, want SignalReturn", sig.Kind)
	}
}

func TestReduceYieldsAtZero(t *testing.T) {
	p := New(term.MakeLocalPid(1, 0), PriorityNormal, 64, 1024, testMFA(), func(frame.ProcessHandle) frame.Signal {
		return frame.Continue()
	}, nil)
	p.reductions = 1
	if sig := p.Reduce(); sig.Kind != frame.SignalContinue {
		t.Fatalf("first Reduce: got %v, want SignalContinue", sig.Kind)
	}
	if sig := p.Reduce(); sig.Kind != frame.SignalYield {
		t.Fatalf("second Reduce: got %v, want SignalYield", sig.Kind)
	}
}

func TestReturnFromCallPopsAndPublishesResult(t *testing.T) {
	p := New(term.MakeLocalPid(1, 0), PriorityNormal, 64, 1024, testMFA(), func(frame.ProcessHandle) frame.Signal {
		return frame.Continue()
	}, nil)
	v, _ := term.MakeSmallInt(99)
	if err := p.ReturnFromCall(v); err != nil {
		t.Fatal(err)
	}
	if _, ok := p.CurrentFrame(); ok {
		t.Fatal("ReturnFromCall did not pop the frame")
	}
	got, ok := p.StackPop()
	if !ok || got != v {
		t.Fatalf("got %v, %v; want %v, true", got, ok, v)
	}
}

func TestLinksAreIndependentPerEndpoint(t *testing.T) {
	p := New(term.MakeLocalPid(1, 0), PriorityNormal, 64, 1024, testMFA(), nil, nil)
	peer := term.MakeLocalPid(2, 0)
	p.Link(peer)
	if got := p.Links(); len(got) != 1 || got[0] != peer {
		t.Fatalf("Links() = %v, want [%v]", got, peer)
	}
	p.Unlink(peer)
	if got := p.Links(); len(got) != 0 {
		t.Fatalf("Links() after Unlink = %v, want empty", got)
	}
}

func TestMonitoringAndMonitoredByAreDistinct(t *testing.T) {
	p := New(term.MakeLocalPid(1, 0), PriorityNormal, 64, 1024, testMFA(), nil, nil)
	ref, err := p.NextReference()
	if err != nil {
		t.Fatal(err)
	}
	watcher := term.MakeLocalPid(2, 0)
	p.AddMonitoredBy(ref, watcher)
	mb := p.MonitoredBy()
	if mb[ref] != watcher {
		t.Fatalf("MonitoredBy()[%v] = %v, want %v", ref, mb[ref], watcher)
	}
	if _, ok := p.RemoveMonitoring(ref); ok {
		t.Fatal("this process never called monitor itself; RemoveMonitoring should report false")
	}
}

func TestExitReasonOnlyMeaningfulAfterSetExiting(t *testing.T) {
	p := New(term.MakeLocalPid(1, 0), PriorityNormal, 64, 1024, testMFA(), nil, nil)
	if p.Status() != StatusRunnable {
		t.Fatalf("new process status = %v, want runnable", p.Status())
	}
	normal := term.MakeAtom(4) // "ok"-ish placeholder id; content doesn't matter here
	p.SetExiting(normal)
	if p.Status() != StatusExiting {
		t.Fatalf("status after SetExiting = %v, want exiting", p.Status())
	}
	if p.ExitReason() != normal {
		t.Fatalf("ExitReason() = %v, want %v", p.ExitReason(), normal)
	}
}

func TestRootsIncludesStackMailboxAndDictionary(t *testing.T) {
	p := New(term.MakeLocalPid(1, 0), PriorityNormal, 64, 1024, testMFA(), nil, nil)
	stackVal, _ := term.MakeSmallInt(7)
	p.StackPush(stackVal)
	mailVal, _ := term.MakeSmallInt(8)
	p.Mailbox.Push(mailVal)
	dictKey := term.MakeAtom(4)
	dictVal, _ := term.MakeSmallInt(9)
	p.Put(dictKey, dictVal)

	roots := p.Roots()
	want := map[term.Term]bool{stackVal: false, mailVal: false, dictVal: false}
	for _, r := range roots {
		if _, ok := want[r]; ok {
			want[r] = true
		}
	}
	for v, found := range want {
		if !found {
			t.Errorf("Roots() missing expected root %v", v)
		}
	}
}
