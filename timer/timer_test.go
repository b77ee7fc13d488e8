package timer

import (
	"sync"
	"testing"
	"time"

	"github.com/ktkr-us/beamcore/atom"
	"github.com/ktkr-us/beamcore/frame"
	"github.com/ktkr-us/beamcore/process"
	"github.com/ktkr-us/beamcore/term"
)

type recordingDeliverer struct {
	mu   sync.Mutex
	msgs []term.Term
}

func (d *recordingDeliverer) DeliverTimer(target, msg term.Term) {
	d.mu.Lock()
	d.msgs = append(d.msgs, msg)
	d.mu.Unlock()
}

func (d *recordingDeliverer) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.msgs)
}

func newTestProcess(tb *atom.Table) *process.Process {
	id, _ := tb.Intern("test")
	mfa := frame.MFA{Module: term.Word(id), Function: term.Word(id), Arity: 0}
	return process.New(term.MakeLocalPid(1, 0), process.PriorityNormal, 256, 4096, mfa, nil, nil)
}

func TestStartTimerDeliversAfterDelay(t *testing.T) {
	tb := atom.New()
	d := &recordingDeliverer{}
	s := New(tb, d)
	defer s.Stop()

	p := newTestProcess(tb)
	target := term.MakeLocalPid(2, 0)
	msg, _ := term.MakeSmallInt(7)

	if _, err := s.StartTimer(p, 10*time.Millisecond, target, msg); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(time.Second)
	for d.len() == 0 {
		select {
		case <-deadline:
			t.Fatal("timer never fired")
		case <-time.After(time.Millisecond):
		}
	}
	if d.msgs[0] != msg {
		t.Fatalf("delivered %v, want %v", d.msgs[0], msg)
	}
}

func TestReadTimerOnUnknownReferenceReturnsFalse(t *testing.T) {
	tb := atom.New()
	s := New(tb, &recordingDeliverer{})
	defer s.Stop()

	p := newTestProcess(tb)
	ref, err := p.NextReference()
	if err != nil {
		t.Fatal(err)
	}

	got, ok := s.ReadTimer(p.Heap, ref)
	if ok {
		t.Fatal("expected ok=false for a reference never passed to StartTimer")
	}
	falseID, _ := tb.InternExisting("false")
	if got != term.MakeAtom(falseID) {
		t.Fatalf("got %v, want false", got)
	}
}

func TestReadTimerReportsRemainingWithoutCancelling(t *testing.T) {
	tb := atom.New()
	d := &recordingDeliverer{}
	s := New(tb, d)
	defer s.Stop()

	p := newTestProcess(tb)
	target := term.MakeLocalPid(2, 0)
	msg, _ := term.MakeSmallInt(1)
	ref, err := s.StartTimer(p, time.Hour, target, msg)
	if err != nil {
		t.Fatal(err)
	}

	got, ok := s.ReadTimer(p.Heap, ref)
	if !ok {
		t.Fatal("expected ok=true for a pending timer")
	}
	if !term.IsSmallInt(got) {
		t.Fatalf("got %v, want a small integer of remaining milliseconds", got)
	}

	// Still pending: a second read must not have cancelled it.
	if _, ok := s.ReadTimer(p.Heap, ref); !ok {
		t.Fatal("ReadTimer must not cancel the timer it reads")
	}
}

func TestCancelTimerRemovesItAndSuppressesDelivery(t *testing.T) {
	tb := atom.New()
	d := &recordingDeliverer{}
	s := New(tb, d)
	defer s.Stop()

	p := newTestProcess(tb)
	target := term.MakeLocalPid(2, 0)
	msg, _ := term.MakeSmallInt(1)
	ref, err := s.StartTimer(p, 20*time.Millisecond, target, msg)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := s.CancelTimer(p.Heap, ref); !ok {
		t.Fatal("expected ok=true cancelling a pending timer")
	}
	if _, ok := s.CancelTimer(p.Heap, ref); ok {
		t.Fatal("cancelling twice should report ok=false the second time")
	}

	time.Sleep(50 * time.Millisecond)
	if d.len() != 0 {
		t.Fatal("a cancelled timer must not deliver")
	}
}
