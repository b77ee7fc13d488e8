package scheduler

import (
	"testing"
	"time"

	"github.com/ktkr-us/beamcore/atom"
	"github.com/ktkr-us/beamcore/frame"
	"github.com/ktkr-us/beamcore/process"
	"github.com/ktkr-us/beamcore/term"
)

func TestClusterRoutesSendToOwningShard(t *testing.T) {
	tb := atom.New()
	c := NewCluster(2, tb, nil)
	t.Cleanup(c.Stop)

	idle := func(frame.ProcessHandle) frame.Signal { return frame.Return(term.Nil) }
	receiverPid := c.Scheduler(1).Spawn(process.PriorityNormal, mfaOf(tb, "m", "recv", 0), idle, nil)
	senderPid := c.Scheduler(0).Spawn(process.PriorityNormal, mfaOf(tb, "m", "send", 0), idle, nil)
	sender, _ := c.Scheduler(0).lookup(senderPid)

	payload, err := term.MakeTuple(sender.Heap, []term.Term{term.Nil})
	if err != nil {
		t.Fatal(err)
	}
	if _, exc := c.Scheduler(0).Send(sender, receiverPid, payload); exc != nil {
		t.Fatalf("cross-shard Send returned exception: %+v", exc)
	}

	receiver, _ := c.Scheduler(1).lookup(receiverPid)
	deadline := time.Now().Add(time.Second)
	for {
		if msg, ok := receiver.Mailbox.Receive(func(term.Term) bool { return true }); ok {
			if !term.IsTuple(receiver.Heap, msg) {
				t.Fatal("cross-shard delivery lost the payload's tuple shape")
			}
			return
		}
		receiver.Mailbox.ResetSave()
		if time.Now().After(deadline) {
			t.Fatal("cross-shard message never arrived at the owning shard's process")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestClusterRouteRejectsForeignPid(t *testing.T) {
	tb := atom.New()
	c := NewCluster(1, tb, nil)
	t.Cleanup(c.Stop)

	foreign := term.MakeLocalPid(1, 7) // scheduler index 7 does not exist in a 1-shard cluster
	if _, ok := c.route(foreign); ok {
		t.Fatal("route should reject a pid whose shard index is out of range")
	}
}
