package process

import (
	"sync"

	"github.com/ktkr-us/beamcore/term"
)

// Mailbox is a process's FIFO message queue with a save pointer for
// selective receive, per spec.md §4.7: "A receive block scans from the
// save pointer ... If no message matches, the save pointer advances
// past the last examined message".
type Mailbox struct {
	mu       sync.Mutex
	messages []term.Term
	save     int
}

func newMailbox() *Mailbox {
	return &Mailbox{}
}

// Push enqueues msg at the tail. Messages from a single sender land in
// send order; Push itself does not care who the sender was, callers
// (package scheduler) are responsible for serializing a single sender's
// own sends.
func (m *Mailbox) Push(msg term.Term) {
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.mu.Unlock()
}

// Receive scans from the save pointer for the first message match
// accepts. A match is removed from the queue and the save pointer
// resets to the head, so a subsequent receive starts over from the
// front (a BEAM process may have skipped messages still addressed by an
// *earlier*, still-pending receive). When nothing matches, the save
// pointer advances past everything just examined and Receive reports
// false; the caller is expected to transition the process to Waiting.
func (m *Mailbox) Receive(accepts func(term.Term) bool) (term.Term, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := m.save; i < len(m.messages); i++ {
		if accepts(m.messages[i]) {
			msg := m.messages[i]
			m.messages = append(m.messages[:i], m.messages[i+1:]...)
			m.save = 0
			return msg, true
		}
	}
	m.save = len(m.messages)
	return 0, false
}

// ResetSave moves the save pointer back to the head, as happens
// whenever any message is successfully received (even one a later
// receive's pattern set didn't ask for).
func (m *Mailbox) ResetSave() {
	m.mu.Lock()
	m.save = 0
	m.mu.Unlock()
}

// Len reports how many messages are currently queued.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// Pending reports whether anything sits between the save pointer and
// the tail — messages a receive hasn't examined yet. The scheduler
// consults this after a Push to decide whether a Waiting process should
// become Runnable again.
func (m *Mailbox) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save < len(m.messages)
}

// Messages returns a snapshot of every still-queued message, for GC
// root scanning.
func (m *Mailbox) Messages() []term.Term {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]term.Term, len(m.messages))
	copy(out, m.messages)
	return out
}
