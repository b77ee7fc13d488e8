package scheduler

import "github.com/ktkr-us/beamcore/term"

// runQueue is a FIFO of Runnable pids, slice-backed ring buffer style so
// steady-state push/pop never shift elements (SPEC_FULL.md §5.6).
type runQueue struct {
	buf  []term.Term
	head int
	size int
}

func newRunQueue() *runQueue {
	return &runQueue{buf: make([]term.Term, 8)}
}

func (q *runQueue) push(pid term.Term) {
	if q.size == len(q.buf) {
		q.grow()
	}
	idx := (q.head + q.size) % len(q.buf)
	q.buf[idx] = pid
	q.size++
}

func (q *runQueue) pop() (term.Term, bool) {
	if q.size == 0 {
		return 0, false
	}
	pid := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return pid, true
}

func (q *runQueue) len() int { return q.size }

func (q *runQueue) grow() {
	next := make([]term.Term, len(q.buf)*2)
	for i := 0; i < q.size; i++ {
		next[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.buf = next
	q.head = 0
}
