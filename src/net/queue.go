package net

import (
	"errors"
	"sync"
)

// ErrQueueClosed is returned when sending on a Queue whose Session has gone
// away.
var ErrQueueClosed = errors.New("queue closed")

// Sender is the sending half of a Session's outbound Queue.
type Sender interface {
	Send(p Packet) error
}

// Queue is an unbounded FIFO of packets with a single consumer. Send never
// blocks.
type Queue struct {
	l      sync.Mutex
	items  []Packet
	closed bool
	notify chan struct{}
}

// NewQueue creates an empty, open Queue.
func NewQueue() *Queue {
	return &Queue{
		notify: make(chan struct{}, 1),
	}
}

// Send appends p to the queue. It fails with ErrQueueClosed once the queue is
// closed.
func (q *Queue) Send(p Packet) error {
	q.l.Lock()
	if q.closed {
		q.l.Unlock()
		return ErrQueueClosed
	}
	q.items = append(q.items, p)
	q.l.Unlock()

	q.wake()
	return nil
}

// Recv blocks until a packet is available or the queue is closed. Packets
// sent before Close are still returned; the second return value is false once
// the queue is closed and empty.
func (q *Queue) Recv() (Packet, bool) {
	for {
		q.l.Lock()
		if len(q.items) > 0 {
			p := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.l.Unlock()
			return p, true
		}
		if q.closed {
			q.l.Unlock()
			return nil, false
		}
		q.l.Unlock()

		<-q.notify
	}
}

// Close rejects further Sends. Pending packets stay available to Recv. It is
// safe to call more than once.
func (q *Queue) Close() {
	q.l.Lock()
	if q.closed {
		q.l.Unlock()
		return
	}
	q.closed = true
	q.l.Unlock()

	q.wake()
}

// IsClosed reports whether Close has been called.
func (q *Queue) IsClosed() bool {
	q.l.Lock()
	defer q.l.Unlock()

	return q.closed
}

// Len returns the number of pending packets.
func (q *Queue) Len() int {
	q.l.Lock()
	defer q.l.Unlock()

	return len(q.items)
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
