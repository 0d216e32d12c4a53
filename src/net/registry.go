package net

import (
	"sync"

	"github.com/mosaicnetworks/meshchat/src/chat"
	"github.com/sirupsen/logrus"
)

// Registry holds the outbound Queue of every active Session. It has its own
// lock, independent of the chat Store, and never holds it while sending.
type Registry struct {
	l      sync.Mutex
	queues []*Queue

	logger *logrus.Entry
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *logrus.Entry) *Registry {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &Registry{
		logger: logger,
	}
}

// Register adds q to the fanout set.
func (r *Registry) Register(q *Queue) {
	r.l.Lock()
	defer r.l.Unlock()

	r.queues = append(r.queues, q)
}

// Remove drops q from the fanout set. It is a no-op if q is not registered.
func (r *Registry) Remove(q *Queue) {
	r.l.Lock()
	defer r.l.Unlock()

	for i, existing := range r.queues {
		if existing == q {
			r.queues = append(r.queues[:i], r.queues[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered queues, dead or alive.
func (r *Registry) Len() int {
	r.l.Lock()
	defer r.l.Unlock()

	return len(r.queues)
}

// Broadcast enqueues p on every registered queue and returns how many accepted
// it. A closed queue is skipped; it never stops delivery to the others.
func (r *Registry) Broadcast(p Packet) int {
	r.l.Lock()
	queues := make([]*Queue, len(r.queues))
	copy(queues, r.queues)
	r.l.Unlock()

	delivered := 0
	for _, q := range queues {
		if err := q.Send(p); err != nil {
			r.logger.WithError(err).Debug("Skipping dead session queue")
			continue
		}
		delivered++
	}

	return delivered
}

// BroadcastLocal records a message authored by this node in store and sends it
// to every peer.
func (r *Registry) BroadcastLocal(store *chat.Store, m chat.Message) int {
	store.AddMessage(m)

	delivered := r.Broadcast(UserMessage{Message: m})

	r.logger.WithFields(logrus.Fields{
		"delivered": delivered,
		"sessions":  r.Len(),
	}).Debug("Broadcast local message")

	return delivered
}
