package net

import "sync/atomic"

// State captures the lifecycle of a Session: Connecting, Open or Closed.
type State uint32

const (
	// Connecting is the state of a dialed Session before its handshake is
	// queued.
	Connecting State = iota
	// Open sessions exchange packets.
	Open
	// Closed sessions have seen EOF or a write failure.
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Open:
		return "Open"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

type state struct {
	state State
}

func (b *state) getState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

func (b *state) setState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}
