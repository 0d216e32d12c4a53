package net

import (
	"net"
	"time"
)

// StreamLayer provides the low level stream abstraction used by a node to dial
// and accept peer connections.
type StreamLayer interface {
	net.Listener

	// Dial is used to create a new outgoing connection. A zero timeout means
	// no timeout.
	Dial(address string, timeout time.Duration) (net.Conn, error)

	// AdvertiseAddr returns the address where other peers can reach us
	AdvertiseAddr() string
}
