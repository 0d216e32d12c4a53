package net

import (
	"errors"
	"net"
	"strconv"
	"time"
)

var errNotTCP = errors.New("local address is not a TCP address")

// TCPStreamLayer implements the StreamLayer interface for plain TCP.
type TCPStreamLayer struct {
	advertise string
	listener  *net.TCPListener
}

// NewTCPStreamLayer binds a TCP listener on bindAddr. Port 0 lets the OS pick
// a port. advertiseIP, when not empty, replaces the bound IP in
// AdvertiseAddr. Bind failures are returned to the caller.
func NewTCPStreamLayer(bindAddr string, advertiseIP string) (*TCPStreamLayer, error) {
	list, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}

	tcpList, ok := list.(*net.TCPListener)
	if !ok {
		list.Close()
		return nil, errNotTCP
	}

	stream := &TCPStreamLayer{
		listener: tcpList,
	}

	if advertiseIP != "" {
		stream.advertise = net.JoinHostPort(advertiseIP, strconv.Itoa(stream.Port()))
	}

	return stream, nil
}

// Dial implements the StreamLayer interface.
func (t *TCPStreamLayer) Dial(address string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", address, timeout)
}

// Accept implements the net.Listener interface.
func (t *TCPStreamLayer) Accept() (net.Conn, error) {
	return t.listener.Accept()
}

// Close implements the net.Listener interface.
func (t *TCPStreamLayer) Close() error {
	return t.listener.Close()
}

// Addr implements the net.Listener interface.
func (t *TCPStreamLayer) Addr() net.Addr {
	return t.listener.Addr()
}

// Port returns the port the listener is bound to.
func (t *TCPStreamLayer) Port() int {
	return t.listener.Addr().(*net.TCPAddr).Port
}

// AdvertiseAddr implements the StreamLayer interface.
func (t *TCPStreamLayer) AdvertiseAddr() string {
	if t.advertise != "" {
		return t.advertise
	}
	return t.listener.Addr().String()
}
