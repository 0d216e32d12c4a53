package discovery

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/libp2p/go-reuseport"
	"github.com/mosaicnetworks/meshchat/src/chat"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
)

// candidateBuffer bounds the number of undelivered candidates. Extra answers
// are dropped, the node only needs one.
const candidateBuffer = 16

// readRetryDelay is the pause after a failed read.
const readRetryDelay = 100 * time.Millisecond

// Listener is a member of the discovery multicast group. Several listeners
// can share the group port on one host.
type Listener struct {
	*Responder

	group *net.UDPAddr
	conn  net.PacketConn

	candidates chan Candidate

	closeOnce sync.Once
	shutdown  chan struct{}

	logger *logrus.Entry
}

// Listen joins the multicast group at groupAddr and answers on behalf of self.
// Multicast loopback is enabled so that nodes on the same host find each
// other.
func Listen(groupAddr string, self chat.Member, logger *logrus.Entry) (*Listener, error) {
	group, err := net.ResolveUDPAddr("udp4", groupAddr)
	if err != nil {
		return nil, fmt.Errorf("resolving multicast group %s: %w", groupAddr, err)
	}

	conn, err := reuseport.ListenPacket("udp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(group.Port)))
	if err != nil {
		return nil, fmt.Errorf("binding multicast port %d: %w", group.Port, err)
	}

	pconn := ipv4.NewPacketConn(conn)
	if err := pconn.JoinGroup(nil, &net.UDPAddr{IP: group.IP}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("joining multicast group %s: %w", group.IP, err)
	}
	if err := pconn.SetMulticastLoopback(true); err != nil {
		logger.WithError(err).Warn("Cannot enable multicast loopback")
	}

	return &Listener{
		Responder:  NewResponder(self),
		group:      group,
		conn:       conn,
		candidates: make(chan Candidate, candidateBuffer),
		shutdown:   make(chan struct{}),
		logger:     logger,
	}, nil
}

// Candidates returns the channel of nodes that answered our probes.
func (l *Listener) Candidates() <-chan Candidate {
	return l.candidates
}

// Run reads datagrams until the listener is closed.
func (l *Listener) Run() {
	buf := make([]byte, MaxDatagramSize)

	for {
		n, from, err := l.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-l.shutdown:
				return
			default:
			}
			l.logger.WithError(err).Warn("Discovery read failed")

			select {
			case <-time.After(readRetryDelay):
			case <-l.shutdown:
				return
			}
			continue
		}

		reply, candidate := l.Handle(buf[:n])

		if reply != nil {
			if _, err := l.conn.WriteTo(reply, l.group); err != nil {
				l.logger.WithError(err).Warn("Discovery reply failed")
			}
		}

		if candidate != nil {
			l.logger.WithFields(logrus.Fields{
				"candidate": candidate.Addr(),
				"from":      from,
			}).Debug("Discovered node")

			select {
			case l.candidates <- *candidate:
			default:
			}
		}
	}
}

// Close leaves the group and stops Run.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.shutdown)
		err = l.conn.Close()
	})
	return err
}
