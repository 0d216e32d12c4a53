package node

import (
	"fmt"
	gonet "net"
	"strconv"
	"sync"
	"time"

	"github.com/mosaicnetworks/meshchat/src/chat"
	"github.com/mosaicnetworks/meshchat/src/config"
	"github.com/mosaicnetworks/meshchat/src/discovery"
	"github.com/mosaicnetworks/meshchat/src/net"
	"github.com/sirupsen/logrus"
)

// acceptRetryDelay is the pause after a failed Accept.
const acceptRetryDelay = 100 * time.Millisecond

// Node defines a meshchat node: the local member, its Chat, and the sessions
// with every other member of the mesh.
type Node struct {
	state

	conf   *config.Config
	logger *logrus.Entry

	self     chat.Member
	store    *chat.Store
	registry *net.Registry
	handler  *PacketHandler

	trans net.StreamLayer

	sessionLock sync.Mutex
	sessions    map[*net.Session]struct{}

	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	start time.Time
}

// NewNode binds the TCP listener and creates the local member. The member is
// announced with conf.AdvertiseIP, or 127.0.0.1 when it is not set, and the
// port actually bound. A bind failure is returned and must abort startup.
func NewNode(conf *config.Config, display Display) (*Node, error) {
	trans, err := net.NewTCPStreamLayer(conf.BindAddr, conf.AdvertiseIP)
	if err != nil {
		return nil, fmt.Errorf("binding %s: %w", conf.BindAddr, err)
	}

	ip := conf.AdvertiseIP
	if ip == "" {
		ip = config.DefaultFallbackIP
	}

	self := chat.NewMember(conf.Username, ip, uint16(trans.Port()))

	store := chat.NewStore()
	store.AddMember(self)

	logger := conf.Logger().WithField("this_id", self.ID)

	node := &Node{
		conf:       conf,
		logger:     logger,
		self:       self,
		store:      store,
		registry:   net.NewRegistry(logger),
		trans:      trans,
		sessions:   make(map[*net.Session]struct{}),
		shutdownCh: make(chan struct{}),
		start:      time.Now(),
	}

	node.handler = NewPacketHandler(self, store, display, node, logger)

	return node, nil
}

// RunAsync calls Run as a separate goroutine.
func (n *Node) RunAsync() {
	go n.Run()
}

// Run is the accept loop. Every inbound connection becomes an Accepted
// Session. A failed Accept is logged and retried after a short pause. Run returns after
// Shutdown.
func (n *Node) Run() {
	n.logger.WithFields(logrus.Fields{
		"addr":     n.trans.AdvertiseAddr(),
		"username": n.self.Username,
	}).Info("Listening")

	for {
		conn, err := n.trans.Accept()
		if err != nil {
			if n.getState() == Shutdown {
				return
			}
			n.logger.WithError(err).Error("Accept failed")

			select {
			case <-time.After(acceptRetryDelay):
			case <-n.shutdownCh:
				return
			}
			continue
		}

		s := n.newSession(conn, net.Accepted)
		go n.runSession(s)
	}
}

// Dial connects to addr and performs the handshake: Identity(self, true)
// followed by InitSyncRequest.
func (n *Node) Dial(addr string) (*net.Session, error) {
	conn, err := n.trans.Dial(addr, n.conf.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}

	s := n.newSession(conn, net.Dialed)

	err = s.Handshake(n.self)

	go n.runSession(s)

	if err != nil {
		s.Close()
		return nil, fmt.Errorf("handshake with %s: %w", addr, err)
	}

	return s, nil
}

// DialMember connects to m in the background and introduces the local member
// once more on the new link. Failures are logged.
func (n *Node) DialMember(m chat.Member) {
	go func() {
		s, err := n.Dial(m.NetAddr())
		if err != nil {
			n.logger.WithError(err).WithField("member", m.String()).Warn("Cannot reach member")
			return
		}

		if err := s.Send(net.Identity{Member: n.self, RequestBack: false}); err != nil {
			n.logger.WithError(err).WithField("member", m.String()).Debug("Identity dropped")
		}
	}()
}

// ConnectFirst dials the candidates in the order they arrive until one
// connection succeeds. It returns nil if the channel is closed or the node
// shuts down first.
func (n *Node) ConnectFirst(candidates <-chan discovery.Candidate) *net.Session {
	for {
		select {
		case c, ok := <-candidates:
			if !ok {
				return nil
			}

			s, err := n.Dial(c.Addr())
			if err != nil {
				n.logger.WithError(err).WithField("candidate", c.Addr()).Warn("Discovered node unreachable")
				continue
			}

			n.logger.WithField("candidate", c.Addr()).Info("Connected to discovered node")
			return s

		case <-n.shutdownCh:
			return nil
		}
	}
}

// Broadcast records a message authored by the local member and queues it on
// every session.
func (n *Node) Broadcast(text string) chat.Message {
	m := chat.NewMessage(n.self, text)
	delivered := n.registry.BroadcastLocal(n.store, m)

	n.logger.WithField("sessions", delivered).Debug("Broadcast")

	return m
}

// Shutdown closes the listener and every live session.
func (n *Node) Shutdown() {
	n.shutdownOnce.Do(func() {
		n.logger.Debug("Shutdown")

		n.setState(Shutdown)
		close(n.shutdownCh)

		if err := n.trans.Close(); err != nil {
			n.logger.WithError(err).Debug("Closing listener")
		}

		n.sessionLock.Lock()
		sessions := make([]*net.Session, 0, len(n.sessions))
		for s := range n.sessions {
			sessions = append(sessions, s)
		}
		n.sessionLock.Unlock()

		for _, s := range sessions {
			s.Close()
		}
	})
}

// Self returns the local member.
func (n *Node) Self() chat.Member {
	return n.self
}

// Store returns the node's Chat store.
func (n *Node) Store() *chat.Store {
	return n.store
}

// Registry returns the node's outbound queues.
func (n *Node) Registry() *net.Registry {
	return n.registry
}

// Addr returns the address other members should dial.
func (n *Node) Addr() string {
	return n.trans.AdvertiseAddr()
}

// GetState returns the state of the node.
func (n *Node) GetState() State {
	return n.getState()
}

// SessionCount returns the number of live sessions.
func (n *Node) SessionCount() int {
	n.sessionLock.Lock()
	defer n.sessionLock.Unlock()

	return len(n.sessions)
}

// GetStats returns information about the node.
func (n *Node) GetStats() map[string]string {
	members, messages := n.store.Len()

	return map[string]string{
		"id":       n.self.ID,
		"username": n.self.Username,
		"addr":     n.Addr(),
		"state":    n.getState().String(),
		"members":  strconv.Itoa(members),
		"messages": strconv.Itoa(messages),
		"sessions": strconv.Itoa(n.SessionCount()),
		"queues":   strconv.Itoa(n.registry.Len()),
		"uptime":   time.Since(n.start).Round(time.Second).String(),
	}
}

func (n *Node) newSession(conn gonet.Conn, role net.Role) *net.Session {
	s := net.NewSession(conn, role, n.store, n.registry, n.handler, n.logger)

	n.sessionLock.Lock()
	n.sessions[s] = struct{}{}
	n.sessionLock.Unlock()

	// Shutdown may have snapshotted the sessions before this one was added.
	if n.getState() == Shutdown {
		s.Close()
	}

	return s
}

func (n *Node) runSession(s *net.Session) {
	s.Run()

	n.sessionLock.Lock()
	delete(n.sessions, s)
	n.sessionLock.Unlock()

	n.logger.WithFields(logrus.Fields{
		"remote_id": s.RemoteID(),
		"role":      s.Role().String(),
	}).Debug("Session closed")
}
