package net

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"sync"

	"github.com/mosaicnetworks/meshchat/src/chat"
	"github.com/sirupsen/logrus"
)

const bufSize = 64 * 1024

// Role tells whether a Session was dialed by this node or accepted from a
// remote node.
type Role uint8

const (
	// Dialed sessions were initiated locally and perform the handshake.
	Dialed Role = iota
	// Accepted sessions were initiated by the remote node.
	Accepted
)

func (r Role) String() string {
	switch r {
	case Dialed:
		return "Dialed"
	case Accepted:
		return "Accepted"
	default:
		return "Unknown"
	}
}

// Handler consumes the packets decoded by a Session. reply is the Session's
// own outbound queue.
type Handler interface {
	HandlePacket(p Packet, reply Sender)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(p Packet, reply Sender)

// HandlePacket implements Handler.
func (f HandlerFunc) HandlePacket(p Packet, reply Sender) {
	f(p, reply)
}

// Session is one live peer connection: a reader loop, a writer goroutine and
// the Queue between the rest of the node and the writer.
type Session struct {
	state

	role     Role
	conn     net.Conn
	queue    *Queue
	store    *chat.Store
	registry *Registry
	handler  Handler

	remoteLock sync.Mutex
	remoteID   string

	closeOnce sync.Once
	done      chan struct{}

	logger *logrus.Entry
}

// NewSession registers a new Session's queue in registry and starts its writer
// goroutine. The caller must then call Run to process inbound packets.
func NewSession(conn net.Conn,
	role Role,
	store *chat.Store,
	registry *Registry,
	handler Handler,
	logger *logrus.Entry,
) *Session {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	s := &Session{
		role:     role,
		conn:     conn,
		queue:    NewQueue(),
		store:    store,
		registry: registry,
		handler:  handler,
		done:     make(chan struct{}),
		logger: logger.WithFields(logrus.Fields{
			"remote": conn.RemoteAddr(),
			"role":   role.String(),
		}),
	}

	if role == Dialed {
		s.setState(Connecting)
	} else {
		s.setState(Open)
	}

	registry.Register(s.queue)

	go s.writeLoop()

	return s
}

// Handshake queues Identity(self, true) followed by InitSyncRequest and moves
// the Session to Open.
func (s *Session) Handshake(self chat.Member) error {
	if err := s.queue.Send(Identity{Member: self, RequestBack: true}); err != nil {
		return err
	}
	if err := s.queue.Send(InitSyncRequest{}); err != nil {
		return err
	}
	s.setState(Open)
	return nil
}

// Send queues p for the writer goroutine.
func (s *Session) Send(p Packet) error {
	return s.queue.Send(p)
}

// Run is the reader loop. It returns when the remote end closes the stream or
// a read fails, after tearing the Session down. The connection itself is
// closed by the writer once every packet queued before teardown is written.
func (s *Session) Run() {
	defer s.teardown()

	r := bufio.NewReaderSize(s.conn, bufSize)
	for {
		line, err := r.ReadBytes('\n')

		if len(bytes.TrimSpace(line)) > 0 {
			s.processLine(line)
		}

		if err != nil {
			if err == io.EOF {
				s.logger.Debug("Peer closed the connection")
			} else {
				s.logger.WithError(err).Debug("Read failed")
			}
			return
		}
	}
}

func (s *Session) processLine(line []byte) {
	p, err := Decode(line)
	if err != nil {
		s.logger.WithError(err).WithField("line", string(bytes.TrimSpace(line))).Warn("Dropping malformed packet")
		return
	}

	if id, ok := p.(Identity); ok {
		s.setRemoteID(id.Member.ID)
	}

	s.logger.WithField("packet", PacketName(p)).Debug("Received packet")

	s.handler.HandlePacket(p, s.queue)
}

func (s *Session) writeLoop() {
	w := bufio.NewWriterSize(s.conn, bufSize)

	for {
		p, ok := s.queue.Recv()
		if !ok {
			// every reply queued before teardown has been written
			s.conn.Close()
			return
		}

		data, err := Encode(p)
		if err != nil {
			s.logger.WithError(err).Error("Failed to encode packet")
			continue
		}

		if err := writeFrame(w, data); err != nil {
			s.logger.WithError(err).Debug("Write failed, closing session")
			s.setState(Closed)
			s.queue.Close()
			s.conn.Close()
			return
		}
	}
}

func writeFrame(w *bufio.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}

func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		s.setState(Closed)

		if id := s.RemoteID(); id != "" {
			if s.store.RemoveMember(id) {
				s.logger.WithField("member", id).Info("Member disconnected")
			}
		}

		s.registry.Remove(s.queue)
		s.queue.Close()

		close(s.done)
	})
}

// Close closes the underlying connection. Run returns shortly after, and
// packets still queued are dropped.
func (s *Session) Close() error {
	return s.conn.Close()
}

// Done is closed once the Session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// RemoteID returns the ID announced by the remote member, or "" if no
// Identity has been received yet.
func (s *Session) RemoteID() string {
	s.remoteLock.Lock()
	defer s.remoteLock.Unlock()

	return s.remoteID
}

func (s *Session) setRemoteID(id string) {
	s.remoteLock.Lock()
	defer s.remoteLock.Unlock()

	s.remoteID = id
}

// Role returns whether the Session was dialed or accepted.
func (s *Session) Role() Role {
	return s.role
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.getState()
}

// RemoteAddr returns the address of the remote end of the connection.
func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}
