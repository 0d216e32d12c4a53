package discovery

import (
	"github.com/mosaicnetworks/meshchat/src/chat"
)

// Responder holds the listener's decision logic, independent of sockets.
type Responder struct {
	self chat.Member
}

// NewResponder creates a Responder answering on behalf of self.
func NewResponder(self chat.Member) *Responder {
	return &Responder{self: self}
}

// Handle processes one datagram. It returns the encoded reply to send to the
// group, if any, and the candidate to dial, if any. Malformed datagrams
// produce neither.
func (r *Responder) Handle(data []byte) ([]byte, *Candidate) {
	var p Packet
	if err := p.Unmarshal(data); err != nil {
		return nil, nil
	}

	switch p.Kind {
	case KindDiscovery:
		if p.SenderID == r.self.ID {
			return nil, nil
		}
		res := NewDiscoveryRes(r.self.IP, r.self.Port, r.self.ID, p.SenderID)
		reply, err := res.Marshal()
		if err != nil {
			return nil, nil
		}
		return reply, nil

	case KindDiscoveryRes:
		if p.SenderID == r.self.ID || p.TargetID != r.self.ID {
			return nil, nil
		}
		return nil, &Candidate{IP: p.IP, Port: p.Port}
	}

	return nil, nil
}
