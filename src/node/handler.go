package node

import (
	"github.com/mosaicnetworks/meshchat/src/chat"
	"github.com/mosaicnetworks/meshchat/src/net"
	"github.com/sirupsen/logrus"
)

// MemberDialer opens a connection to a member learnt from a Sync.
type MemberDialer interface {
	DialMember(m chat.Member)
}

// PacketHandler applies inbound packets to the Store. It is shared by all the
// sessions of a node.
type PacketHandler struct {
	self    chat.Member
	store   *chat.Store
	display Display
	dialer  MemberDialer
	logger  *logrus.Entry
}

// NewPacketHandler creates a PacketHandler acting on behalf of self.
func NewPacketHandler(self chat.Member,
	store *chat.Store,
	display Display,
	dialer MemberDialer,
	logger *logrus.Entry,
) *PacketHandler {
	if display == nil {
		display = NopDisplay{}
	}
	return &PacketHandler{
		self:    self,
		store:   store,
		display: display,
		dialer:  dialer,
		logger:  logger,
	}
}

// HandlePacket implements net.Handler.
func (h *PacketHandler) HandlePacket(p net.Packet, reply net.Sender) {
	switch pkt := p.(type) {
	case net.UserMessage:
		h.store.AddMessage(pkt.Message)
		h.display.ShowMessage(pkt.Message.Sender.Username, pkt.Message.Text)

	case net.InitSyncRequest:
		h.reply(reply, net.Sync{Chat: h.store.Snapshot()})

	case net.Sync:
		h.store.ReplaceAllMessages(pkt.Chat.AllMessages)
		h.display.ShowHistory(h.store.Messages())

		added := h.store.MergeMembers(pkt.Chat.Members)
		for _, m := range added {
			h.logger.WithField("member", m.String()).Debug("New member from Sync, dialing")
			h.dialer.DialMember(m)
		}

	case net.Identity:
		if h.store.AddMember(pkt.Member) {
			h.logger.WithField("member", pkt.Member.String()).Info("Member joined")
		}
		if pkt.RequestBack {
			h.reply(reply, net.Identity{Member: h.self, RequestBack: false})
		}

	default:
		h.logger.WithField("packet", net.PacketName(p)).Warn("Unhandled packet")
	}
}

func (h *PacketHandler) reply(reply net.Sender, p net.Packet) {
	if err := reply.Send(p); err != nil {
		h.logger.WithError(err).WithField("packet", net.PacketName(p)).Debug("Reply dropped")
	}
}
