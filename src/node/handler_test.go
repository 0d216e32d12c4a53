package node

import (
	"sync"
	"testing"

	"github.com/mosaicnetworks/meshchat/src/chat"
	"github.com/mosaicnetworks/meshchat/src/common"
	"github.com/mosaicnetworks/meshchat/src/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDialer struct {
	sync.Mutex
	dialed []chat.Member
}

func (d *fakeDialer) DialMember(m chat.Member) {
	d.Lock()
	defer d.Unlock()
	d.dialed = append(d.dialed, m)
}

type recordingSender struct {
	sent []net.Packet
	err  error
}

func (s *recordingSender) Send(p net.Packet) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, p)
	return nil
}

type recordingDisplay struct {
	sync.Mutex
	messages []string
	history  [][]chat.Message
}

func (d *recordingDisplay) ShowMessage(sender string, text string) {
	d.Lock()
	defer d.Unlock()
	d.messages = append(d.messages, sender+": "+text)
}

func (d *recordingDisplay) ShowHistory(messages []chat.Message) {
	d.Lock()
	defer d.Unlock()
	d.history = append(d.history, messages)
}

type handlerFixture struct {
	self    chat.Member
	store   *chat.Store
	dialer  *fakeDialer
	display *recordingDisplay
	handler *PacketHandler
}

func newHandlerFixture(t *testing.T, username string) *handlerFixture {
	f := &handlerFixture{
		self:    chat.NewMember(username, "127.0.0.1", 9000),
		store:   chat.NewStore(),
		dialer:  &fakeDialer{},
		display: &recordingDisplay{},
	}
	f.store.AddMember(f.self)
	f.handler = NewPacketHandler(f.self, f.store, f.display, f.dialer, common.NewTestEntry(t, common.TestLogLevel))
	return f
}

func TestHandler_IdentityRequestBack(t *testing.T) {
	f := newHandlerFixture(t, "aaaa")
	b := chat.NewMember("bbbb", "127.0.0.1", 9002)
	reply := &recordingSender{}

	f.handler.HandlePacket(net.Identity{Member: b, RequestBack: true}, reply)

	assert.True(t, f.store.HasMember(b.ID))
	require.Len(t, reply.sent, 1)
	assert.Equal(t, net.Identity{Member: f.self, RequestBack: false}, reply.sent[0])
}

func TestHandler_IdentityNoRequestBack(t *testing.T) {
	f := newHandlerFixture(t, "aaaa")
	b := chat.NewMember("bbbb", "127.0.0.1", 9002)
	reply := &recordingSender{}

	f.handler.HandlePacket(net.Identity{Member: b}, reply)
	f.handler.HandlePacket(net.Identity{Member: b}, reply)

	assert.Empty(t, reply.sent)
	assert.Len(t, f.store.Members(), 2)
}

func TestHandler_InitSyncRequest(t *testing.T) {
	f := newHandlerFixture(t, "aaaa")
	f.store.AddMessage(chat.NewMessage(f.self, "hello"))
	reply := &recordingSender{}

	f.handler.HandlePacket(net.InitSyncRequest{}, reply)

	require.Len(t, reply.sent, 1)
	snap, ok := reply.sent[0].(net.Sync)
	require.True(t, ok)
	assert.Equal(t, f.store.Snapshot(), snap.Chat)
}

func TestHandler_ReplyFailureIsContained(t *testing.T) {
	f := newHandlerFixture(t, "aaaa")
	b := chat.NewMember("bbbb", "127.0.0.1", 9002)
	reply := &recordingSender{err: net.ErrQueueClosed}

	assert.NotPanics(t, func() {
		f.handler.HandlePacket(net.Identity{Member: b, RequestBack: true}, reply)
		f.handler.HandlePacket(net.InitSyncRequest{}, reply)
	})
	assert.True(t, f.store.HasMember(b.ID))
}

func TestHandler_UserMessage(t *testing.T) {
	f := newHandlerFixture(t, "aaaa")
	b := chat.NewMember("bbbb", "127.0.0.1", 9002)
	msg := chat.NewMessage(b, "hi")
	reply := &recordingSender{}

	f.handler.HandlePacket(net.UserMessage{Message: msg}, reply)

	assert.Equal(t, []chat.Message{msg}, f.store.Messages())
	assert.Equal(t, []string{"bbbb: hi"}, f.display.messages)
	assert.Empty(t, reply.sent)
}

// C knows only itself and receives A's Sync carrying {A, B}: it must dial both.
func TestHandler_SyncDialsNewMembers(t *testing.T) {
	c := newHandlerFixture(t, "cccc")
	a := chat.NewMember("aaaa", "127.0.0.1", 9001)
	b := chat.NewMember("bbbb", "127.0.0.1", 9002)

	remote := chat.NewChat()
	remote.Members = []chat.Member{a, b}
	remote.AllMessages = []chat.Message{chat.NewMessage(a, "one"), chat.NewMessage(b, "two")}

	c.handler.HandlePacket(net.Sync{Chat: remote}, &recordingSender{})

	assert.ElementsMatch(t, []chat.Member{a, b}, c.dialer.dialed)
	assert.ElementsMatch(t, []chat.Member{a, b, c.self}, c.store.Members())
	assert.Equal(t, remote.AllMessages, c.store.Messages())
	require.Len(t, c.display.history, 1)
	assert.Equal(t, remote.AllMessages, c.display.history[0])

	// a second identical Sync schedules no new dial
	c.handler.HandlePacket(net.Sync{Chat: remote}, &recordingSender{})
	assert.Len(t, c.dialer.dialed, 2)
}

func TestHandler_SyncSkipsKnownMembers(t *testing.T) {
	c := newHandlerFixture(t, "cccc")
	a := chat.NewMember("aaaa", "127.0.0.1", 9001)
	b := chat.NewMember("bbbb", "127.0.0.1", 9002)
	c.store.AddMember(a)

	remote := chat.NewChat()
	remote.Members = []chat.Member{a, b, c.self}

	c.handler.HandlePacket(net.Sync{Chat: remote}, &recordingSender{})

	assert.Equal(t, []chat.Member{b}, c.dialer.dialed)
}
