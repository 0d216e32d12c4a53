package node

import (
	"bufio"
	"bytes"
	"errors"
	"io/ioutil"
	gonet "net"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mosaicnetworks/meshchat/src/chat"
	"github.com/mosaicnetworks/meshchat/src/common"
	"github.com/mosaicnetworks/meshchat/src/config"
	"github.com/mosaicnetworks/meshchat/src/discovery"
	"github.com/mosaicnetworks/meshchat/src/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)

func newTestNode(t *testing.T, username string) (*Node, *recordingDisplay) {
	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.Username = username
	conf.DialTimeout = time.Second

	display := &recordingDisplay{}

	node, err := NewNode(conf, display)
	require.NoError(t, err)

	node.RunAsync()
	t.Cleanup(node.Shutdown)

	return node, display
}

func sortedIDs(members []chat.Member) []string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	sort.Strings(ids)
	return ids
}

func assertRoster(t *testing.T, n *Node, expected ...*Node) {
	t.Helper()

	members := make([]chat.Member, len(expected))
	for i, e := range expected {
		members[i] = e.Self()
	}
	want := sortedIDs(members)

	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, sortedIDs(n.Store().Members()))
	}, waitFor, tick, "roster of %s", n.Self().Username)
}

func TestNewNode_BindFailure(t *testing.T) {
	a, _ := newTestNode(t, "aaaa")

	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.BindAddr = a.Addr()

	_, err := NewNode(conf, nil)
	assert.Error(t, err)
}

func TestNewNode_Self(t *testing.T) {
	a, _ := newTestNode(t, "aaaa")

	self := a.Self()
	assert.Equal(t, "aaaa", self.Username)
	assert.Equal(t, "127.0.0.1", self.IP)
	assert.NotZero(t, self.Port)
	assert.Equal(t, self.NetAddr(), a.Addr())
	assert.Equal(t, []chat.Member{self}, a.Store().Members())
	assert.Equal(t, Running, a.GetState())
}

// A raw client plays B against node A and checks the replies byte by byte.
func TestNode_HandshakeReplies(t *testing.T) {
	a, _ := newTestNode(t, "aaaa")
	b := chat.NewMember("bbbb", "127.0.0.1", 9002)

	conn, err := gonet.Dial("tcp", a.Addr())
	require.NoError(t, err)
	defer conn.Close()

	w := bufio.NewWriter(conn)
	require.NoError(t, net.WritePacket(w, net.Identity{Member: b, RequestBack: true}))
	require.NoError(t, net.WritePacket(w, net.InitSyncRequest{}))

	r := bufio.NewReader(conn)
	read := func() net.Packet {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
		line, err := r.ReadBytes('\n')
		require.NoError(t, err)
		p, err := net.Decode(line)
		require.NoError(t, err)
		return p
	}

	assert.Equal(t, net.Identity{Member: a.Self(), RequestBack: false}, read())

	p := read()
	snap, ok := p.(net.Sync)
	require.True(t, ok, "expected Sync, got %s", net.PacketName(p))
	assert.Empty(t, snap.Chat.AllMessages)
	assert.ElementsMatch(t, []chat.Member{a.Self(), b}, snap.Chat.Members)

	assert.ElementsMatch(t, []chat.Member{a.Self(), b}, a.Store().Members())

	// closing the connection removes B from A's roster
	conn.Close()
	assert.Eventually(t, func() bool {
		return !a.Store().HasMember(b.ID)
	}, waitFor, tick)
}

func TestNode_HalfClosedClientGetsReplies(t *testing.T) {
	a, _ := newTestNode(t, "aaaa")
	b := chat.NewMember("bbbb", "127.0.0.1", 9002)

	conn, err := gonet.Dial("tcp", a.Addr())
	require.NoError(t, err)
	defer conn.Close()

	w := bufio.NewWriter(conn)
	require.NoError(t, net.WritePacket(w, net.Identity{Member: b, RequestBack: true}))
	require.NoError(t, net.WritePacket(w, net.InitSyncRequest{}))
	require.NoError(t, conn.(*gonet.TCPConn).CloseWrite())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	data, err := ioutil.ReadAll(conn)
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 2, "replies: %q", data)

	first, err := net.Decode(lines[0])
	require.NoError(t, err)
	assert.Equal(t, net.Identity{Member: a.Self(), RequestBack: false}, first)

	second, err := net.Decode(lines[1])
	require.NoError(t, err)
	snap, ok := second.(net.Sync)
	require.True(t, ok, "expected Sync, got %s", net.PacketName(second))
	assert.ElementsMatch(t, []chat.Member{a.Self(), b}, snap.Chat.Members)

	assert.Eventually(t, func() bool {
		return !a.Store().HasMember(b.ID) && a.SessionCount() == 0
	}, waitFor, tick)
}

func TestNode_Dial(t *testing.T) {
	a, _ := newTestNode(t, "aaaa")
	b, _ := newTestNode(t, "bbbb")

	s, err := b.Dial(a.Addr())
	require.NoError(t, err)
	assert.Equal(t, net.Dialed, s.Role())

	assertRoster(t, a, a, b)
	assertRoster(t, b, a, b)

	assert.Eventually(t, func() bool {
		return a.SessionCount() == 1 && b.SessionCount() == 1
	}, waitFor, tick)
}

func TestNode_DialFailure(t *testing.T) {
	a, _ := newTestNode(t, "aaaa")

	l, err := gonet.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	_, err = a.Dial(addr)
	assert.Error(t, err)
	assert.Equal(t, 0, a.SessionCount())
	assert.Equal(t, 0, a.Registry().Len())
}

// C joins through A only, and must end up connected to B as well.
func TestNode_MeshRepair(t *testing.T) {
	a, displayA := newTestNode(t, "aaaa")
	b, displayB := newTestNode(t, "bbbb")
	c, displayC := newTestNode(t, "cccc")

	_, err := b.Dial(a.Addr())
	require.NoError(t, err)
	assertRoster(t, a, a, b)
	assertRoster(t, b, a, b)

	_, err = c.Dial(a.Addr())
	require.NoError(t, err)

	assertRoster(t, a, a, b, c)
	assertRoster(t, b, a, b, c)
	assertRoster(t, c, a, b, c)

	assert.Eventually(t, func() bool {
		return c.Registry().Len() == 2 && b.Registry().Len() == 2 && a.Registry().Len() == 2
	}, waitFor, tick)

	msg := c.Broadcast("hi")
	assert.Equal(t, []chat.Message{msg}, c.Store().Messages())

	for _, n := range []*Node{a, b} {
		n := n
		assert.Eventually(t, func() bool {
			msgs := n.Store().Messages()
			return len(msgs) == 1 && msgs[0] == msg
		}, waitFor, tick)
	}

	for _, d := range []*recordingDisplay{displayA, displayB} {
		d := d
		assert.Eventually(t, func() bool {
			d.Lock()
			defer d.Unlock()
			return len(d.messages) == 1 && d.messages[0] == "cccc: hi"
		}, waitFor, tick)
	}

	// C's own message is not echoed back
	displayC.Lock()
	assert.Empty(t, displayC.messages)
	displayC.Unlock()

	c.Shutdown()
	assert.Equal(t, Shutdown, c.GetState())

	assertRoster(t, a, a, b)
	assertRoster(t, b, a, b)
}

func TestNode_ConnectFirst(t *testing.T) {
	a, _ := newTestNode(t, "aaaa")
	b, _ := newTestNode(t, "bbbb")

	l, err := gonet.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	dead := l.Addr().(*gonet.TCPAddr)
	l.Close()

	candidates := make(chan discovery.Candidate, 3)
	candidates <- discovery.Candidate{IP: "127.0.0.1", Port: uint16(dead.Port)}
	candidates <- discovery.Candidate{IP: a.Self().IP, Port: a.Self().Port}
	candidates <- discovery.Candidate{IP: "127.0.0.1", Port: uint16(dead.Port)}

	s := b.ConnectFirst(candidates)
	require.NotNil(t, s)

	// the remaining candidate is left untouched
	assert.Len(t, candidates, 1)
	assertRoster(t, b, a, b)
}

func TestNode_ConnectFirstStopsOnShutdown(t *testing.T) {
	a, _ := newTestNode(t, "aaaa")

	done := make(chan *net.Session)
	go func() { done <- a.ConnectFirst(make(chan discovery.Candidate)) }()

	a.Shutdown()

	select {
	case s := <-done:
		assert.Nil(t, s)
	case <-time.After(waitFor):
		t.Fatal("ConnectFirst did not return")
	}
}

func TestNode_GetStats(t *testing.T) {
	a, _ := newTestNode(t, "aaaa")
	a.Broadcast("solo")

	stats := a.GetStats()
	assert.Equal(t, a.Self().ID, stats["id"])
	assert.Equal(t, "1", stats["members"])
	assert.Equal(t, "1", stats["messages"])
	assert.Equal(t, "0", stats["sessions"])
	assert.Equal(t, "Running", stats["state"])
}

type failingStreamLayer struct {
	net.StreamLayer
	accepts int32
}

func (f *failingStreamLayer) Accept() (gonet.Conn, error) {
	atomic.AddInt32(&f.accepts, 1)
	return nil, errors.New("accept: too many open files")
}

func TestNode_AcceptErrorsAreThrottled(t *testing.T) {
	conf := config.NewTestConfig(t, common.TestLogLevel)
	n, err := NewNode(conf, nil)
	require.NoError(t, err)

	trans := &failingStreamLayer{StreamLayer: n.trans}
	n.trans = trans

	done := make(chan struct{})
	go func() {
		n.Run()
		close(done)
	}()

	time.Sleep(3 * acceptRetryDelay)
	n.Shutdown()

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("accept loop did not stop")
	}

	accepts := atomic.LoadInt32(&trans.accepts)
	assert.GreaterOrEqual(t, accepts, int32(1))
	assert.LessOrEqual(t, accepts, int32(10))
}
