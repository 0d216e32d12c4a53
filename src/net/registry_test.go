package net

import (
	"testing"

	"github.com/mosaicnetworks/meshchat/src/chat"
	"github.com/mosaicnetworks/meshchat/src/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_BroadcastLocalSkipsDeadQueue(t *testing.T) {
	registry := NewRegistry(common.NewTestEntry(t, common.TestLogLevel))
	store := chat.NewStore()
	self := testMember("self", 9000)
	store.AddMember(self)

	queues := []*Queue{NewQueue(), NewQueue(), NewQueue()}
	for _, q := range queues {
		registry.Register(q)
	}

	// the peer behind the second queue is gone
	queues[1].Close()

	msg := chat.NewMessage(self, "hi")
	delivered := registry.BroadcastLocal(store, msg)

	assert.Equal(t, 2, delivered)
	assert.Equal(t, []chat.Message{msg}, store.Messages())

	for _, i := range []int{0, 2} {
		require.Equal(t, 1, queues[i].Len())
		p, ok := queues[i].Recv()
		require.True(t, ok)
		assert.Equal(t, UserMessage{Message: msg}, p)
	}
}

func TestRegistry_Remove(t *testing.T) {
	registry := NewRegistry(common.NewTestEntry(t, common.TestLogLevel))

	q1, q2 := NewQueue(), NewQueue()
	registry.Register(q1)
	registry.Register(q2)
	assert.Equal(t, 2, registry.Len())

	registry.Remove(q1)
	registry.Remove(q1)
	assert.Equal(t, 1, registry.Len())

	assert.Equal(t, 1, registry.Broadcast(InitSyncRequest{}))
	assert.Equal(t, 0, q1.Len())
	assert.Equal(t, 1, q2.Len())
}

func TestRegistry_BroadcastEmpty(t *testing.T) {
	registry := NewRegistry(nil)
	assert.Equal(t, 0, registry.Broadcast(InitSyncRequest{}))
}
