package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cassaundra/p2p-chat/pkg/types"
)

func TestMembershipLocalIntent(t *testing.T) {
	self := newTestIdentity(t)

	t.Run("join from not joined", func(t *testing.T) {
		m := NewMembership(self.PeerID())
		assert.Equal(t, types.NotJoined, m.State("general"))
		assert.Equal(t, types.JoinRequested, m.RequestJoin("general"))
	})

	t.Run("join request is not revocable", func(t *testing.T) {
		m := NewMembership(self.PeerID())
		m.RequestJoin("general")
		// 再次请求不改变状态
		assert.Equal(t, types.JoinRequested, m.RequestJoin("general"))
	})

	t.Run("leave supersedes join request", func(t *testing.T) {
		m := NewMembership(self.PeerID())
		m.RequestJoin("general")
		assert.Equal(t, types.LeaveRequested, m.RequestLeave("general"))
	})

	t.Run("leave from not joined is no-op", func(t *testing.T) {
		m := NewMembership(self.PeerID())
		assert.Equal(t, types.NotJoined, m.RequestLeave("general"))
	})
}

func TestMembershipOwnerAuthority(t *testing.T) {
	self := newTestIdentity(t)
	owner := newTestIdentity(t)

	t.Run("added to participants becomes member", func(t *testing.T) {
		m := NewMembership(self.PeerID())
		m.RequestJoin("general")

		state, changed := m.ObserveManifest(testManifest("general", 2, owner.PeerID(), self.PeerID()))
		assert.True(t, changed)
		assert.Equal(t, types.Member, state)
	})

	t.Run("removed from participants overrides intent", func(t *testing.T) {
		m := NewMembership(self.PeerID())
		m.ObserveManifest(testManifest("general", 2, owner.PeerID(), self.PeerID()))

		state, changed := m.ObserveManifest(testManifest("general", 3, owner.PeerID()))
		assert.True(t, changed)
		assert.Equal(t, types.NotJoined, state)
	})

	t.Run("unchanged containment keeps local intent", func(t *testing.T) {
		m := NewMembership(self.PeerID())
		m.RequestJoin("general")

		// 清单更新没有触及本节点的包含关系
		state, changed := m.ObserveManifest(testManifest("general", 2, owner.PeerID()))
		assert.False(t, changed)
		assert.Equal(t, types.JoinRequested, state)
	})

	t.Run("leave intent survives unrelated upgrade", func(t *testing.T) {
		m := NewMembership(self.PeerID())
		m.ObserveManifest(testManifest("general", 2, owner.PeerID(), self.PeerID()))
		m.RequestLeave("general")

		// 仍在列表中：离开请求尚未被所有者处理
		state, changed := m.ObserveManifest(testManifest("general", 3, owner.PeerID(), self.PeerID()))
		assert.False(t, changed)
		assert.Equal(t, types.LeaveRequested, state)

		// 所有者移出后回到 NotJoined
		state, changed = m.ObserveManifest(testManifest("general", 4, owner.PeerID()))
		assert.True(t, changed)
		assert.Equal(t, types.NotJoined, state)
	})
}

func TestMembershipChannels(t *testing.T) {
	self := newTestIdentity(t)
	owner := newTestIdentity(t)
	m := NewMembership(self.PeerID())

	m.RequestJoin("alpha")
	m.ObserveManifest(testManifest("beta", 1, owner.PeerID(), self.PeerID()))
	// gamma 只被观察到，本节点不在其中
	m.ObserveManifest(testManifest("gamma", 1, owner.PeerID()))

	channels := m.Channels()
	assert.ElementsMatch(t, []types.ChannelID{"alpha", "beta"}, channels)
}
