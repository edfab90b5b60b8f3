package chat

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassaundra/p2p-chat/pkg/types"
)

func TestResolveConflict(t *testing.T) {
	alice := newTestIdentity(t)
	bob := newTestIdentity(t)

	a := testManifest("general", 2, alice.PeerID())
	b := testManifest("general", 2, alice.PeerID(), bob.PeerID())

	t.Run("commutative", func(t *testing.T) {
		assert.True(t, ResolveConflict(a, b).Equal(ResolveConflict(b, a)))
	})

	t.Run("deterministic", func(t *testing.T) {
		first := ResolveConflict(a, b)
		for i := 0; i < 10; i++ {
			assert.True(t, first.Equal(ResolveConflict(a, b)))
		}
	})

	t.Run("content only", func(t *testing.T) {
		// 等价内容的副本裁决结果与原件一致
		assert.True(t, ResolveConflict(a.Clone(), b.Clone()).Equal(ResolveConflict(a, b)))
	})

	t.Run("identical candidates", func(t *testing.T) {
		assert.True(t, ResolveConflict(a, a.Clone()).Equal(a))
	})
}

func TestManifestStoreCreate(t *testing.T) {
	alice := newTestIdentity(t)
	bob := newTestIdentity(t)

	t.Run("first create wins", func(t *testing.T) {
		store := NewManifestStore()
		first := testManifest("general", 1, alice.PeerID())
		second := testManifest("general", 1, bob.PeerID())

		assert.True(t, store.ApplyCreate(first))
		assert.False(t, store.ApplyCreate(second))

		got, ok := store.Get("general")
		require.True(t, ok)
		assert.Equal(t, alice.PeerID(), got.Owner)
	})

	t.Run("idempotent", func(t *testing.T) {
		store := NewManifestStore()
		m := testManifest("general", 1, alice.PeerID())
		assert.True(t, store.ApplyCreate(m))
		assert.False(t, store.ApplyCreate(m))
		assert.False(t, store.ApplyCreate(m.Clone()))
	})

	t.Run("unknown channel reads miss", func(t *testing.T) {
		store := NewManifestStore()
		_, ok := store.Get("nowhere")
		assert.False(t, ok)
	})
}

func TestManifestStoreUpgrade(t *testing.T) {
	alice := newTestIdentity(t)
	bob := newTestIdentity(t)
	carol := newTestIdentity(t)

	newStore := func() *ManifestStore {
		s := NewManifestStore()
		s.ApplyCreate(testManifest("general", 1, alice.PeerID()))
		return s
	}

	t.Run("higher version replaces", func(t *testing.T) {
		store := newStore()
		v2 := testManifest("general", 2, alice.PeerID(), bob.PeerID())
		assert.True(t, store.ApplyUpgrade(v2))

		got, ok := store.Get("general")
		require.True(t, ok)
		assert.Equal(t, uint64(2), got.Version)
		assert.True(t, got.HasParticipant(bob.PeerID()))
	})

	t.Run("lower version dropped", func(t *testing.T) {
		store := newStore()
		store.ApplyUpgrade(testManifest("general", 5, alice.PeerID()))
		assert.False(t, store.ApplyUpgrade(testManifest("general", 3, alice.PeerID(), bob.PeerID())))

		got, _ := store.Get("general")
		assert.Equal(t, uint64(5), got.Version)
	})

	t.Run("upgrade before create dropped", func(t *testing.T) {
		store := NewManifestStore()
		assert.False(t, store.ApplyUpgrade(testManifest("general", 2, alice.PeerID())))
	})

	t.Run("identical replay is no-op", func(t *testing.T) {
		store := newStore()
		v2 := testManifest("general", 2, alice.PeerID(), bob.PeerID())
		assert.True(t, store.ApplyUpgrade(v2))
		assert.False(t, store.ApplyUpgrade(v2))
		assert.False(t, store.ApplyUpgrade(v2.Clone()))
	})

	t.Run("concurrent candidates converge regardless of order", func(t *testing.T) {
		a := testManifest("general", 2, alice.PeerID(), bob.PeerID())
		b := testManifest("general", 2, alice.PeerID(), carol.PeerID())

		s1 := newStore()
		s1.ApplyUpgrade(a)
		s1.ApplyUpgrade(b)

		s2 := newStore()
		s2.ApplyUpgrade(b)
		s2.ApplyUpgrade(a)

		m1, ok := s1.Get("general")
		require.True(t, ok)
		m2, ok := s2.Get("general")
		require.True(t, ok)
		assert.True(t, m1.Equal(m2))
		assert.True(t, m1.Equal(ResolveConflict(a, b)))
	})

	t.Run("losing candidate kept as rival", func(t *testing.T) {
		a := testManifest("general", 2, alice.PeerID(), bob.PeerID())
		b := testManifest("general", 2, alice.PeerID(), carol.PeerID())
		winner := ResolveConflict(a, b)
		loser := a
		if winner.Equal(a) {
			loser = b
		}

		store := newStore()
		store.ApplyUpgrade(a)
		store.ApplyUpgrade(b)

		rival, ok := store.Rival("general")
		require.True(t, ok)
		assert.True(t, rival.Equal(loser))
	})

	t.Run("version advance clears rival", func(t *testing.T) {
		store := newStore()
		store.ApplyUpgrade(testManifest("general", 2, alice.PeerID(), bob.PeerID()))
		store.ApplyUpgrade(testManifest("general", 2, alice.PeerID(), carol.PeerID()))
		store.ApplyUpgrade(testManifest("general", 3, alice.PeerID()))

		_, ok := store.Rival("general")
		assert.False(t, ok)
	})
}

// TestManifestStoreConvergence 多份乱序交付收敛到同一状态
func TestManifestStoreConvergence(t *testing.T) {
	alice := newTestIdentity(t)
	bob := newTestIdentity(t)
	carol := newTestIdentity(t)

	create := testManifest("general", 1, alice.PeerID())
	upgrades := []types.Manifest{
		testManifest("general", 2, alice.PeerID(), bob.PeerID()),
		testManifest("general", 2, alice.PeerID(), carol.PeerID()),
		testManifest("general", 3, alice.PeerID(), bob.PeerID(), carol.PeerID()),
	}

	// 三种到达顺序，含重复交付
	orders := [][]int{
		{0, 1, 2},
		{2, 1, 0},
		{1, 0, 1, 2, 0},
	}

	var states []types.Manifest
	for _, order := range orders {
		store := NewManifestStore()
		store.ApplyCreate(create)
		for _, i := range order {
			store.ApplyUpgrade(upgrades[i])
		}
		m, ok := store.Get("general")
		require.True(t, ok)
		states = append(states, m)
	}

	for i := 1; i < len(states); i++ {
		assert.True(t, states[0].Equal(states[i]), "order %d diverged", i)
	}
	assert.Equal(t, uint64(3), states[0].Version)
}

// TestManifestStoreNoDeletion 清单只增不删：不存在删除操作，
// 已存频道在任何后续操作下存续
func TestManifestStoreNoDeletion(t *testing.T) {
	typ := reflect.TypeOf(&ManifestStore{})
	for i := 0; i < typ.NumMethod(); i++ {
		name := typ.Method(i).Name
		assert.NotContains(t, name, "Delete")
		assert.NotContains(t, name, "Remove")
	}

	alice := newTestIdentity(t)
	bob := newTestIdentity(t)
	store := NewManifestStore()

	require.True(t, store.ApplyCreate(testManifest("general", 0, alice.PeerID())))
	require.True(t, store.ApplyUpgrade(testManifest("general", 1, alice.PeerID(), bob.PeerID())))

	// 降级重放、重复创建、同版本候选都不会移除清单
	store.ApplyUpgrade(testManifest("general", 0, alice.PeerID()))
	store.ApplyCreate(testManifest("general", 5, bob.PeerID()))
	store.ApplyUpgrade(testManifest("general", 1, alice.PeerID()))

	m, ok := store.Get("general")
	require.True(t, ok)
	assert.Equal(t, uint64(1), m.Version)
	assert.Equal(t, alice.PeerID(), m.Owner)
}

func TestManifestStoreList(t *testing.T) {
	alice := newTestIdentity(t)
	store := NewManifestStore()

	for _, id := range []types.ChannelID{"zulu", "alpha", "mike"} {
		store.ApplyCreate(testManifest(id, 1, alice.PeerID()))
	}

	list := store.List()
	require.Len(t, list, 3)
	for i := 1; i < len(list); i++ {
		assert.Less(t, string(list[i-1].ID), string(list[i].ID))
	}
}

func TestManifestStoreConcurrentAccess(t *testing.T) {
	alice := newTestIdentity(t)
	store := NewManifestStore()

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 100; i++ {
				id := types.ChannelID(fmt.Sprintf("ch-%d", i%10))
				store.ApplyCreate(testManifest(id, 1, alice.PeerID()))
				store.ApplyUpgrade(testManifest(id, uint64(2+i), alice.PeerID()))
				store.Get(id)
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}

	assert.Len(t, store.List(), 10)
}
