package chat

import (
	"sort"
	"sync"

	"github.com/cassaundra/p2p-chat/pkg/lib/log"
	"github.com/cassaundra/p2p-chat/pkg/types"
)

var logger = log.Logger("protocol/chat")

// ============================================================================
//                              冲突裁决
// ============================================================================

// ResolveConflict 在两个同版本并发清单候选之间裁决胜者
//
// 函数是全函数（总能裁决）、可交换（参数顺序无关），
// 且只依赖清单内容：内容哈希字典序较小者胜。到达顺序、
// 节点声誉、墙钟时间都不参与裁决，任意两个观察者
// 对相同候选收敛到同一胜者。
func ResolveConflict(a, b types.Manifest) types.Manifest {
	ha, hb := a.ContentHash(), b.ContentHash()
	if hb.Less(ha) {
		return b
	}
	return a
}

// ============================================================================
//                              清单存储
// ============================================================================

// channelState 单个频道的存储状态
//
// current 是本地认定的当前清单；rival 保留当前版本上
// 输掉冲突裁决的候选，使得仅观察到败者的对端发来的
// 后继版本仍能被核对。版本推进时 rival 清空。
type channelState struct {
	mu      sync.RWMutex
	current types.Manifest
	rival   *types.Manifest
}

// ManifestStore 频道清单存储
//
// 持有每个频道的当前 {版本, 所有者, 成员列表} 清单。
// 写入按频道串行化，不同频道互不阻塞；所有应用规则
// 与到达顺序无关且幂等。清单永不删除。
type ManifestStore struct {
	mu       sync.RWMutex
	channels map[types.ChannelID]*channelState
}

// 确保 ManifestStore 实现了验证器的频道视图
var _ ChannelView = (*ManifestStore)(nil)

// NewManifestStore 创建清单存储
func NewManifestStore() *ManifestStore {
	return &ManifestStore{
		channels: make(map[types.ChannelID]*channelState),
	}
}

// state 返回频道状态，create 为 true 时懒创建
func (s *ManifestStore) state(id types.ChannelID, create bool) *channelState {
	s.mu.RLock()
	st, ok := s.channels[id]
	s.mu.RUnlock()
	if ok || !create {
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok = s.channels[id]; ok {
		return st
	}
	st = &channelState{}
	s.channels[id] = st
	return st
}

// Get 返回频道的当前清单
func (s *ManifestStore) Get(id types.ChannelID) (types.Manifest, bool) {
	st := s.state(id, false)
	if st == nil {
		return types.Manifest{}, false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.current.ID.IsEmpty() {
		return types.Manifest{}, false
	}
	return st.current.Clone(), true
}

// Rival 返回当前版本上输掉冲突裁决的候选（若有）
func (s *ManifestStore) Rival(id types.ChannelID) (types.Manifest, bool) {
	st := s.state(id, false)
	if st == nil {
		return types.Manifest{}, false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.rival == nil {
		return types.Manifest{}, false
	}
	return st.rival.Clone(), true
}

// List 返回所有频道的当前清单，按频道ID排序
func (s *ManifestStore) List() []types.Manifest {
	s.mu.RLock()
	ids := make([]types.ChannelID, 0, len(s.channels))
	for id := range s.channels {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]types.Manifest, 0, len(ids))
	for _, id := range ids {
		if m, ok := s.Get(id); ok {
			out = append(out, m)
		}
	}
	return out
}

// ApplyCreate 应用频道创建
//
// 每个标识符只有第一个有效创建生效；重复应用是幂等的，
// 后续创建（无论内容）都不会改变已存清单——创建不经过
// 冲突裁决。返回值表示本地状态是否发生变化。
func (s *ManifestStore) ApplyCreate(m types.Manifest) bool {
	st := s.state(m.ID, true)
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.current.ID.IsEmpty() {
		return false
	}
	st.current = m.Canonical()
	logger.Debug("channel created",
		"channel", m.ID, "owner", m.Owner.ShortString(), "participants", len(m.Participants))
	return true
}

// ApplyUpgrade 应用频道升级
//
// 规则（对任意到达顺序与重复都正确）：
//   - 版本低于已存：丢弃
//   - 版本相同且内容相同：幂等重放，无操作
//   - 版本相同但内容不同：并发候选，按 ResolveConflict 裁决；
//     败者保留为 rival，不再传播
//   - 版本更高：直接取代，rival 清空
//
// 返回值表示本地当前清单是否被替换。
func (s *ManifestStore) ApplyUpgrade(m types.Manifest) bool {
	st := s.state(m.ID, false)
	if st == nil {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.current.ID.IsEmpty() {
		return false
	}

	canon := m.Canonical()
	switch {
	case canon.Version < st.current.Version:
		return false

	case canon.Version == st.current.Version:
		if canon.Equal(st.current) {
			return false
		}
		winner := ResolveConflict(st.current, canon)
		if winner.Equal(st.current) {
			// 来者落败：留档后丢弃，不回播拒绝
			loser := canon
			st.rival = &loser
			return false
		}
		loser := st.current
		st.current = winner
		st.rival = &loser
		logger.Debug("concurrent upgrade resolved",
			"channel", m.ID, "version", m.Version)
		return true

	default:
		st.current = canon
		st.rival = nil
		logger.Debug("channel upgraded", "channel", m.ID, "version", m.Version)
		return true
	}
}
