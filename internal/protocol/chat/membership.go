package chat

import (
	"sync"

	"github.com/cassaundra/p2p-chat/pkg/types"
)

// channelMembership 单个频道的本地成员状态
//
// state 是本地意向驱动的状态机状态；inList 是所有者权威
// 成员列表对本节点的包含关系。两者是独立属性，从不自动
// 合并——协议本身将两者的对账留作未来工作。
type channelMembership struct {
	state  types.MembershipState
	inList bool
}

// Membership 本地成员状态机
//
// 组合本节点身份、本地加入/离开意向与观察到的清单更新，
// 产出本节点对各频道成员关系的本地视图。状态机没有终结
// 状态，频道永不消亡。
type Membership struct {
	self types.PeerID

	mu       sync.RWMutex
	channels map[types.ChannelID]*channelMembership
}

// NewMembership 创建本地成员状态机
func NewMembership(self types.PeerID) *Membership {
	return &Membership{
		self:     self,
		channels: make(map[types.ChannelID]*channelMembership),
	}
}

// entry 返回频道条目，必要时懒创建
func (m *Membership) entry(id types.ChannelID) *channelMembership {
	if e, ok := m.channels[id]; ok {
		return e
	}
	e := &channelMembership{state: types.NotJoined}
	m.channels[id] = e
	return e
}

// State 返回本节点对频道的本地成员状态
func (m *Membership) State(id types.ChannelID) types.MembershipState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.channels[id]; ok {
		return e.state
	}
	return types.NotJoined
}

// InParticipants 返回本节点是否在频道的权威成员列表中
func (m *Membership) InParticipants(id types.ChannelID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.channels[id]; ok {
		return e.inList
	}
	return false
}

// RequestJoin 记录本地加入意向
//
// 转移：NotJoined → JoinRequested。其他状态下是无操作。
// 已发布的请求无法撤销，只能被后续动作取代。
func (m *Membership) RequestJoin(id types.ChannelID) types.MembershipState {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entry(id)
	if e.state == types.NotJoined {
		e.state = types.JoinRequested
	}
	return e.state
}

// RequestLeave 记录本地离开意向
//
// 转移：{JoinRequested, Member} → LeaveRequested。
func (m *Membership) RequestLeave(id types.ChannelID) types.MembershipState {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entry(id)
	if e.state == types.JoinRequested || e.state == types.Member {
		e.state = types.LeaveRequested
	}
	return e.state
}

// ObserveManifest 观察一次清单更新
//
// 成员列表对本节点的包含关系发生变化时，所有者权威
// 覆盖本地意向：加入 → Member，移出 → NotJoined。
// 包含关系未变时本地意向保持不变。
// 返回值为观察后的状态与状态是否变化。
func (m *Membership) ObserveManifest(manifest types.Manifest) (types.MembershipState, bool) {
	contained := manifest.HasParticipant(m.self)

	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entry(manifest.ID)

	changed := false
	if contained != e.inList {
		e.inList = contained
		prev := e.state
		if contained {
			e.state = types.Member
		} else {
			e.state = types.NotJoined
		}
		changed = e.state != prev
	}
	return e.state, changed
}

// Channels 返回本节点状态不为 NotJoined 的所有频道
func (m *Membership) Channels() []types.ChannelID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.ChannelID, 0, len(m.channels))
	for id, e := range m.channels {
		if e.state != types.NotJoined {
			out = append(out, id)
		}
	}
	return out
}
