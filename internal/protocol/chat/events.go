package chat

import "github.com/cassaundra/p2p-chat/pkg/types"

// Event 核心向上层交付的事件
//
// 事件是已通过验证并应用到本地状态的结果，供 UI 层消费。
type Event interface {
	event()
}

// EventMessage 收到聊天消息
type EventMessage struct {
	// Channel 消息所属频道
	Channel types.ChannelID

	// Sender 发送者
	Sender types.PeerID

	// Body 消息体
	Body string

	// Kind 消息类型
	Kind types.MessageKind

	// Timestamp 发送时刻（Unix 毫秒，发送者时钟）
	Timestamp int64
}

func (EventMessage) event() {}

// EventNickname 某节点的昵称已更新
type EventNickname struct {
	Peer     types.PeerID
	Nickname string
}

func (EventNickname) event() {}

// EventChannelUpdated 频道清单已创建或升级
type EventChannelUpdated struct {
	Manifest types.Manifest
}

func (EventChannelUpdated) event() {}

// EventMembershipChanged 本节点对某频道的成员状态已变化
type EventMembershipChanged struct {
	Channel types.ChannelID
	State   types.MembershipState
}

func (EventMembershipChanged) event() {}

// EventJoinRequested 某节点请求加入频道
//
// 请求只是发送者的公开意向；是否将其加入成员列表
// 由频道所有者通过后续升级决定。
type EventJoinRequested struct {
	Channel types.ChannelID
	Peer    types.PeerID
}

func (EventJoinRequested) event() {}

// EventLeaveRequested 某节点请求离开频道
type EventLeaveRequested struct {
	Channel types.ChannelID
	Peer    types.PeerID
}

func (EventLeaveRequested) event() {}
