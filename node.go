package p2pchat

import (
	"context"
	"sync"

	"go.uber.org/fx"

	"github.com/cassaundra/p2p-chat/internal/core/identity"
	"github.com/cassaundra/p2p-chat/internal/protocol/chat"
	"github.com/cassaundra/p2p-chat/internal/store"
	"github.com/cassaundra/p2p-chat/pkg/lib/log"
	"github.com/cassaundra/p2p-chat/pkg/types"
)

var logger = log.Logger("p2pchat")

// NodeState 节点状态
type NodeState int32

const (
	// StateCreated 已创建未启动
	StateCreated NodeState = iota
	// StateRunning 运行中
	StateRunning
	// StateStopped 已停止
	StateStopped
)

// Node 聊天节点
//
// 封装 Fx 应用的生命周期，对外暴露聊天协议 API。
// 一个 Node 对应一个身份、一个存储副本和一个传输端点。
type Node struct {
	app      *fx.App
	identity *identity.Identity
	replica  *store.Replica
	service  *chat.Service

	nickname string

	mu    sync.Mutex
	state NodeState
}

// New 创建节点
//
// 节点创建后处于未启动状态，需调用 Start 激活。
func New(ctx context.Context, opts ...Option) (*Node, error) {
	o := defaultNodeOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	node := &Node{nickname: o.nickname}
	app, err := buildFxApp(o, node)
	if err != nil {
		return nil, err
	}
	node.app = app

	if err := app.Err(); err != nil {
		return nil, err
	}
	return node, nil
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 启动节点
//
// 依次启动存储、传输订阅与协议服务，随后回放持久化状态，
// 并发布配置的昵称（若有）。
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.state == StateRunning {
		n.mu.Unlock()
		return ErrAlreadyStarted
	}
	if n.state == StateStopped {
		n.mu.Unlock()
		return ErrNodeClosed
	}
	n.mu.Unlock()

	if err := n.app.Start(ctx); err != nil {
		return err
	}

	n.mu.Lock()
	n.state = StateRunning
	n.mu.Unlock()

	n.replayStore()

	if n.nickname != "" {
		if err := n.service.SetNickname(ctx, n.nickname); err != nil {
			logger.Warn("publish initial nickname", "err", err)
		}
	}

	logger.Info("node started", "peer", n.ID().ShortString())
	return nil
}

// Stop 停止节点
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	if n.state != StateRunning {
		n.mu.Unlock()
		return ErrNotStarted
	}
	n.state = StateStopped
	n.mu.Unlock()

	return n.app.Stop(ctx)
}

// Close 停止节点（便捷方法）
func (n *Node) Close() error {
	n.mu.Lock()
	state := n.state
	n.mu.Unlock()
	if state != StateRunning {
		return nil
	}
	return n.Stop(context.Background())
}

// State 返回节点状态
func (n *Node) State() NodeState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// IsRunning 检查节点是否运行中
func (n *Node) IsRunning() bool {
	return n.State() == StateRunning
}

// replayStore 回放持久化的协议状态
//
// 将存储中的清单与昵称记录重新合并进内存状态。
// 合并规则幂等，重复回放无副作用。
func (n *Node) replayStore() {
	err := n.replica.Iterate("", func(key string, value []byte) bool {
		n.service.Reconcile(key, value)
		return true
	})
	if err != nil {
		logger.Warn("replay persisted state", "err", err)
	}
}

// ============================================================================
//                              身份与事件
// ============================================================================

// ID 返回节点标识
func (n *Node) ID() types.PeerID {
	return n.identity.PeerID()
}

// Events 返回协议事件通道
//
// 节点停止时通道关闭。
func (n *Node) Events() <-chan chat.Event {
	return n.service.Events()
}

// ============================================================================
//                              频道操作
// ============================================================================

// CreateChannel 创建频道，本节点成为所有者
func (n *Node) CreateChannel(ctx context.Context, id types.ChannelID, participants ...types.PeerID) (types.Manifest, error) {
	if err := n.requireRunning(); err != nil {
		return types.Manifest{}, err
	}
	return n.service.CreateChannel(ctx, id, participants)
}

// AddParticipant 将节点加入频道成员列表（仅所有者）
func (n *Node) AddParticipant(ctx context.Context, id types.ChannelID, peer types.PeerID) (types.Manifest, error) {
	if err := n.requireRunning(); err != nil {
		return types.Manifest{}, err
	}
	return n.service.AddParticipant(ctx, id, peer)
}

// RemoveParticipant 将节点移出频道成员列表（仅所有者）
func (n *Node) RemoveParticipant(ctx context.Context, id types.ChannelID, peer types.PeerID) (types.Manifest, error) {
	if err := n.requireRunning(); err != nil {
		return types.Manifest{}, err
	}
	return n.service.RemoveParticipant(ctx, id, peer)
}

// RequestJoin 发布加入频道的请求
func (n *Node) RequestJoin(ctx context.Context, id types.ChannelID) error {
	if err := n.requireRunning(); err != nil {
		return err
	}
	return n.service.RequestJoin(ctx, id)
}

// RequestLeave 发布离开频道的请求
func (n *Node) RequestLeave(ctx context.Context, id types.ChannelID) error {
	if err := n.requireRunning(); err != nil {
		return err
	}
	return n.service.RequestLeave(ctx, id)
}

// Channels 返回已知频道清单（按 ID 排序）
func (n *Node) Channels() []types.Manifest {
	return n.service.Manifests().List()
}

// Manifest 返回频道清单
func (n *Node) Manifest(id types.ChannelID) (types.Manifest, bool) {
	return n.service.Manifests().Get(id)
}

// MembershipState 返回本节点在频道中的成员状态
func (n *Node) MembershipState(id types.ChannelID) types.MembershipState {
	return n.service.Membership().State(id)
}

// ============================================================================
//                              消息与昵称
// ============================================================================

// SendMessage 向频道发送聊天消息
func (n *Node) SendMessage(ctx context.Context, id types.ChannelID, body string) error {
	if err := n.requireRunning(); err != nil {
		return err
	}
	return n.service.SendMessage(ctx, id, body, types.KindNormal)
}

// SendAction 向频道发送动作消息（"/me" 风格）
func (n *Node) SendAction(ctx context.Context, id types.ChannelID, body string) error {
	if err := n.requireRunning(); err != nil {
		return err
	}
	return n.service.SendMessage(ctx, id, body, types.KindMe)
}

// SetNickname 设置并发布本节点昵称
func (n *Node) SetNickname(ctx context.Context, nickname string) error {
	if err := n.requireRunning(); err != nil {
		return err
	}
	return n.service.SetNickname(ctx, nickname)
}

// Nickname 查询节点昵称
func (n *Node) Nickname(peer types.PeerID) (string, bool) {
	rec, ok := n.service.Nicknames().Lookup(peer)
	if !ok {
		return "", false
	}
	return rec.Nickname, true
}

// DisplayName 返回节点的显示名
//
// 未知昵称时回退到截断的节点标识。
func (n *Node) DisplayName(peer types.PeerID) string {
	return n.service.Nicknames().DisplayName(peer)
}

// requireRunning 校验节点处于运行状态
func (n *Node) requireRunning() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch n.state {
	case StateRunning:
		return nil
	case StateStopped:
		return ErrNodeClosed
	default:
		return ErrNotStarted
	}
}
