// Package loopback 提供进程内传输实现
//
// Hub 在同一进程内连接多个节点端点，模拟发布订阅网络：
// 发布的消息路由到同一主题的所有其他端点，交付前先经过
// 目标端点注册的验证钩子。裁决为 Reject 时记录对发送者的
// 评分惩罚，Ignore 时静默丢弃。
//
// 用于端到端测试与单进程演示，消息交付是异步的，
// 端点之间没有共享状态。
package loopback

import (
	"context"
	"errors"
	"sync"

	"github.com/cassaundra/p2p-chat/pkg/interfaces"
	"github.com/cassaundra/p2p-chat/pkg/lib/log"
	"github.com/cassaundra/p2p-chat/pkg/types"
)

var logger = log.Logger("transport/loopback")

var (
	// ErrTransportClosed 传输已关闭
	ErrTransportClosed = errors.New("loopback: transport closed")
)

// deliveryBuffer 每个订阅的交付缓冲区大小
const deliveryBuffer = 128

// Hub 进程内消息路由中心
type Hub struct {
	mu        sync.RWMutex
	endpoints map[types.PeerID]*Transport

	// penalties 各节点因 Reject 裁决累计的惩罚计数
	penalties map[types.PeerID]int
}

// NewHub 创建路由中心
func NewHub() *Hub {
	return &Hub{
		endpoints: make(map[types.PeerID]*Transport),
		penalties: make(map[types.PeerID]int),
	}
}

// Attach 为节点创建并接入一个传输端点
func (h *Hub) Attach(peer types.PeerID) *Transport {
	t := &Transport{
		hub:        h,
		local:      peer,
		validators: make(map[string]interfaces.ValidatorFunc),
		subs:       make(map[string][]*subscription),
	}
	h.mu.Lock()
	h.endpoints[peer] = t
	h.mu.Unlock()
	return t
}

// Penalty 返回节点累计的惩罚计数
func (h *Hub) Penalty(peer types.PeerID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.penalties[peer]
}

// penalize 记录一次拒绝惩罚
func (h *Hub) penalize(peer types.PeerID, reason types.RejectReason) {
	h.mu.Lock()
	h.penalties[peer]++
	h.mu.Unlock()
	logger.Debug("message rejected",
		"sender", peer.ShortString(),
		"reason", reason.String(),
	)
}

// route 把消息路由到主题的所有其他端点
//
// 交付前调用目标端点的验证钩子；发送者本地端点不回送。
func (h *Hub) route(from types.PeerID, topic string, data []byte) {
	h.mu.RLock()
	targets := make([]*Transport, 0, len(h.endpoints))
	for peer, t := range h.endpoints {
		if peer != from {
			targets = append(targets, t)
		}
	}
	h.mu.RUnlock()

	for _, t := range targets {
		t.deliver(from, topic, data)
	}
}

// detach 移除端点
func (h *Hub) detach(peer types.PeerID) {
	h.mu.Lock()
	delete(h.endpoints, peer)
	h.mu.Unlock()
}

// ============================================================================
//                              端点
// ============================================================================

// Transport 单个节点的进程内传输端点
//
// 实现 interfaces.Transport。
type Transport struct {
	hub   *Hub
	local types.PeerID

	mu         sync.RWMutex
	closed     bool
	validators map[string]interfaces.ValidatorFunc
	subs       map[string][]*subscription
}

var _ interfaces.Transport = (*Transport)(nil)

// Subscribe 订阅主题
func (t *Transport) Subscribe(topic string) (interfaces.Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrTransportClosed
	}

	sub := &subscription{
		transport: t,
		topic:     topic,
		ch:        make(chan interfaces.TransportMessage, deliveryBuffer),
		done:      make(chan struct{}),
	}
	t.subs[topic] = append(t.subs[topic], sub)
	return sub, nil
}

// Publish 发布消息到主题
//
// 对端的验证与交付在调用方 goroutine 内同步完成，
// 发布返回即表明所有对端都已完成裁决。
func (t *Transport) Publish(_ context.Context, topic string, data []byte) error {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return ErrTransportClosed
	}

	t.hub.route(t.local, topic, data)
	return nil
}

// RegisterValidator 注册主题验证钩子
func (t *Transport) RegisterValidator(topic string, v interfaces.ValidatorFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.validators[topic] = v
}

// Close 关闭端点并取消所有订阅
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	for topic, subs := range t.subs {
		for _, sub := range subs {
			close(sub.done)
		}
		delete(t.subs, topic)
	}
	t.mu.Unlock()

	t.hub.detach(t.local)
	return nil
}

// deliver 验证并交付一条入站消息
func (t *Transport) deliver(from types.PeerID, topic string, data []byte) {
	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return
	}
	validator := t.validators[topic]
	subs := make([]*subscription, len(t.subs[topic]))
	copy(subs, t.subs[topic])
	t.mu.RUnlock()

	if validator != nil {
		verdict := validator(topic, data, from)
		switch verdict.Kind {
		case types.VerdictAccept:
			// 继续交付
		case types.VerdictReject:
			t.hub.penalize(from, verdict.Reason)
			return
		case types.VerdictIgnore:
			return
		}
	}

	// 验证钩子运行期间端点可能已被关闭；消息通道从不关闭，
	// 缓冲发送总是安全的，关闭信号由 done 通道传递
	msg := interfaces.TransportMessage{Topic: topic, Data: data, Sender: from}
	for _, sub := range subs {
		select {
		case <-sub.done:
			continue
		default:
		}
		select {
		case sub.ch <- msg:
		default:
			logger.Warn("subscription buffer full, dropping message",
				"topic", topic,
				"peer", t.local.ShortString(),
			)
		}
	}
}

// removeSubscription 从主题中摘除一个订阅
func (t *Transport) removeSubscription(target *subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()
	subs := t.subs[target.topic]
	for i, sub := range subs {
		if sub == target {
			t.subs[target.topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

// ============================================================================
//                              订阅
// ============================================================================

// subscription 单个主题订阅
//
// ch 只写入、从不关闭；端点关闭通过 done 通知，
// 避免交付 goroutine 与关闭竞争时向已关闭通道发送。
type subscription struct {
	transport *Transport
	topic     string
	ch        chan interfaces.TransportMessage
	done      chan struct{}
	once      sync.Once
}

var _ interfaces.Subscription = (*subscription)(nil)

// Next 返回下一条已交付的消息
//
// 端点已关闭时立即返回 ErrTransportClosed，不再消费缓冲。
func (s *subscription) Next(ctx context.Context) (*interfaces.TransportMessage, error) {
	select {
	case <-s.done:
		return nil, ErrTransportClosed
	default:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrTransportClosed
	case msg := <-s.ch:
		return &msg, nil
	}
}

// Cancel 取消订阅
func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.transport.removeSubscription(s)
	})
}
