package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cassaundra/p2p-chat/internal/core/identity"
	"github.com/cassaundra/p2p-chat/pkg/interfaces"
	"github.com/cassaundra/p2p-chat/pkg/types"
)

// Service 聊天协议核心服务
//
// 组合编解码、验证器、清单存储、昵称目录与本地成员状态机，
// 以本地身份与注入的外部协作者（传输、分布式存储）驱动
// 单一的 validate-then-apply 流水线。
//
// 入站路径有两段：传输层对每条消息先调用注册的验证钩子
// （纯函数，产出裁决），仅当裁决为 Accept 时经订阅交付，
// 交付后才发生状态变更。任意数量的并发入站流都汇入该流水线；
// 存储写入按键串行化，互不相关的键并行。
type Service struct {
	id        *identity.Identity
	transport interfaces.Transport
	store     interfaces.Store

	manifests  *ManifestStore
	nicknames  *NicknameDirectory
	membership *Membership
	validator  *Validator

	clock  clock.Clock
	config *Config

	// seen 已应用信封的去重缓存，键为签名字节
	seen *lru.Cache[string, struct{}]

	events chan Event

	mu      sync.Mutex
	started bool
	subs    map[string]interfaces.Subscription
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewService 创建聊天服务
func NewService(id *identity.Identity, transport interfaces.Transport, store interfaces.Store, opts ...Option) (*Service, error) {
	if id == nil {
		return nil, errors.New("chat: identity is required")
	}
	if transport == nil {
		return nil, errors.New("chat: transport is required")
	}
	if store == nil {
		return nil, errors.New("chat: store is required")
	}

	o := &options{config: DefaultConfig()}
	for _, opt := range opts {
		opt(o)
	}
	if o.clock == nil {
		o.clock = clock.New()
	}

	seen, err := lru.New[string, struct{}](o.config.SeenCacheSize)
	if err != nil {
		return nil, err
	}

	s := &Service{
		id:         id,
		transport:  transport,
		store:      store,
		manifests:  NewManifestStore(),
		nicknames:  NewNicknameDirectory(),
		membership: NewMembership(id.PeerID()),
		clock:      o.clock,
		config:     o.config,
		seen:       seen,
		events:     make(chan Event, o.config.EventBuffer),
		subs:       make(map[string]interfaces.Subscription),
	}
	s.validator = NewValidator(s.manifests, s.nicknames, o.clock)
	s.validator.SetFreshnessWindow(o.config.StaleWindow, o.config.FutureSkew)
	return s, nil
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 启动服务
//
// 订阅昵称保留主题并开始消费分布式存储的变更通知。
// 频道主题在创建或请求加入时按需订阅。
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	if err := s.subscribe(types.TopicNicknames); err != nil {
		return err
	}

	storeEvents, cancelWatch := s.store.Watch()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancelWatch()
		for {
			select {
			case <-s.ctx.Done():
				return
			case ev, ok := <-storeEvents:
				if !ok {
					return
				}
				s.Reconcile(ev.Key, ev.Value)
			}
		}
	}()

	logger.Info("chat service started", "peer", s.id.PeerID().ShortString())
	return nil
}

// Stop 停止服务
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.started = false
	s.cancel()
	for topic, sub := range s.subs {
		sub.Cancel()
		delete(s.subs, topic)
	}
	s.mu.Unlock()

	s.wg.Wait()
	close(s.events)
	return nil
}

// Events 返回事件通道
//
// 服务停止时通道关闭。
func (s *Service) Events() <-chan Event {
	return s.events
}

// PeerID 返回本节点标识
func (s *Service) PeerID() types.PeerID {
	return s.id.PeerID()
}

// Manifests 返回清单存储
func (s *Service) Manifests() *ManifestStore {
	return s.manifests
}

// Nicknames 返回昵称目录
func (s *Service) Nicknames() *NicknameDirectory {
	return s.nicknames
}

// Membership 返回本地成员状态机
func (s *Service) Membership() *Membership {
	return s.membership
}

// subscribe 订阅主题并注册验证钩子，随后启动消费循环
func (s *Service) subscribe(topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return ErrNotStarted
	}
	if _, ok := s.subs[topic]; ok {
		return nil
	}

	s.transport.RegisterValidator(topic, s.Validate)
	sub, err := s.transport.Subscribe(topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	s.subs[topic] = sub

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			msg, err := sub.Next(s.ctx)
			if err != nil {
				return
			}
			s.apply(msg.Topic, msg.Data)
		}
	}()
	return nil
}

// ============================================================================
//                              入站：验证
// ============================================================================

// Validate 传输层验证钩子
//
// 对入站消息产出裁决；纯函数，不修改任何状态。传输层据此
// 决定传播与否并在 Reject 时降低发送者亲和度。解码失败
// 一律映射到确定的拒绝原因，从不中止处理。
func (s *Service) Validate(topic string, data []byte, _ types.PeerID) types.Verdict {
	env, err := Decode(data)
	if err != nil {
		return types.Reject(rejectReasonForDecodeError(err))
	}

	// 已应用过的信封按重复处理：不再传播，也不惩罚发送者
	if _, dup := s.seen.Get(string(env.Signature)); dup {
		return types.Ignore()
	}

	// 聊天消息必须到达某个频道主题；昵称变更走保留主题
	switch env.Payload.(type) {
	case types.MessageSend, types.ChannelCreate, types.ChannelUpgrade,
		types.ChannelRequestJoin, types.ChannelRequestLeave:
		if _, ok := types.ChannelFromTopic(topic); !ok {
			return types.Reject(types.ReasonMalformedEnvelope)
		}
	case types.ChangeNickname:
		if topic != types.TopicNicknames {
			return types.Reject(types.ReasonMalformedEnvelope)
		}
	}

	return s.validator.Validate(env)
}

// rejectReasonForDecodeError 将解码错误映射到拒绝原因
func rejectReasonForDecodeError(err error) types.RejectReason {
	switch {
	case errors.Is(err, ErrMessageTooLarge):
		return types.ReasonPayloadTooLarge
	case errors.Is(err, ErrUnknownPayloadType):
		return types.ReasonMalformedEnvelope
	default:
		return types.ReasonMalformedEnvelope
	}
}

// ============================================================================
//                              入站：应用
// ============================================================================

// apply 应用一条已通过验证的入站消息
//
// 状态变更只发生在这里（以及本地动作的乐观应用）。
// 所有应用规则与到达顺序无关，重复应用是幂等的。
func (s *Service) apply(topic string, data []byte) {
	env, err := Decode(data)
	if err != nil {
		// 传输层已验证过；解码失败意味着传输实现有缺陷
		logger.Warn("undecodable message past validation", "topic", topic, "err", err)
		return
	}

	if found, _ := s.seen.ContainsOrAdd(string(env.Signature), struct{}{}); found {
		return
	}

	switch p := env.Payload.(type) {
	case types.ChannelCreate:
		s.applyManifest(p.Manifest(), true)

	case types.ChannelUpgrade:
		s.applyManifest(p.Manifest(), false)

	case types.ChannelRequestJoin:
		s.emit(EventJoinRequested{Channel: p.ID, Peer: env.Sender})

	case types.ChannelRequestLeave:
		s.emit(EventLeaveRequested{Channel: p.ID, Peer: env.Sender})

	case types.MessageSend:
		channel, ok := types.ChannelFromTopic(topic)
		if !ok {
			return
		}
		s.emit(EventMessage{
			Channel:   channel,
			Sender:    env.Sender,
			Body:      string(p.Body),
			Kind:      p.Kind,
			Timestamp: env.Timestamp,
		})

	case types.ChangeNickname:
		s.applyNickname(types.NicknameRecord{
			Peer:      env.Sender,
			Nickname:  p.Nickname,
			Timestamp: env.Timestamp,
		})
	}
}

// applyManifest 应用清单并联动成员状态与存储镜像
func (s *Service) applyManifest(m types.Manifest, create bool) {
	var applied bool
	if create {
		applied = s.manifests.ApplyCreate(m)
	} else {
		applied = s.manifests.ApplyUpgrade(m)
	}
	if !applied {
		return
	}

	current, _ := s.manifests.Get(m.ID)
	s.mirrorManifest(current)

	state, changed := s.membership.ObserveManifest(current)
	s.emit(EventChannelUpdated{Manifest: current})
	if changed {
		s.emit(EventMembershipChanged{Channel: m.ID, State: state})
	}
}

// applyNickname 合并昵称记录并联动存储镜像
func (s *Service) applyNickname(rec types.NicknameRecord) {
	if !s.nicknames.Set(rec.Peer, rec.Nickname, rec.Timestamp) {
		return
	}
	s.mirrorNickname(rec)
	s.emit(EventNickname{Peer: rec.Peer, Nickname: rec.Nickname})
}

// ============================================================================
//                              分布式存储对账
// ============================================================================

// Reconcile 将分布式存储中的一个键值合并进本地状态
//
// 由存储变更通知与启动回放调用。远端副本收敛到达的值
// 与入站消息走同一套合并规则，分区愈合后状态自动收敛。
func (s *Service) Reconcile(key string, value []byte) {
	switch {
	case strings.HasPrefix(key, types.StoreKeyChannelPrefix):
		var m types.Manifest
		if err := json.Unmarshal(value, &m); err != nil {
			logger.Warn("bad manifest in store", "key", key, "err", err)
			return
		}
		if _, exists := s.manifests.Get(m.ID); exists {
			s.applyManifest(m, false)
		} else {
			s.applyManifest(m, true)
		}

	case strings.HasPrefix(key, types.StoreKeyNicknamePrefix):
		var rec types.NicknameRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			logger.Warn("bad nickname record in store", "key", key, "err", err)
			return
		}
		s.applyNickname(rec)
	}
}

// mirrorManifest 将清单镜像到分布式存储
func (s *Service) mirrorManifest(m types.Manifest) {
	value, err := json.Marshal(m)
	if err != nil {
		logger.Error("marshal manifest", "channel", m.ID, "err", err)
		return
	}
	if err := s.store.Put(types.ManifestKey(m.Owner, m.ID), value); err != nil {
		logger.Warn("mirror manifest to store", "channel", m.ID, "err", err)
	}
}

// mirrorNickname 将昵称记录镜像到分布式存储
func (s *Service) mirrorNickname(rec types.NicknameRecord) {
	value, err := json.Marshal(rec)
	if err != nil {
		logger.Error("marshal nickname record", "peer", rec.Peer.ShortString(), "err", err)
		return
	}
	if err := s.store.Put(types.NicknameKey(rec.Peer), value); err != nil {
		logger.Warn("mirror nickname to store", "peer", rec.Peer.ShortString(), "err", err)
	}
}

// ============================================================================
//                              本地动作
// ============================================================================

// CreateChannel 创建频道
//
// 本节点成为所有者；所有者总在成员列表中。本地状态乐观应用，
// 随后交给传输层发布（fire-and-forget）。
func (s *Service) CreateChannel(ctx context.Context, id types.ChannelID, participants []types.PeerID) (types.Manifest, error) {
	if id.IsEmpty() {
		return types.Manifest{}, fmt.Errorf("%w: empty channel id", ErrMalformedEnvelope)
	}
	if _, exists := s.manifests.Get(id); exists {
		return types.Manifest{}, ErrChannelExists
	}

	self := s.id.PeerID()
	list := append([]types.PeerID{self}, participants...)

	payload := types.ChannelCreate{ID: id, Owner: self, Participants: list}
	env, data, err := s.seal(payload)
	if err != nil {
		return types.Manifest{}, err
	}

	manifest := payload.Manifest()
	s.markSeen(env)
	s.applyManifest(manifest, true)
	if err := s.subscribe(types.TopicForChannel(id)); err != nil {
		return types.Manifest{}, err
	}
	s.publish(ctx, types.TopicForChannel(id), data)
	return manifest.Canonical(), nil
}

// upgradeChannel 以新成员列表发布频道升级（仅所有者）
func (s *Service) upgradeChannel(ctx context.Context, id types.ChannelID, participants []types.PeerID) (types.Manifest, error) {
	current, exists := s.manifests.Get(id)
	if !exists {
		return types.Manifest{}, ErrUnknownChannel
	}
	if current.Owner != s.id.PeerID() {
		return types.Manifest{}, ErrNotOwner
	}
	if len(participants) == 0 {
		return types.Manifest{}, ErrEmptyParticipants
	}

	payload := types.ChannelUpgrade{
		ID:           id,
		Version:      current.Version + 1,
		Owner:        current.Owner,
		Participants: participants,
	}
	env, data, err := s.seal(payload)
	if err != nil {
		return types.Manifest{}, err
	}

	manifest := payload.Manifest()
	s.markSeen(env)
	s.applyManifest(manifest, false)
	s.publish(ctx, types.TopicForChannel(id), data)
	return manifest.Canonical(), nil
}

// AddParticipant 将节点加入成员列表（仅所有者）
func (s *Service) AddParticipant(ctx context.Context, id types.ChannelID, peer types.PeerID) (types.Manifest, error) {
	current, exists := s.manifests.Get(id)
	if !exists {
		return types.Manifest{}, ErrUnknownChannel
	}
	if current.HasParticipant(peer) {
		return current, nil
	}
	return s.upgradeChannel(ctx, id, append(current.Participants, peer))
}

// RemoveParticipant 将节点移出成员列表（仅所有者）
//
// 成员列表不允许为空；移除最后一个成员会失败。
func (s *Service) RemoveParticipant(ctx context.Context, id types.ChannelID, peer types.PeerID) (types.Manifest, error) {
	current, exists := s.manifests.Get(id)
	if !exists {
		return types.Manifest{}, ErrUnknownChannel
	}
	remaining := make([]types.PeerID, 0, len(current.Participants))
	for _, p := range current.Participants {
		if p != peer {
			remaining = append(remaining, p)
		}
	}
	if len(remaining) == len(current.Participants) {
		return current, nil
	}
	if len(remaining) == 0 {
		return types.Manifest{}, ErrEmptyParticipants
	}
	return s.upgradeChannel(ctx, id, remaining)
}

// RequestJoin 发布加入请求并记录本地意向
//
// 已发布的请求无法撤销，只能被后续的离开请求取代。
func (s *Service) RequestJoin(ctx context.Context, id types.ChannelID) error {
	env, data, err := s.seal(types.ChannelRequestJoin{ID: id})
	if err != nil {
		return err
	}
	s.markSeen(env)
	state := s.membership.RequestJoin(id)
	if err := s.subscribe(types.TopicForChannel(id)); err != nil {
		return err
	}
	s.publish(ctx, types.TopicForChannel(id), data)
	s.emit(EventMembershipChanged{Channel: id, State: state})
	return nil
}

// RequestLeave 发布离开请求并记录本地意向
func (s *Service) RequestLeave(ctx context.Context, id types.ChannelID) error {
	env, data, err := s.seal(types.ChannelRequestLeave{ID: id})
	if err != nil {
		return err
	}
	s.markSeen(env)
	state := s.membership.RequestLeave(id)
	s.publish(ctx, types.TopicForChannel(id), data)
	s.emit(EventMembershipChanged{Channel: id, State: state})
	return nil
}

// SendMessage 向频道发送聊天消息
func (s *Service) SendMessage(ctx context.Context, id types.ChannelID, body string, kind types.MessageKind) error {
	if len(body) == 0 {
		return ErrEmptyMessage
	}
	if len(body) > types.MaxMessageBody {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(body))
	}
	if !utf8.ValidString(body) {
		return fmt.Errorf("%w: body is not valid UTF-8", ErrMalformedEnvelope)
	}

	env, data, err := s.seal(types.MessageSend{Body: []byte(body), Kind: kind})
	if err != nil {
		return err
	}
	s.markSeen(env)
	s.publish(ctx, types.TopicForChannel(id), data)
	s.emit(EventMessage{
		Channel:   id,
		Sender:    s.id.PeerID(),
		Body:      body,
		Kind:      kind,
		Timestamp: env.Timestamp,
	})
	return nil
}

// SetNickname 设置本节点昵称并发布
func (s *Service) SetNickname(ctx context.Context, nickname string) error {
	if !utf8.ValidString(nickname) {
		return fmt.Errorf("%w: nickname is not valid UTF-8", ErrMalformedEnvelope)
	}
	env, data, err := s.seal(types.ChangeNickname{Nickname: nickname})
	if err != nil {
		return err
	}
	s.markSeen(env)
	s.applyNickname(types.NicknameRecord{
		Peer:      s.id.PeerID(),
		Nickname:  nickname,
		Timestamp: env.Timestamp,
	})
	s.publish(ctx, types.TopicNicknames, data)
	return nil
}

// ============================================================================
//                              出站辅助
// ============================================================================

// seal 构造、签名并编码一个本地信封
func (s *Service) seal(payload types.Payload) (*types.Envelope, []byte, error) {
	env := &types.Envelope{
		Timestamp: s.clock.Now().UnixMilli(),
		Sender:    s.id.PeerID(),
		Payload:   payload,
	}
	signed, err := SigningBytes(env)
	if err != nil {
		return nil, nil, err
	}
	sig, err := s.id.Sign(signed)
	if err != nil {
		return nil, nil, err
	}
	env.Signature = sig

	data, err := Encode(env)
	if err != nil {
		return nil, nil, err
	}
	return env, data, nil
}

// markSeen 把本地信封登记进去重缓存，回流的自发消息不再重复应用
func (s *Service) markSeen(env *types.Envelope) {
	s.seen.Add(string(env.Signature), struct{}{})
}

// publish 发布到主题，失败只记录日志
//
// 本地状态已乐观应用；发布失败只影响传播，不回滚。
func (s *Service) publish(ctx context.Context, topic string, data []byte) {
	if err := s.transport.Publish(ctx, topic, data); err != nil {
		logger.Warn("publish failed", "topic", topic, "err", err)
	}
}

// emit 投递事件，消费过慢时丢弃
func (s *Service) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		logger.Warn("event buffer full, dropping event")
	}
}
