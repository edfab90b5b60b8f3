package chat

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/cassaundra/p2p-chat/pkg/lib/crypto"
	"github.com/cassaundra/p2p-chat/pkg/types"
)

// 新鲜度窗口默认值
const (
	// DefaultStaleWindow 允许的最大消息年龄
	DefaultStaleWindow = 10 * time.Minute

	// DefaultFutureSkew 允许的最大未来时钟偏移
	DefaultFutureSkew = 2 * time.Minute
)

// ChannelView 验证器对本地频道状态的只读视图
type ChannelView interface {
	// Get 返回频道的当前清单
	Get(id types.ChannelID) (types.Manifest, bool)
}

// NicknameView 验证器对本地昵称状态的只读视图
type NicknameView interface {
	// Lookup 返回节点的当前昵称记录
	Lookup(peer types.PeerID) (types.NicknameRecord, bool)
}

// Validator 信封验证器
//
// 验证是信封、本地状态视图与单调时钟的纯函数：
// 从不修改任何状态，裁决后的状态变更只发生在消费方。
// 裁决交回传输层；任何 Reject 都可能导致传输层
// 降低发送者的亲和度，核心自身从不评分。
type Validator struct {
	channels  ChannelView
	nicknames NicknameView
	clock     clock.Clock

	staleWindow time.Duration
	futureSkew  time.Duration
}

// NewValidator 创建验证器
//
// clk 为 nil 时使用真实时钟。
func NewValidator(channels ChannelView, nicknames NicknameView, clk clock.Clock) *Validator {
	if clk == nil {
		clk = clock.New()
	}
	return &Validator{
		channels:    channels,
		nicknames:   nicknames,
		clock:       clk,
		staleWindow: DefaultStaleWindow,
		futureSkew:  DefaultFutureSkew,
	}
}

// SetFreshnessWindow 调整新鲜度窗口
//
// 窗口必须有界以限制重放暴露；零值保持默认。
func (v *Validator) SetFreshnessWindow(staleWindow, futureSkew time.Duration) {
	if staleWindow > 0 {
		v.staleWindow = staleWindow
	}
	if futureSkew > 0 {
		v.futureSkew = futureSkew
	}
}

// Validate 对信封产出裁决
//
// 检查顺序：签名 → 新鲜度 → 变体规则。
func (v *Validator) Validate(env *types.Envelope) types.Verdict {
	if env == nil || env.Payload == nil {
		return types.Reject(types.ReasonMalformedEnvelope)
	}

	if !v.verifySignature(env) {
		return types.Reject(types.ReasonBadSignature)
	}

	if !v.fresh(env.Timestamp) {
		return types.Reject(types.ReasonStaleOrFuture)
	}

	switch p := env.Payload.(type) {
	case types.ChannelCreate:
		return v.validateCreate(env.Sender, p)
	case types.ChannelUpgrade:
		return v.validateUpgrade(p)
	case types.ChannelRequestJoin, types.ChannelRequestLeave:
		// 加入/离开请求只记录为发送者的本地意向，无权限判定
		return types.Accept()
	case types.MessageSend:
		return v.validateMessage(p)
	case types.ChangeNickname:
		// 昵称变更总是可接受：合法 UTF-8 已由解码保证，长度不限，
		// 过期记录由目录的 last-writer-wins 合并自然吸收
		return types.Accept()
	default:
		return types.Reject(types.ReasonMalformedEnvelope)
	}
}

// verifySignature 用发送者内嵌公钥验证信封签名
func (v *Validator) verifySignature(env *types.Envelope) bool {
	pub, err := crypto.ExtractPublicKey(env.Sender)
	if err != nil {
		return false
	}
	signed, err := SigningBytes(env)
	if err != nil {
		return false
	}
	return pub.Verify(signed, env.Signature)
}

// fresh 检查时间戳是否落在新鲜度窗口内
func (v *Validator) fresh(timestamp int64) bool {
	now := v.clock.Now().UnixMilli()
	if timestamp < now-v.staleWindow.Milliseconds() {
		return false
	}
	if timestamp > now+v.futureSkew.Milliseconds() {
		return false
	}
	return true
}

// validateCreate 检查频道创建消息
func (v *Validator) validateCreate(sender types.PeerID, p types.ChannelCreate) types.Verdict {
	if _, exists := v.channels.Get(p.ID); exists {
		return types.Reject(types.ReasonVersionConflict)
	}
	if len(p.Participants) == 0 {
		return types.Reject(types.ReasonEmptyParticipants)
	}
	// 创建时声明的所有者必须等于发送者；伪造的所有权声明
	// 属于模式不变量违规
	if p.Owner != sender {
		return types.Reject(types.ReasonMalformedEnvelope)
	}
	return types.Accept()
}

// validateUpgrade 检查频道升级消息
//
// 同版本的并发候选被接受，由清单存储做确定性冲突裁决；
// 与本地持有内容完全相同的升级是幂等重放，裁决为 Ignore。
func (v *Validator) validateUpgrade(p types.ChannelUpgrade) types.Verdict {
	current, exists := v.channels.Get(p.ID)
	if !exists {
		return types.Reject(types.ReasonUnknownChannel)
	}
	if p.Version < current.Version {
		return types.Reject(types.ReasonNonIncreasingVersion)
	}
	if len(p.Participants) == 0 {
		return types.Reject(types.ReasonEmptyParticipants)
	}
	if p.Version == current.Version {
		if p.Manifest().Equal(current) {
			return types.Ignore()
		}
		// 同版本不同内容：并发升级候选，交给存储裁决
		return types.Accept()
	}
	return types.Accept()
}

// validateMessage 检查聊天消息
func (v *Validator) validateMessage(p types.MessageSend) types.Verdict {
	if len(p.Body) > types.MaxMessageBody {
		return types.Reject(types.ReasonPayloadTooLarge)
	}
	if !p.Kind.Valid() {
		return types.Reject(types.ReasonUnknownMessageType)
	}
	return types.Accept()
}
