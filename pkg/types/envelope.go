package types

// ============================================================================
//                              PayloadType - 消息变体标签
// ============================================================================

// PayloadType 信封载荷的变体标签
//
// 线上表示为一个字节的变体索引，顺序即协议顺序，不可调整。
type PayloadType uint8

const (
	// PayloadChannelCreate 频道创建
	PayloadChannelCreate PayloadType = iota
	// PayloadChannelUpgrade 频道升级
	PayloadChannelUpgrade
	// PayloadChannelRequestJoin 加入请求
	PayloadChannelRequestJoin
	// PayloadChannelRequestLeave 离开请求
	PayloadChannelRequestLeave
	// PayloadMessageSend 聊天消息
	PayloadMessageSend
	// PayloadChangeNickname 昵称变更
	PayloadChangeNickname
)

// String 返回变体标签的字符串表示
func (t PayloadType) String() string {
	switch t {
	case PayloadChannelCreate:
		return "ChannelCreate"
	case PayloadChannelUpgrade:
		return "ChannelUpgrade"
	case PayloadChannelRequestJoin:
		return "ChannelRequestJoin"
	case PayloadChannelRequestLeave:
		return "ChannelRequestLeave"
	case PayloadMessageSend:
		return "MessageSend"
	case PayloadChangeNickname:
		return "ChangeNickname"
	default:
		return "Unknown"
	}
}

// ============================================================================
//                              MessageKind - 聊天消息类型
// ============================================================================

// MessageKind 聊天消息的展示类型
type MessageKind uint8

const (
	// KindNormal 普通消息
	KindNormal MessageKind = 0
	// KindMe 动作消息（IRC 风格的 /me）
	KindMe MessageKind = 1
)

// Valid 检查消息类型标签是否已知
func (k MessageKind) Valid() bool {
	return k == KindNormal || k == KindMe
}

// String 返回消息类型的字符串表示
func (k MessageKind) String() string {
	switch k {
	case KindNormal:
		return "Normal"
	case KindMe:
		return "Me"
	default:
		return "Unknown"
	}
}

// ============================================================================
//                              Payload - 六种消息变体
// ============================================================================

// MaxMessageBody 聊天消息体的最大长度（UTF-8 编码字节数）
const MaxMessageBody = 4096

// Payload 信封载荷
//
// 六种协议消息变体之一，由 PayloadType 标签区分。
type Payload interface {
	// Type 返回变体标签
	Type() PayloadType
}

// ChannelCreate 频道创建消息
//
// 声明的所有者必须等于信封发送者，成员列表非空，隐含版本 0。
type ChannelCreate struct {
	ID           ChannelID
	Owner        PeerID
	Participants []PeerID
}

// Type 返回变体标签
func (ChannelCreate) Type() PayloadType { return PayloadChannelCreate }

// Manifest 返回该创建消息对应的版本 0 清单
func (c ChannelCreate) Manifest() Manifest {
	return Manifest{
		ID:           c.ID,
		Version:      0,
		Owner:        c.Owner,
		Participants: append([]PeerID(nil), c.Participants...),
	}
}

// ChannelUpgrade 频道升级消息
//
// 携带完整的新清单；版本必须高于本地已存版本
// （同版本并发候选交由清单存储做确定性冲突裁决）。
type ChannelUpgrade struct {
	ID           ChannelID
	Version      uint64
	Owner        PeerID
	Participants []PeerID
}

// Type 返回变体标签
func (ChannelUpgrade) Type() PayloadType { return PayloadChannelUpgrade }

// Manifest 返回该升级消息携带的清单
func (u ChannelUpgrade) Manifest() Manifest {
	return Manifest{
		ID:           u.ID,
		Version:      u.Version,
		Owner:        u.Owner,
		Participants: append([]PeerID(nil), u.Participants...),
	}
}

// ChannelRequestJoin 加入请求
//
// 仅记录为发送者的本地意向，不做权限判定。
type ChannelRequestJoin struct {
	ID ChannelID
}

// Type 返回变体标签
func (ChannelRequestJoin) Type() PayloadType { return PayloadChannelRequestJoin }

// ChannelRequestLeave 离开请求
type ChannelRequestLeave struct {
	ID ChannelID
}

// Type 返回变体标签
func (ChannelRequestLeave) Type() PayloadType { return PayloadChannelRequestLeave }

// MessageSend 聊天消息
//
// 目标频道由承载消息的 pub/sub 主题决定，不在载荷中重复。
type MessageSend struct {
	// Body 消息体（合法 UTF-8，至多 MaxMessageBody 字节）
	Body []byte

	// Kind 消息类型
	Kind MessageKind
}

// Type 返回变体标签
func (MessageSend) Type() PayloadType { return PayloadMessageSend }

// ChangeNickname 昵称变更消息
type ChangeNickname struct {
	// Nickname 新昵称（合法 UTF-8，长度不限）
	Nickname string
}

// Type 返回变体标签
func (ChangeNickname) Type() PayloadType { return PayloadChangeNickname }

// ============================================================================
//                              Envelope - 签名信封
// ============================================================================

// Envelope 签名信封
//
// 所有协议消息的统一外壳：{时间戳, 发送者, 签名, 载荷}。
// 签名覆盖除签名本身外的全部字段的规范编码。
type Envelope struct {
	// Timestamp 发送时刻（Unix 毫秒）
	Timestamp int64

	// Sender 发送者节点ID
	Sender PeerID

	// Signature 发送者对信封规范编码的 Ed25519 签名
	Signature []byte

	// Payload 六种消息变体之一
	Payload Payload
}
