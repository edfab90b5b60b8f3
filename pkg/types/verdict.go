package types

// ============================================================================
//                              Verdict - 验证裁决
// ============================================================================

// VerdictKind 裁决类别
type VerdictKind uint8

const (
	// VerdictAccept 接受：消息有效，可继续传播并交付本地状态
	VerdictAccept VerdictKind = iota
	// VerdictReject 拒绝：消息无效，不传播，传输层可据此降低发送者亲和度
	VerdictReject
	// VerdictIgnore 忽略：消息重复或无关，不传播也不惩罚
	VerdictIgnore
)

// String 返回裁决类别的字符串表示
func (k VerdictKind) String() string {
	switch k {
	case VerdictAccept:
		return "Accept"
	case VerdictReject:
		return "Reject"
	case VerdictIgnore:
		return "Ignore"
	default:
		return "Unknown"
	}
}

// RejectReason 拒绝原因
//
// 完整的错误分类。所有拒绝都是本地决定，不向发送者回执；
// 任何拒绝都不中止后续消息的处理。
type RejectReason uint8

const (
	// ReasonNone 无（非拒绝裁决）
	ReasonNone RejectReason = iota
	// ReasonMalformedEnvelope 无法解析或违反模式约束
	ReasonMalformedEnvelope
	// ReasonBadSignature 签名验证失败
	ReasonBadSignature
	// ReasonStaleOrFuture 时间戳超出新鲜度窗口
	ReasonStaleOrFuture
	// ReasonVersionConflict 创建时本地已存在该频道清单
	ReasonVersionConflict
	// ReasonNonIncreasingVersion 升级版本不高于本地已存版本
	ReasonNonIncreasingVersion
	// ReasonUnknownChannel 升级目标频道在本地不存在
	ReasonUnknownChannel
	// ReasonEmptyParticipants 成员列表为空
	ReasonEmptyParticipants
	// ReasonPayloadTooLarge 消息体超过上限
	ReasonPayloadTooLarge
	// ReasonUnknownMessageType 未知的消息类型标签
	ReasonUnknownMessageType
)

// String 返回拒绝原因的字符串表示
func (r RejectReason) String() string {
	switch r {
	case ReasonNone:
		return "None"
	case ReasonMalformedEnvelope:
		return "MalformedEnvelope"
	case ReasonBadSignature:
		return "BadSignature"
	case ReasonStaleOrFuture:
		return "StaleOrFuture"
	case ReasonVersionConflict:
		return "VersionConflict"
	case ReasonNonIncreasingVersion:
		return "NonIncreasingVersion"
	case ReasonUnknownChannel:
		return "UnknownChannel"
	case ReasonEmptyParticipants:
		return "EmptyParticipants"
	case ReasonPayloadTooLarge:
		return "PayloadTooLarge"
	case ReasonUnknownMessageType:
		return "UnknownMessageType"
	default:
		return "Unknown"
	}
}

// Verdict 验证裁决
//
// 验证器的唯一输出。裁决交回传输层，由传输层决定
// 是否传播以及是否调整发送者亲和度；核心自身从不评分。
type Verdict struct {
	// Kind 裁决类别
	Kind VerdictKind

	// Reason 拒绝原因（仅 VerdictReject 时有效）
	Reason RejectReason
}

// Accept 返回接受裁决
func Accept() Verdict {
	return Verdict{Kind: VerdictAccept}
}

// Reject 返回带原因的拒绝裁决
func Reject(reason RejectReason) Verdict {
	return Verdict{Kind: VerdictReject, Reason: reason}
}

// Ignore 返回忽略裁决
func Ignore() Verdict {
	return Verdict{Kind: VerdictIgnore}
}

// IsAccept 检查是否为接受裁决
func (v Verdict) IsAccept() bool { return v.Kind == VerdictAccept }

// IsReject 检查是否为拒绝裁决
func (v Verdict) IsReject() bool { return v.Kind == VerdictReject }

// String 返回裁决的字符串表示
func (v Verdict) String() string {
	if v.Kind == VerdictReject {
		return "Reject(" + v.Reason.String() + ")"
	}
	return v.Kind.String()
}
