package chat

import "errors"

// 错误定义
var (
	// ErrMalformedEnvelope 信封无法解析或违反模式约束
	ErrMalformedEnvelope = errors.New("chat: malformed envelope")

	// ErrUnknownPayloadType 未知的变体标签
	ErrUnknownPayloadType = errors.New("chat: unknown payload type")

	// ErrEnvelopeTooLarge 信封超出大小上限
	ErrEnvelopeTooLarge = errors.New("chat: envelope too large")

	// ErrNotStarted 服务未启动
	ErrNotStarted = errors.New("chat: service not started")

	// ErrAlreadyStarted 服务已启动
	ErrAlreadyStarted = errors.New("chat: service already started")

	// ErrUnknownChannel 本地不存在该频道
	ErrUnknownChannel = errors.New("chat: unknown channel")

	// ErrChannelExists 本地已存在该频道
	ErrChannelExists = errors.New("chat: channel already exists")

	// ErrNotOwner 本节点不是频道所有者
	ErrNotOwner = errors.New("chat: local peer does not own channel")

	// ErrEmptyParticipants 成员列表为空
	ErrEmptyParticipants = errors.New("chat: participants must be non-empty")

	// ErrMessageTooLarge 消息体超过上限
	ErrMessageTooLarge = errors.New("chat: message body too large")

	// ErrEmptyMessage 消息体为空
	ErrEmptyMessage = errors.New("chat: message body is empty")
)
