package interfaces

import (
	"context"

	"github.com/cassaundra/p2p-chat/pkg/types"
)

// ValidatorFunc 主题消息验证函数
//
// 传输层在传播一条入站消息之前调用已注册的验证函数，
// 并依据返回的裁决决定转发、丢弃或降低发送者亲和度。
// 验证必须是纯函数：不做网络 I/O，不修改任何状态。
type ValidatorFunc func(topic string, data []byte, sender types.PeerID) types.Verdict

// TransportMessage 传输层交付的消息
type TransportMessage struct {
	// Topic 消息所属主题
	Topic string

	// Data 消息数据
	Data []byte

	// Sender 发送方节点 ID（由传输层的认证链路保证）
	Sender types.PeerID
}

// Subscription 主题订阅
type Subscription interface {
	// Next 获取下一条消息
	Next(ctx context.Context) (*TransportMessage, error)

	// Cancel 取消订阅
	Cancel()
}

// Transport 基于主题的 pub/sub 传输
//
// 具体实现（gossip 洪泛、mDNS 发现、Noise 握手等）不在核心范围内；
// 核心只依赖这里的订阅/发布/验证钩子三个能力。
type Transport interface {
	// Subscribe 订阅主题
	Subscribe(topic string) (Subscription, error)

	// Publish 向主题发布消息
	//
	// 发布是 fire-and-forget 的：本地状态已乐观应用，
	// 发布失败只影响传播，不回滚本地状态。
	Publish(ctx context.Context, topic string, data []byte) error

	// RegisterValidator 注册主题验证钩子
	//
	// 同一主题重复注册时后者覆盖前者。
	RegisterValidator(topic string, v ValidatorFunc)

	// Close 关闭传输
	Close() error
}
