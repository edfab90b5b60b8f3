// Package types 定义 p2p-chat 的基础类型
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据：
//
//   - PeerID / ChannelID: 标识符
//   - Manifest: 频道清单（版本化的 {标识, 所有者, 成员列表}）
//   - Envelope / Payload: 签名信封及六种消息变体
//   - NicknameRecord: 昵称记录
//   - Verdict / RejectReason: 验证裁决
//   - MembershipState: 本地成员状态机的状态
package types
