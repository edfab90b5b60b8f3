package types

import (
	"errors"

	"github.com/mr-tron/base58"
)

// ============================================================================
//                              PeerID - 节点标识
// ============================================================================

// PeerID 节点唯一标识符
//
// 由公钥确定性派生的 multihash（Ed25519 公钥使用 identity multihash，
// 公钥本身内嵌在标识符中，可直接还原用于签名验证）。
//
// 外部表示格式：
//   - String(): Base58 编码（用户可读、可分享）
//   - ShortString(): Base58 前缀（日志简短标识）
type PeerID string

// EmptyPeerID 空节点ID
const EmptyPeerID PeerID = ""

// ErrInvalidPeerID 无效的节点ID错误
var ErrInvalidPeerID = errors.New("invalid peer ID: must be a base58 multihash")

// String 返回 PeerID 的 Base58 字符串表示
func (id PeerID) String() string {
	return string(id)
}

// ShortString 返回 PeerID 的短字符串表示
//
// 格式：Base58 前 8 个字符，用于日志中的简短标识。
func (id PeerID) ShortString() string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

// Bytes 返回 PeerID 的原始 multihash 字节
func (id PeerID) Bytes() ([]byte, error) {
	if id.IsEmpty() {
		return nil, ErrInvalidPeerID
	}
	b, err := base58.Decode(string(id))
	if err != nil {
		return nil, ErrInvalidPeerID
	}
	return b, nil
}

// Equal 比较两个 PeerID 是否相等
func (id PeerID) Equal(other PeerID) bool {
	return id == other
}

// IsEmpty 检查 PeerID 是否为空
func (id PeerID) IsEmpty() bool {
	return id == EmptyPeerID
}

// PeerIDFromBytes 从 multihash 字节创建 PeerID
func PeerIDFromBytes(b []byte) (PeerID, error) {
	if len(b) == 0 {
		return EmptyPeerID, ErrInvalidPeerID
	}
	return PeerID(base58.Encode(b)), nil
}

// ParsePeerID 从字符串解析 PeerID
//
// 仅支持 Base58 编码（用于用户输入和配置）。
func ParsePeerID(s string) (PeerID, error) {
	if s == "" {
		return EmptyPeerID, ErrInvalidPeerID
	}
	if _, err := base58.Decode(s); err != nil {
		return EmptyPeerID, ErrInvalidPeerID
	}
	return PeerID(s), nil
}

// ============================================================================
//                              ChannelID - 频道标识
// ============================================================================

// ChannelID 频道标识符
//
// 频道名即标识符，每个频道对应一个独立的 pub/sub 主题。
type ChannelID string

// String 返回频道ID字符串
func (c ChannelID) String() string {
	return string(c)
}

// IsEmpty 检查 ChannelID 是否为空
func (c ChannelID) IsEmpty() bool {
	return c == ""
}
