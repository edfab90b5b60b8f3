// Package crypto 提供 p2p-chat 的密钥与签名原语
//
// 当前仅支持 Ed25519。节点标识由公钥确定性派生为 multihash，
// Ed25519 公钥足够短，直接以 identity multihash 内嵌，
// 使签名验证无需额外的公钥分发通道。
package crypto

import "errors"

// 错误定义
var (
	// ErrInvalidKeyLength 密钥长度无效
	ErrInvalidKeyLength = errors.New("crypto: invalid key length")

	// ErrInvalidSignature 签名无效
	ErrInvalidSignature = errors.New("crypto: invalid signature")

	// ErrKeyNotEmbedded 节点ID未内嵌公钥
	ErrKeyNotEmbedded = errors.New("crypto: peer ID does not embed a public key")
)

// Key 密钥公共接口
type Key interface {
	// Raw 返回原始密钥字节
	Raw() []byte

	// Equals 比较两个密钥是否相等（常量时间）
	Equals(other Key) bool
}

// PublicKey 公钥接口
type PublicKey interface {
	Key

	// Verify 使用此公钥验证签名
	Verify(data, sig []byte) bool
}

// PrivateKey 私钥接口
type PrivateKey interface {
	Key

	// Sign 使用此私钥对数据签名
	Sign(data []byte) ([]byte, error)

	// Public 返回对应的公钥
	Public() PublicKey
}
