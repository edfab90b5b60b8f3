package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
)

// Ed25519 密钥常量
const (
	// Ed25519PublicKeySize Ed25519 公钥大小（32 字节）
	Ed25519PublicKeySize = ed25519.PublicKeySize
	// Ed25519SignatureSize Ed25519 签名大小（64 字节）
	Ed25519SignatureSize = ed25519.SignatureSize
	// Ed25519SeedSize Ed25519 种子大小（32 字节）
	Ed25519SeedSize = ed25519.SeedSize
)

// ============================================================================
//                              Ed25519PublicKey
// ============================================================================

// Ed25519PublicKey Ed25519 公钥实现
type Ed25519PublicKey struct {
	k ed25519.PublicKey
}

// Raw 返回原始公钥字节
func (k *Ed25519PublicKey) Raw() []byte {
	buf := make([]byte, len(k.k))
	copy(buf, k.k)
	return buf
}

// Equals 比较两个公钥是否相等
//
// 使用常量时间比较以防止时序攻击。
func (k *Ed25519PublicKey) Equals(other Key) bool {
	ek, ok := other.(*Ed25519PublicKey)
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare(k.k, ek.k) == 1
}

// Verify 使用此公钥验证签名
func (k *Ed25519PublicKey) Verify(data, sig []byte) bool {
	if len(sig) != Ed25519SignatureSize {
		return false
	}
	return ed25519.Verify(k.k, data, sig)
}

// Ed25519PublicKeyFromBytes 从原始字节创建公钥
func Ed25519PublicKeyFromBytes(b []byte) (*Ed25519PublicKey, error) {
	if len(b) != Ed25519PublicKeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeyLength, len(b), Ed25519PublicKeySize)
	}
	pub := make(ed25519.PublicKey, Ed25519PublicKeySize)
	copy(pub, b)
	return &Ed25519PublicKey{k: pub}, nil
}

// ============================================================================
//                              Ed25519PrivateKey
// ============================================================================

// Ed25519PrivateKey Ed25519 私钥实现
type Ed25519PrivateKey struct {
	k ed25519.PrivateKey
}

// Raw 返回原始私钥字节
//
// Ed25519 私钥为 64 字节，包含 32 字节种子和 32 字节公钥。
func (k *Ed25519PrivateKey) Raw() []byte {
	buf := make([]byte, len(k.k))
	copy(buf, k.k)
	return buf
}

// Seed 返回私钥种子（32 字节）
func (k *Ed25519PrivateKey) Seed() []byte {
	return k.k.Seed()
}

// Equals 比较两个私钥是否相等
//
// 使用常量时间比较以防止时序攻击。
func (k *Ed25519PrivateKey) Equals(other Key) bool {
	ek, ok := other.(*Ed25519PrivateKey)
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare(k.k, ek.k) == 1
}

// Sign 使用此私钥对数据签名
func (k *Ed25519PrivateKey) Sign(data []byte) ([]byte, error) {
	return ed25519.Sign(k.k, data), nil
}

// Public 返回对应的公钥
func (k *Ed25519PrivateKey) Public() PublicKey {
	return &Ed25519PublicKey{k: k.k.Public().(ed25519.PublicKey)}
}

// ============================================================================
//                              密钥生成
// ============================================================================

// GenerateEd25519 生成新的 Ed25519 密钥对
func GenerateEd25519() (*Ed25519PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Ed25519PrivateKey{k: priv}, nil
}

// Ed25519FromSeed 从 32 字节种子派生 Ed25519 私钥
//
// 相同种子总是派生出相同密钥，用于测试和密钥恢复。
func Ed25519FromSeed(seed []byte) (*Ed25519PrivateKey, error) {
	if len(seed) != Ed25519SeedSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeyLength, len(seed), Ed25519SeedSize)
	}
	return &Ed25519PrivateKey{k: ed25519.NewKeyFromSeed(seed)}, nil
}
