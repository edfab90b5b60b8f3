// Package identity 实现本地身份管理
//
// 本地身份 = Ed25519 密钥对 + 由公钥派生的 PeerID。
// 身份一经创建不可变，所有出站信封都由它签名。
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/cassaundra/p2p-chat/pkg/lib/crypto"
	"github.com/cassaundra/p2p-chat/pkg/types"
)

// Identity 本地节点身份
type Identity struct {
	priv   crypto.PrivateKey
	pub    crypto.PublicKey
	peerID types.PeerID
}

// New 从私钥构建身份
func New(priv crypto.PrivateKey) (*Identity, error) {
	pub := priv.Public()
	peerID, err := crypto.PeerIDFromPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("derive peer ID: %w", err)
	}
	return &Identity{priv: priv, pub: pub, peerID: peerID}, nil
}

// Generate 生成新的随机身份
func Generate() (*Identity, error) {
	priv, err := crypto.GenerateEd25519()
	if err != nil {
		return nil, err
	}
	return New(priv)
}

// FromSeed 从 32 字节种子派生确定性身份
//
// 相同种子总是得到相同身份，测试与密钥恢复使用。
func FromSeed(seed []byte) (*Identity, error) {
	priv, err := crypto.Ed25519FromSeed(seed)
	if err != nil {
		return nil, err
	}
	return New(priv)
}

// PeerID 返回节点标识
func (id *Identity) PeerID() types.PeerID {
	return id.peerID
}

// PublicKey 返回公钥
func (id *Identity) PublicKey() crypto.PublicKey {
	return id.pub
}

// Sign 对数据签名
func (id *Identity) Sign(data []byte) ([]byte, error) {
	return id.priv.Sign(data)
}

// ============================================================================
//                              持久化
// ============================================================================

// LoadOrCreate 从文件加载身份，文件不存在时生成并保存
//
// 文件内容为私钥种子的十六进制编码，权限 0600。
func LoadOrCreate(path string) (*Identity, error) {
	if data, err := os.ReadFile(path); err == nil {
		seed, err := hex.DecodeString(string(data))
		if err != nil {
			return nil, fmt.Errorf("parse identity file %s: %w", path, err)
		}
		return FromSeed(seed)
	}

	seed := make([]byte, crypto.Ed25519SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(seed)), 0o600); err != nil {
		return nil, fmt.Errorf("save identity file %s: %w", path, err)
	}
	return FromSeed(seed)
}
