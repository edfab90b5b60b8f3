package crypto

import (
	"fmt"

	"github.com/multiformats/go-multihash"

	"github.com/cassaundra/p2p-chat/pkg/types"
)

// ============================================================================
//                              PeerID 派生
// ============================================================================

// PeerIDFromPublicKey 从公钥派生 PeerID
//
// 派生算法：Base58(multihash(identity, 公钥字节))
//
// Ed25519 公钥只有 32 字节，使用 identity multihash 直接内嵌，
// 因此任何观察者都可以仅凭 PeerID 还原公钥并验证签名。
func PeerIDFromPublicKey(pub PublicKey) (types.PeerID, error) {
	if pub == nil {
		return types.EmptyPeerID, fmt.Errorf("%w: nil public key", ErrInvalidKeyLength)
	}
	mh, err := multihash.Sum(pub.Raw(), multihash.IDENTITY, -1)
	if err != nil {
		return types.EmptyPeerID, err
	}
	return types.PeerIDFromBytes(mh)
}

// ExtractPublicKey 从 PeerID 还原内嵌的公钥
//
// 仅 identity multihash 形式的 PeerID 可以还原；
// 其余形式返回 ErrKeyNotEmbedded。
func ExtractPublicKey(id types.PeerID) (PublicKey, error) {
	raw, err := id.Bytes()
	if err != nil {
		return nil, err
	}
	dec, err := multihash.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidPeerID, err)
	}
	if dec.Code != multihash.IDENTITY {
		return nil, ErrKeyNotEmbedded
	}
	return Ed25519PublicKeyFromBytes(dec.Digest)
}
