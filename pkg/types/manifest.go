package types

import (
	"encoding/binary"
	"sort"

	"lukechampine.com/blake3"
)

// ============================================================================
//                              Manifest - 频道清单
// ============================================================================

// ManifestHashSize 清单内容哈希大小（字节）
const ManifestHashSize = 32

// ManifestHash 清单内容哈希
//
// 对清单规范编码求 BLAKE3 得到，仅依赖清单内容本身。
// 并发同版本升级的冲突裁决以该哈希的字典序比较为准。
type ManifestHash [ManifestHashSize]byte

// Less 按字典序比较两个清单哈希
func (h ManifestHash) Less(other ManifestHash) bool {
	for i := 0; i < ManifestHashSize; i++ {
		if h[i] != other[i] {
			return h[i] < other[i]
		}
	}
	return false
}

// Manifest 频道清单
//
// 每个频道的权威状态：{标识, 版本, 所有者, 成员列表}。
// 版本号单调不减；成员列表非空且由所有者权威维护。
// 创建即版本 0，之后只能通过版本更高的升级覆盖，永不删除。
type Manifest struct {
	// ID 频道标识符
	ID ChannelID `json:"id"`

	// Version 清单版本（创建为 0，升级严格递增）
	Version uint64 `json:"version"`

	// Owner 所有者节点ID
	Owner PeerID `json:"owner"`

	// Participants 成员列表（非空）
	Participants []PeerID `json:"participants"`
}

// Clone 返回清单的深拷贝
func (m Manifest) Clone() Manifest {
	out := m
	out.Participants = append([]PeerID(nil), m.Participants...)
	return out
}

// HasParticipant 检查指定节点是否在成员列表中
func (m Manifest) HasParticipant(peer PeerID) bool {
	for _, p := range m.Participants {
		if p == peer {
			return true
		}
	}
	return false
}

// Canonical 返回规范化后的清单副本
//
// 成员列表去重并按字典序排序，使内容相同的清单编码一致。
func (m Manifest) Canonical() Manifest {
	out := m.Clone()
	sort.Slice(out.Participants, func(i, j int) bool {
		return out.Participants[i] < out.Participants[j]
	})
	dedup := out.Participants[:0]
	var prev PeerID
	for i, p := range out.Participants {
		if i == 0 || p != prev {
			dedup = append(dedup, p)
		}
		prev = p
	}
	out.Participants = dedup
	return out
}

// ContentHash 返回清单内容的 BLAKE3 哈希
//
// 哈希只依赖规范化后的清单内容，与到达顺序、时钟无关，
// 任意两个观察者对相同清单得到相同哈希。
func (m Manifest) ContentHash() ManifestHash {
	c := m.Canonical()

	h := blake3.New(ManifestHashSize, nil)
	writeHashString(h, string(c.ID))

	var ver [8]byte
	binary.BigEndian.PutUint64(ver[:], c.Version)
	h.Write(ver[:])

	writeHashString(h, string(c.Owner))

	var count [8]byte
	binary.BigEndian.PutUint64(count[:], uint64(len(c.Participants)))
	h.Write(count[:])
	for _, p := range c.Participants {
		writeHashString(h, string(p))
	}

	var out ManifestHash
	copy(out[:], h.Sum(nil))
	return out
}

// Equal 比较两个清单内容是否相同（忽略成员列表顺序）
func (m Manifest) Equal(other Manifest) bool {
	return m.ContentHash() == other.ContentHash()
}

// writeHashString 写入长度前缀的字符串，避免编码歧义
func writeHashString(h *blake3.Hasher, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}
