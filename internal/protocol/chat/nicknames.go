package chat

import (
	"sync"

	"github.com/cassaundra/p2p-chat/pkg/types"
)

// NicknameDirectory 昵称目录
//
// 持有每个节点的最新昵称记录。合并策略为 last-writer-wins：
// 时间戳大者胜，时间戳相同时按昵称字节序裁决（全序、确定，
// 所有节点一致）。写入按节点串行化，记录永不删除。
// 不同节点选择相同昵称是允许的，不做去重——消歧属于展示层。
type NicknameDirectory struct {
	mu      sync.RWMutex
	records map[types.PeerID]types.NicknameRecord
}

// 确保 NicknameDirectory 实现了验证器的昵称视图
var _ NicknameView = (*NicknameDirectory)(nil)

// NewNicknameDirectory 创建昵称目录
func NewNicknameDirectory() *NicknameDirectory {
	return &NicknameDirectory{
		records: make(map[types.PeerID]types.NicknameRecord),
	}
}

// Set 合并一条昵称记录
//
// 应用 last-writer-wins 规则；与到达顺序无关，重复应用幂等。
// 返回值表示记录是否胜出并覆盖了现值。
func (d *NicknameDirectory) Set(peer types.PeerID, nickname string, timestamp int64) bool {
	incoming := types.NicknameRecord{Peer: peer, Nickname: nickname, Timestamp: timestamp}

	d.mu.Lock()
	defer d.mu.Unlock()
	if current, ok := d.records[peer]; ok && !incoming.Supersedes(current) {
		return false
	}
	d.records[peer] = incoming
	return true
}

// Lookup 返回节点的当前昵称记录
func (d *NicknameDirectory) Lookup(peer types.PeerID) (types.NicknameRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.records[peer]
	return rec, ok
}

// DisplayName 返回节点的展示名
//
// 目录中没有记录时退回到 PeerID 前缀派生的占位名。
func (d *NicknameDirectory) DisplayName(peer types.PeerID) string {
	if rec, ok := d.Lookup(peer); ok {
		return rec.Nickname
	}
	return "peer-" + peer.ShortString()
}

// Snapshot 返回目录的完整快照
func (d *NicknameDirectory) Snapshot() []types.NicknameRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]types.NicknameRecord, 0, len(d.records))
	for _, rec := range d.records {
		out = append(out, rec)
	}
	return out
}
