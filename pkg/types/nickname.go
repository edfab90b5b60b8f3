package types

// NicknameRecord 昵称记录
//
// 每个节点最新的自报昵称。合并策略为时间戳最大者胜（last-writer-wins），
// 时间戳相同时按固定的确定性规则裁决。记录只会被覆盖，永不删除。
type NicknameRecord struct {
	// Peer 节点ID
	Peer PeerID `json:"peer"`

	// Nickname 昵称（合法 UTF-8）
	Nickname string `json:"nickname"`

	// Timestamp 设置时刻（Unix 毫秒，发送者时钟）
	Timestamp int64 `json:"timestamp"`
}

// Supersedes 判断本记录是否应覆盖 other
//
// 时间戳更大者胜；时间戳相同时昵称字节序更大者胜。
// 该规则是全序且确定的，任意两个观察者得到相同结果。
func (r NicknameRecord) Supersedes(other NicknameRecord) bool {
	if r.Timestamp != other.Timestamp {
		return r.Timestamp > other.Timestamp
	}
	return r.Nickname > other.Nickname
}
