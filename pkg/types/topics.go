package types

import "strings"

// ============================================================================
//                              主题与存储键命名
// ============================================================================

// 主题命名
//
// 每个频道一个 pub/sub 主题，另有一个保留主题承载昵称变更。
const (
	// TopicChannelPrefix 频道主题前缀
	TopicChannelPrefix = "chat/channel/"

	// TopicNicknames 昵称变更保留主题
	TopicNicknames = "chat/nick"
)

// TopicForChannel 返回频道对应的主题名
func TopicForChannel(id ChannelID) string {
	return TopicChannelPrefix + string(id)
}

// ChannelFromTopic 从主题名还原频道ID
//
// 非频道主题返回空 ChannelID 和 false。
func ChannelFromTopic(topic string) (ChannelID, bool) {
	if !strings.HasPrefix(topic, TopicChannelPrefix) {
		return "", false
	}
	id := ChannelID(topic[len(TopicChannelPrefix):])
	if id.IsEmpty() {
		return "", false
	}
	return id, true
}

// 分布式存储键命名
//
// 键空间约定：
//   - channel/<owner>/<id> - 频道清单
//   - nick/<peerId>        - 昵称记录
const (
	// StoreKeyChannelPrefix 清单键前缀
	StoreKeyChannelPrefix = "channel/"

	// StoreKeyNicknamePrefix 昵称键前缀
	StoreKeyNicknamePrefix = "nick/"
)

// ManifestKey 返回清单在分布式存储中的键
func ManifestKey(owner PeerID, id ChannelID) string {
	return StoreKeyChannelPrefix + string(owner) + "/" + string(id)
}

// NicknameKey 返回昵称记录在分布式存储中的键
func NicknameKey(peer PeerID) string {
	return StoreKeyNicknamePrefix + string(peer)
}
