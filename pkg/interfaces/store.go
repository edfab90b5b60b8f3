package interfaces

// StoreEvent 分布式存储的变更通知
type StoreEvent struct {
	// Key 变更的键
	Key string

	// Value 变更后的值
	Value []byte
}

// Store 最终一致的分布式键值存储
//
// 键空间约定（见 types 包）：
//   - channel/<owner>/<id> - 频道清单
//   - nick/<peerId>        - 昵称记录
//
// 存储是只增的：值只会被覆盖，永不删除。
// 复制是异步的，不同节点可能瞬时观察到不同的值；
// 核心的所有合并规则（版本检查、冲突裁决、last-writer-wins）
// 都必须在这种弱一致前提下收敛。
type Store interface {
	// Put 写入键值
	Put(key string, value []byte) error

	// Get 读取键值
	//
	// 第二个返回值表示键是否存在。
	Get(key string) ([]byte, bool, error)

	// Watch 订阅变更通知
	//
	// 返回通知通道和取消函数。实现至少要通知本地可见的变更；
	// 远端复制到达时的通知让核心得以在分区愈合后重新收敛。
	Watch() (<-chan StoreEvent, func())

	// Close 关闭存储
	Close() error
}
