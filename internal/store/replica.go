// Package store 实现分布式键值存储的本地副本
//
// Replica 在本地存储引擎之上实现 interfaces.Store。
// 跨节点的复制算法不在本仓库范围内：远端到达的值
// 同样经由 Put 写入，并通过 Watch 通知核心重新收敛。
// 键空间是只增的，Replica 不提供删除。
package store

import (
	"sync"

	"github.com/cassaundra/p2p-chat/internal/core/storage/engine"
	"github.com/cassaundra/p2p-chat/internal/core/storage/kv"
	"github.com/cassaundra/p2p-chat/pkg/interfaces"
	"github.com/cassaundra/p2p-chat/pkg/lib/log"
)

var logger = log.Logger("store/replica")

// watchBuffer 每个 Watch 订阅者的通知缓冲
const watchBuffer = 64

// Replica 分布式存储的本地副本
type Replica struct {
	kv *kv.Store

	mu       sync.Mutex
	watchers map[int]chan interfaces.StoreEvent
	nextID   int
	closed   bool
}

// 确保 Replica 实现了 interfaces.Store 接口
var _ interfaces.Store = (*Replica)(nil)

// New 创建本地副本
//
// 所有键写入引擎的 "s/" 命名空间。
func New(eng engine.Engine) *Replica {
	return &Replica{
		kv:       kv.New(eng, []byte("s/")),
		watchers: make(map[int]chan interfaces.StoreEvent),
	}
}

// Put 写入键值并通知所有观察者
func (r *Replica) Put(key string, value []byte) error {
	if err := r.kv.Put([]byte(key), value); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ch := range r.watchers {
		select {
		case ch <- interfaces.StoreEvent{Key: key, Value: value}:
		default:
			// 订阅者消费过慢时丢弃通知；副本状态本身不丢，
			// 消费者随时可以重新 Get 到最新值
			logger.Warn("watcher lagging, dropping event", "watcher", id, "key", key)
		}
	}
	return nil
}

// Get 读取键值
func (r *Replica) Get(key string) ([]byte, bool, error) {
	value, err := r.kv.Get([]byte(key))
	if err == engine.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Watch 订阅变更通知
func (r *Replica) Watch() (<-chan interfaces.StoreEvent, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	ch := make(chan interfaces.StoreEvent, watchBuffer)
	if r.closed {
		close(ch)
		return ch, func() {}
	}
	r.watchers[id] = ch

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if w, ok := r.watchers[id]; ok {
			delete(r.watchers, id)
			close(w)
		}
	}
	return ch, cancel
}

// Iterate 遍历具有指定前缀的键值对
//
// 启动恢复时用于回放已持久化的清单与昵称。
func (r *Replica) Iterate(prefix string, fn func(key string, value []byte) bool) error {
	return r.kv.Iterate([]byte(prefix), func(key, value []byte) bool {
		return fn(string(key), value)
	})
}

// Close 关闭副本并释放所有观察者
func (r *Replica) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	for id, ch := range r.watchers {
		delete(r.watchers, id)
		close(ch)
	}
	return nil
}
