// Package badger 提供基于 BadgerDB 的存储引擎实现
//
// BadgerDB 是嵌入式 LSM 树键值存储，支持事务与垃圾回收。
// 用作分布式存储本地副本的持久化后端。
//
// # 使用示例
//
//	eng, err := badger.New(badger.Config{Path: "/data/chat"})
//	if err != nil {
//	    return err
//	}
//	defer eng.Close()
package badger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/cassaundra/p2p-chat/internal/core/storage/engine"
	"github.com/cassaundra/p2p-chat/pkg/lib/log"
)

var logger = log.Logger("storage/badger")

// Config BadgerDB 引擎配置
type Config struct {
	// Path 数据库目录（必需）
	Path string

	// SyncWrites 是否同步写入
	// 启用后每次写入都同步到磁盘，更安全但性能较低
	SyncWrites bool

	// GCInterval 垃圾回收间隔（0 禁用 GC）
	GCInterval time.Duration

	// GCDiscardRatio 垃圾回收丢弃比例
	GCDiscardRatio float64
}

// DefaultConfig 返回默认配置
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     false,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// Engine BadgerDB 存储引擎
type Engine struct {
	db     *badger.DB
	closed atomic.Bool

	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
}

// 确保 Engine 实现了 engine.Engine 接口
var _ engine.Engine = (*Engine)(nil)

// New 打开 BadgerDB 存储引擎
func New(cfg Config) (*Engine, error) {
	if cfg.Path == "" {
		return nil, errors.New("badger: path is required")
	}

	opts := badger.DefaultOptions(cfg.Path).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	e := &Engine{db: db}

	if cfg.GCInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		e.gcCancel = cancel
		e.gcWg.Add(1)
		go e.runGC(ctx, cfg.GCInterval, cfg.GCDiscardRatio)
	}

	return e, nil
}

// Get 读取键值
func (e *Engine) Get(key []byte) ([]byte, error) {
	if e.closed.Load() {
		return nil, engine.ErrClosed
	}
	var value []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, engine.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put 写入键值
func (e *Engine) Put(key, value []byte) error {
	if e.closed.Load() {
		return engine.ErrClosed
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Has 检查键是否存在
func (e *Engine) Has(key []byte) (bool, error) {
	if e.closed.Load() {
		return false, engine.ErrClosed
	}
	err := e.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete 删除键
func (e *Engine) Delete(key []byte) error {
	if e.closed.Load() {
		return engine.ErrClosed
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Iterate 遍历具有指定前缀的键值对
func (e *Engine) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	if e.closed.Load() {
		return engine.ErrClosed
	}
	return e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !fn(item.Key(), value) {
				return nil
			}
		}
		return nil
	})
}

// Close 关闭引擎
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	if e.gcCancel != nil {
		e.gcCancel()
		e.gcWg.Wait()
	}
	return e.db.Close()
}

// runGC 周期性执行值日志垃圾回收
func (e *Engine) runGC(ctx context.Context, interval time.Duration, discardRatio float64) {
	defer e.gcWg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// badger 要求循环调用直到无可回收空间
			for {
				if err := e.db.RunValueLogGC(discardRatio); err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						logger.Warn("value log GC failed", "err", err)
					}
					break
				}
			}
		}
	}
}
