// Package memory 提供纯内存存储引擎
//
// 用于测试与演示；不持久化，进程退出即丢失。
package memory

import (
	"sort"
	"strings"
	"sync"

	"github.com/cassaundra/p2p-chat/internal/core/storage/engine"
)

// Engine 内存存储引擎
type Engine struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// 确保 Engine 实现了 engine.Engine 接口
var _ engine.Engine = (*Engine)(nil)

// New 创建内存引擎
func New() *Engine {
	return &Engine{data: make(map[string][]byte)}
}

// Get 读取键值
func (e *Engine) Get(key []byte) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, engine.ErrClosed
	}
	v, ok := e.data[string(key)]
	if !ok {
		return nil, engine.ErrKeyNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Put 写入键值
func (e *Engine) Put(key, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return engine.ErrClosed
	}
	v := make([]byte, len(value))
	copy(v, value)
	e.data[string(key)] = v
	return nil
}

// Has 检查键是否存在
func (e *Engine) Has(key []byte) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return false, engine.ErrClosed
	}
	_, ok := e.data[string(key)]
	return ok, nil
}

// Delete 删除键
func (e *Engine) Delete(key []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return engine.ErrClosed
	}
	delete(e.data, string(key))
	return nil
}

// Iterate 遍历具有指定前缀的键值对
//
// 按键的字典序遍历，保证确定性。
func (e *Engine) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return engine.ErrClosed
	}
	keys := make([]string, 0, len(e.data))
	for k := range e.data {
		if strings.HasPrefix(k, string(prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	snapshot := make(map[string][]byte, len(keys))
	for _, k := range keys {
		snapshot[k] = e.data[k]
	}
	e.mu.RUnlock()

	for _, k := range keys {
		if !fn([]byte(k), snapshot[k]) {
			return nil
		}
	}
	return nil
}

// Close 关闭引擎
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
