// Package kv 提供带前缀隔离的 KV 存储抽象层
//
// Store 在底层存储引擎之上提供命名空间隔离，
// 每个组件可以使用不同的前缀来隔离数据。
//
// # 键空间设计
//
// p2p-chat 使用以下前缀约定：
//   - s/ - 分布式存储本地副本（其下再按 channel/、nick/ 细分）
//   - i/ - 本地身份与节点元数据
package kv

import (
	"github.com/cassaundra/p2p-chat/internal/core/storage/engine"
)

// Store 带前缀隔离的 KV 存储
//
// Store 封装底层存储引擎，为所有键自动添加前缀，
// 实现数据命名空间隔离。
type Store struct {
	engine engine.Engine
	prefix []byte
}

// New 创建新的 Store
//
// 参数:
//   - eng: 底层存储引擎
//   - prefix: 键前缀（所有操作自动添加此前缀）
func New(eng engine.Engine, prefix []byte) *Store {
	return &Store{
		engine: eng,
		prefix: prefix,
	}
}

// prefixKey 为键添加前缀
func (s *Store) prefixKey(key []byte) []byte {
	if len(s.prefix) == 0 {
		return key
	}
	prefixed := make([]byte, len(s.prefix)+len(key))
	copy(prefixed, s.prefix)
	copy(prefixed[len(s.prefix):], key)
	return prefixed
}

// Get 读取键值
func (s *Store) Get(key []byte) ([]byte, error) {
	return s.engine.Get(s.prefixKey(key))
}

// Put 写入键值
func (s *Store) Put(key, value []byte) error {
	return s.engine.Put(s.prefixKey(key), value)
}

// Has 检查键是否存在
func (s *Store) Has(key []byte) (bool, error) {
	return s.engine.Has(s.prefixKey(key))
}

// Iterate 遍历本命名空间内具有指定前缀的键值对
//
// 回调收到的键已去除命名空间前缀。
func (s *Store) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	full := s.prefixKey(prefix)
	return s.engine.Iterate(full, func(key, value []byte) bool {
		return fn(key[len(s.prefix):], value)
	})
}
