// Package engine 定义存储引擎的内部接口
//
// 提供本地键值存储的最小抽象，有两个实现：
//
//   - memory: 纯内存实现，测试与演示使用
//   - badger: BadgerDB 持久化实现，生产使用
//
// # 线程安全
//
// 所有接口实现必须保证线程安全。
package engine

import "errors"

// 错误定义
var (
	// ErrKeyNotFound 键不存在
	ErrKeyNotFound = errors.New("engine: key not found")

	// ErrClosed 引擎已关闭
	ErrClosed = errors.New("engine: already closed")
)

// Engine 存储引擎接口
type Engine interface {
	// Get 读取键值
	//
	// 键不存在时返回 ErrKeyNotFound。
	Get(key []byte) ([]byte, error)

	// Put 写入键值
	Put(key, value []byte) error

	// Has 检查键是否存在
	Has(key []byte) (bool, error)

	// Delete 删除键
	//
	// 仅供引擎维护使用；协议层的键空间是只增的，
	// 核心代码不经由本方法删除任何协议状态。
	Delete(key []byte) error

	// Iterate 遍历具有指定前缀的键值对
	//
	// fn 返回 false 时提前停止遍历。回调期间传入的
	// key/value 切片只在当次调用内有效。
	Iterate(prefix []byte, fn func(key, value []byte) bool) error

	// Close 关闭引擎
	Close() error
}
