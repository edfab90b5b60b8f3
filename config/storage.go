package config

import (
	"fmt"
	"path/filepath"
)

// StorageConfig 存储配置
//
// 配置节点的数据存储目录。持久化统一使用 BadgerDB，
// 通过 Key 前缀隔离不同组件的数据。
//
// 数据目录结构：
//
//	${DataDir}/
//	├── chat.db/            # BadgerDB 主数据库
//	└── identity.key        # 身份密钥种子（若启用持久化身份）
type StorageConfig struct {
	// DataDir 数据目录路径
	// 默认值: "./data"
	DataDir string `json:"data_dir"`

	// InMemory 使用内存存储引擎，不落盘
	// 适用于测试与一次性会话
	InMemory bool `json:"in_memory"`

	// SyncWrites 每次写入同步刷盘
	SyncWrites bool `json:"sync_writes"`
}

// DefaultStorageConfig 返回默认的存储配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		DataDir:    "./data",
		InMemory:   false,
		SyncWrites: false,
	}
}

// Validate 验证存储配置的有效性
func (c *StorageConfig) Validate() error {
	if !c.InMemory && c.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}
	return nil
}

// DBPath 返回 BadgerDB 数据库路径
func (c *StorageConfig) DBPath() string {
	return filepath.Join(c.DataDir, "chat.db")
}

// KeyPath 返回身份密钥文件的默认路径
func (c *StorageConfig) KeyPath() string {
	return filepath.Join(c.DataDir, "identity.key")
}
