package config

import (
	"errors"
)

// IdentityConfig 身份配置
//
// 管理节点的身份标识和密钥。协议使用 Ed25519 签名，
// 节点标识由公钥直接导出。
type IdentityConfig struct {
	// KeyFile 密钥种子文件路径
	// 如果为空，将在内存中生成临时密钥
	// 生产环境建议持久化存储
	KeyFile string `json:"key_file"`

	// AutoGenerate 当密钥文件不存在时是否自动生成
	AutoGenerate bool `json:"auto_generate"`
}

// DefaultIdentityConfig 返回默认身份配置
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{
		KeyFile:      "",
		AutoGenerate: true,
	}
}

// Validate 验证身份配置
func (c IdentityConfig) Validate() error {
	if c.KeyFile == "" && !c.AutoGenerate {
		return errors.New("key_file is empty and auto_generate is disabled")
	}
	return nil
}
