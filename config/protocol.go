package config

import (
	"errors"
	"time"
)

// ProtocolConfig 聊天协议配置
//
// 控制入站信封验证与服务内部缓冲的参数。
type ProtocolConfig struct {
	// StaleWindow 信封时间戳允许落后本地时钟的最大窗口
	// 超过该窗口的信封被拒绝
	StaleWindow Duration `json:"stale_window"`

	// FutureSkew 信封时间戳允许超前本地时钟的最大偏差
	FutureSkew Duration `json:"future_skew"`

	// SeenCacheSize 已处理信封去重缓存的容量
	SeenCacheSize int `json:"seen_cache_size"`

	// EventBuffer 事件通道缓冲区大小
	EventBuffer int `json:"event_buffer"`
}

// DefaultProtocolConfig 返回默认聊天协议配置
func DefaultProtocolConfig() ProtocolConfig {
	return ProtocolConfig{
		StaleWindow:   Duration(10 * time.Minute),
		FutureSkew:    Duration(2 * time.Minute),
		SeenCacheSize: 1024,
		EventBuffer:   256,
	}
}

// Validate 验证聊天协议配置
func (c ProtocolConfig) Validate() error {
	if c.StaleWindow < 0 {
		return errors.New("stale_window must not be negative")
	}
	if c.FutureSkew < 0 {
		return errors.New("future_skew must not be negative")
	}
	if c.SeenCacheSize < 0 {
		return errors.New("seen_cache_size must not be negative")
	}
	if c.EventBuffer < 0 {
		return errors.New("event_buffer must not be negative")
	}
	return nil
}
