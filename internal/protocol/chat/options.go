package chat

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Config 聊天服务配置
type Config struct {
	// StaleWindow 允许的最大消息年龄
	StaleWindow time.Duration

	// FutureSkew 允许的最大未来时钟偏移
	FutureSkew time.Duration

	// SeenCacheSize 已见信封去重缓存的容量
	SeenCacheSize int

	// EventBuffer 事件通道缓冲大小
	EventBuffer int
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		StaleWindow:   DefaultStaleWindow,
		FutureSkew:    DefaultFutureSkew,
		SeenCacheSize: 1024,
		EventBuffer:   256,
	}
}

// Option 服务配置选项
type Option func(*options)

type options struct {
	config *Config
	clock  clock.Clock
}

// WithConfig 使用指定配置
func WithConfig(cfg *Config) Option {
	return func(o *options) {
		if cfg != nil {
			o.config = cfg
		}
	}
}

// WithFreshnessWindow 调整新鲜度窗口
func WithFreshnessWindow(staleWindow, futureSkew time.Duration) Option {
	return func(o *options) {
		if staleWindow > 0 {
			o.config.StaleWindow = staleWindow
		}
		if futureSkew > 0 {
			o.config.FutureSkew = futureSkew
		}
	}
}

// WithClock 注入时钟（测试用）
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clock = clk
	}
}
