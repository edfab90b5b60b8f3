package p2pchat

import (
	"errors"

	"github.com/benbjohnson/clock"

	"github.com/cassaundra/p2p-chat/config"
	"github.com/cassaundra/p2p-chat/internal/transport/loopback"
	"github.com/cassaundra/p2p-chat/pkg/interfaces"
)

// Option 用户配置选项函数
type Option func(*nodeOptions) error

// nodeOptions 内部选项结构
type nodeOptions struct {
	config *config.Config

	// 传输来源二选一：显式实例或路由中心
	transport interfaces.Transport
	hub       *loopback.Hub

	clock    clock.Clock
	nickname string
}

// defaultNodeOptions 返回默认选项
func defaultNodeOptions() *nodeOptions {
	return &nodeOptions{
		config: config.NewConfig(),
	}
}

// WithConfig 使用完整配置
func WithConfig(cfg *config.Config) Option {
	return func(o *nodeOptions) error {
		if cfg == nil {
			return errors.New("config must not be nil")
		}
		o.config = cfg
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载配置
func WithConfigFile(path string) Option {
	return func(o *nodeOptions) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		o.config = cfg
		return nil
	}
}

// WithDataDir 设置数据目录
func WithDataDir(dir string) Option {
	return func(o *nodeOptions) error {
		if dir == "" {
			return errors.New("data dir must not be empty")
		}
		o.config.Storage.DataDir = dir
		return nil
	}
}

// WithInMemory 使用内存存储引擎，不落盘
func WithInMemory() Option {
	return func(o *nodeOptions) error {
		o.config.Storage.InMemory = true
		return nil
	}
}

// WithKeyFile 设置身份密钥文件路径
func WithKeyFile(path string) Option {
	return func(o *nodeOptions) error {
		o.config.Identity.KeyFile = path
		return nil
	}
}

// WithTransport 使用外部传输实现
func WithTransport(t interfaces.Transport) Option {
	return func(o *nodeOptions) error {
		if t == nil {
			return errors.New("transport must not be nil")
		}
		o.transport = t
		return nil
	}
}

// WithHub 接入进程内路由中心
//
// 节点启动时以自身标识向中心注册端点。
// 与 WithTransport 互斥。
func WithHub(hub *loopback.Hub) Option {
	return func(o *nodeOptions) error {
		if hub == nil {
			return errors.New("hub must not be nil")
		}
		o.hub = hub
		return nil
	}
}

// WithClock 注入时钟（测试用）
func WithClock(clk clock.Clock) Option {
	return func(o *nodeOptions) error {
		o.clock = clk
		return nil
	}
}

// WithNickname 设置启动后自动发布的昵称
func WithNickname(nickname string) Option {
	return func(o *nodeOptions) error {
		o.nickname = nickname
		return nil
	}
}
