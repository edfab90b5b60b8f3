package p2pchat

import (
	"fmt"
	"os"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/cassaundra/p2p-chat/config"
	"github.com/cassaundra/p2p-chat/internal/core/identity"
	"github.com/cassaundra/p2p-chat/internal/core/storage/engine"
	badgereng "github.com/cassaundra/p2p-chat/internal/core/storage/engine/badger"
	memoryeng "github.com/cassaundra/p2p-chat/internal/core/storage/engine/memory"
	"github.com/cassaundra/p2p-chat/internal/protocol/chat"
	"github.com/cassaundra/p2p-chat/internal/store"
	"github.com/cassaundra/p2p-chat/pkg/interfaces"
	"github.com/cassaundra/p2p-chat/pkg/lib/log"
)

var fxLogger = log.Logger("p2pchat/fx")

// buildFxApp 构建 Fx 应用
//
// 组装顺序（按依赖）：
//  1. Identity: 身份密钥加载或生成（Fx 之外预先完成，
//     路由中心注册端点时需要节点标识）
//  2. Storage: 存储引擎（BadgerDB / 内存）与分布式存储副本
//  3. Transport: 注入的传输或 loopback 端点
//  4. Protocol: 聊天协议服务
func buildFxApp(opts *nodeOptions, node *Node) (*fx.App, error) {
	if err := opts.config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	id, err := loadIdentity(opts.config)
	if err != nil {
		return nil, err
	}

	var transport interfaces.Transport
	switch {
	case opts.transport != nil:
		transport = opts.transport
	case opts.hub != nil:
		transport = opts.hub.Attach(id.PeerID())
	default:
		return nil, ErrNoTransport
	}

	modules := []fx.Option{
		fx.Supply(opts.config),
		fx.Supply(id),
		fx.Provide(provideEngine),
		fx.Provide(provideReplica),
		fx.Provide(func() interfaces.Transport { return transport }),

		chat.Module,

		fx.Populate(&node.identity, &node.replica, &node.service),

		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	}

	if opts.clock != nil {
		clk := opts.clock
		modules = append(modules, fx.Provide(func() clock.Clock { return clk }))
	}

	return fx.New(modules...), nil
}

// loadIdentity 按配置加载或生成身份
func loadIdentity(cfg *config.Config) (*identity.Identity, error) {
	if cfg.Identity.KeyFile == "" {
		return identity.Generate()
	}
	if !cfg.Identity.AutoGenerate {
		if _, err := os.Stat(cfg.Identity.KeyFile); err != nil {
			return nil, fmt.Errorf("key file: %w", err)
		}
	}
	return identity.LoadOrCreate(cfg.Identity.KeyFile)
}

// provideEngine 提供存储引擎
func provideEngine(cfg *config.Config) (engine.Engine, error) {
	if cfg.Storage.InMemory {
		fxLogger.Debug("using in-memory storage engine")
		return memoryeng.New(), nil
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	bcfg := badgereng.DefaultConfig(cfg.Storage.DBPath())
	bcfg.SyncWrites = cfg.Storage.SyncWrites
	eng, err := badgereng.New(bcfg)
	if err != nil {
		return nil, fmt.Errorf("open badger engine: %w", err)
	}
	fxLogger.Info("opened badger engine", "path", cfg.Storage.DBPath())
	return eng, nil
}

// provideReplica 提供分布式存储副本
//
// 副本与底层引擎在应用停止时按依赖逆序关闭。
func provideReplica(lc fx.Lifecycle, eng engine.Engine) (*store.Replica, interfaces.Store) {
	r := store.New(eng)
	lc.Append(fx.StopHook(func() error {
		if err := r.Close(); err != nil {
			return err
		}
		return eng.Close()
	}))
	return r, r
}
