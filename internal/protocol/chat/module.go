package chat

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/cassaundra/p2p-chat/config"
	"github.com/cassaundra/p2p-chat/internal/core/identity"
	"github.com/cassaundra/p2p-chat/pkg/interfaces"
)

// Module 返回 Fx 模块
var Module = fx.Module("protocol/chat",
	fx.Provide(ProvideService),
	fx.Invoke(registerLifecycle),
)

// ModuleInput Fx 输入参数
type ModuleInput struct {
	fx.In
	Identity   *identity.Identity
	Transport  interfaces.Transport
	Store      interfaces.Store
	Clock      clock.Clock    `optional:"true"`
	UnifiedCfg *config.Config `optional:"true"`
}

// ConfigFromUnified 从统一配置创建聊天协议配置
func ConfigFromUnified(cfg *config.Config) *Config {
	if cfg == nil {
		return DefaultConfig()
	}
	out := DefaultConfig()
	if cfg.Protocol.StaleWindow > 0 {
		out.StaleWindow = cfg.Protocol.StaleWindow.Duration()
	}
	if cfg.Protocol.FutureSkew > 0 {
		out.FutureSkew = cfg.Protocol.FutureSkew.Duration()
	}
	if cfg.Protocol.SeenCacheSize > 0 {
		out.SeenCacheSize = cfg.Protocol.SeenCacheSize
	}
	if cfg.Protocol.EventBuffer > 0 {
		out.EventBuffer = cfg.Protocol.EventBuffer
	}
	return out
}

// ProvideService 提供聊天服务
func ProvideService(input ModuleInput) (*Service, error) {
	opts := []Option{WithConfig(ConfigFromUnified(input.UnifiedCfg))}
	if input.Clock != nil {
		opts = append(opts, WithClock(input.Clock))
	}
	return NewService(input.Identity, input.Transport, input.Store, opts...)
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return svc.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return svc.Stop()
		},
	})
}
