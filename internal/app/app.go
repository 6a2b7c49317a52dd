package app

import (
	"context"
	"fmt"

	scfg "scalpel/internal/config"
	"scalpel/internal/logger"
	"scalpel/internal/profile"
	resthttp "scalpel/internal/transport/http/rest"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动扫描与 REST 服务。
type App struct {
	cfg      *scfg.Config
	service  *Service
	restHTTP *resthttp.Server
	profiles *profile.Registry
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *scfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动周期扫描与 REST 服务。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.service == nil {
		return fmt.Errorf("run service not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)

	if a.restHTTP != nil {
		group.Go(func() error {
			logger.Infof("✓ REST 服务监听 %s", a.restHTTP.Addr())
			if err := a.restHTTP.Start(ctx); err != nil {
				return fmt.Errorf("rest http server error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		return a.service.Run(ctx)
	})

	return group.Wait()
}

// Service exposes the underlying run service instance (for testing harnesses).
func (a *App) Service() *Service {
	if a == nil {
		return nil
	}
	return a.service
}
