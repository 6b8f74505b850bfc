package app

import (
	"context"
	"fmt"

	rlcfg "replaylab/internal/config"
	"replaylab/internal/httpapi"
	"replaylab/internal/logger"
	"replaylab/internal/session"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动练习服务。
type App struct {
	cfg      *rlcfg.Config
	http     *httpapi.HTTPServer
	sessions *session.Manager
	closers  []func() error
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *rlcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动 HTTP 服务，ctx 取消时回收全部会话与存储连接。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.http == nil {
		return fmt.Errorf("http server not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.http.Start(ctx); err != nil {
			return fmt.Errorf("practice http server error: %w", err)
		}
		return nil
	})
	err := group.Wait()
	a.shutdown()
	return err
}

func (a *App) shutdown() {
	if a.sessions != nil {
		a.sessions.CloseAll()
	}
	for _, fn := range a.closers {
		if fn == nil {
			continue
		}
		if err := fn(); err != nil {
			logger.Warnf("资源释放失败: %v", err)
		}
	}
}
