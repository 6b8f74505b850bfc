package app

import (
	"context"
	"fmt"

	rlcfg "replaylab/internal/config"
	cfgloader "replaylab/internal/config/loader"
	"replaylab/internal/content"
	"replaylab/internal/httpapi"
	"replaylab/internal/indicator"
	"replaylab/internal/logger"
	"replaylab/internal/session"
	"replaylab/internal/store/barstore"
	"replaylab/internal/store/gormstore"
)

// AppBuilder 负责按配置装配依赖。构造函数均可在测试中替换。
type AppBuilder struct {
	cfg *rlcfg.Config

	libraryFn func(string, bool) (*content.Library, error)
	coursesFn func(string) (*cfgloader.CourseLoader, error)
	resultsFn func(string) (*gormstore.GormStore, error)
	barsFn    func(string) (*barstore.Store, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *rlcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:       cfg,
		libraryFn: content.NewLibrary,
		coursesFn: cfgloader.NewCourseLoader,
		resultsFn: gormstore.NewGormStore,
		barsFn:    barstore.NewStore,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := b.cfg

	library, err := b.libraryFn(cfg.Practice.ScenarioDir, cfg.Practice.WatchScenarios)
	if err != nil {
		return nil, fmt.Errorf("初始化剧本库失败: %w", err)
	}

	// 课程预设可选：文件不存在只告警，不阻塞启动。
	var courses *cfgloader.CourseLoader
	if cfg.Practice.CoursesPath != "" {
		courses, err = b.coursesFn(cfg.Practice.CoursesPath)
		if err != nil {
			logger.Warnf("课程预设加载失败（忽略）: %v", err)
			courses = nil
		}
	}

	results, err := b.resultsFn(cfg.Store.ResultsPath)
	if err != nil {
		return nil, fmt.Errorf("初始化结果库失败: %w", err)
	}

	bars, err := b.barsFn(cfg.Store.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("初始化 K 线缓存失败: %w", err)
	}
	cacheScenarioBars(ctx, bars, library)

	sessions := session.NewManager()
	httpServer, err := httpapi.NewHTTPServer(httpapi.HTTPConfig{
		Addr:     cfg.App.HTTPAddr,
		Practice: cfg.Practice,
		Indicator: indicator.Settings{
			EMAFast: cfg.Indicator.EMAFast,
			EMASlow: cfg.Indicator.EMASlow,
		},
		ProfileBuckets: cfg.Indicator.VolumeProfileBuckets,
		Library:        library,
		Sessions:       sessions,
		Courses:        courses,
		Results:        results,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 HTTP 服务失败: %w", err)
	}

	app := &App{
		cfg:      cfg,
		http:     httpServer,
		sessions: sessions,
		closers:  []func() error{library.Close, results.Close, bars.Close},
	}
	logger.Infof("✓ 依赖装配完成（剧本=%d，HTTP=%s）", len(library.List()), cfg.App.HTTPAddr)
	return app, nil
}

// cacheScenarioBars 把剧本 K 线写入 SQLite 缓存，供外部工具与重复练习复用。
// 尽力而为：失败只告警。
func cacheScenarioBars(ctx context.Context, bars *barstore.Store, library *content.Library) {
	for _, sc := range library.List() {
		if _, err := bars.ImportBars(ctx, sc.ID, sc.Symbol, sc.ChartTimeframe, sc.Bars); err != nil {
			logger.Warnf("缓存剧本 K 线失败 scenario=%s: %v", sc.ID, err)
		}
	}
}
