package loader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"replaylab/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// CourseDefinition 描述一条练习课程：一组按顺序推进的剧本以及课程级默认参数。
type CourseDefinition struct {
	Name        string   `mapstructure:"-" yaml:"-"`
	Title       string   `mapstructure:"title" yaml:"title"`
	Description string   `mapstructure:"description" yaml:"description"`
	Scenarios   []string `mapstructure:"scenarios" yaml:"scenarios"`
	// Speed 为课程默认回放倍速，0 表示沿用全局默认。
	Speed   float64 `mapstructure:"speed" yaml:"speed"`
	RiskPct float64 `mapstructure:"risk_pct" yaml:"risk_pct"`
	Default bool    `mapstructure:"default" yaml:"default"`
}

// FileConfig 是完整的课程配置文件结构。
type FileConfig struct {
	Courses map[string]CourseDefinition `mapstructure:"courses" yaml:"courses"`
}

// CourseSnapshot 对外暴露的只读快照。
type CourseSnapshot struct {
	Version  int64
	LoadedAt time.Time
	Courses  map[string]CourseDefinition
}

// ChangeListener 在课程配置变更时被调用。
type ChangeListener func(CourseSnapshot)

// CourseLoader 从 YAML 文件加载课程预设，并监听热更新。
type CourseLoader struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  CourseSnapshot
	listeners []ChangeListener
}

// NewCourseLoader 读取课程文件并开始监听 FS 事件。
func NewCourseLoader(path string) (*CourseLoader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("course loader requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read course config failed: %w", err)
	}
	l := &CourseLoader{path: path, v: v}
	if err := l.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := l.reload(); err != nil {
			logger.Errorf("course reload failed (%s): %v", evt.Name, err)
			return
		}
		l.notify()
	})
	v.WatchConfig()
	return l, nil
}

// Snapshot 返回当前课程快照（深拷贝）。
func (l *CourseLoader) Snapshot() CourseSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneSnapshot(l.snapshot)
}

// Course 按名称查找课程。
func (l *CourseLoader) Course(name string) (CourseDefinition, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	def, ok := l.snapshot.Courses[strings.TrimSpace(name)]
	return def, ok
}

// Subscribe 注册监听器，并立即收到一次完整快照。
func (l *CourseLoader) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	snap := cloneSnapshot(l.snapshot)
	l.mu.Unlock()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("course listener panic: %v", r)
			}
		}()
		fn(snap)
	}()
}

func (l *CourseLoader) notify() {
	l.mu.RLock()
	snap := cloneSnapshot(l.snapshot)
	listeners := append([]ChangeListener(nil), l.listeners...)
	l.mu.RUnlock()
	for _, fn := range listeners {
		if fn == nil {
			continue
		}
		go func(cb ChangeListener) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("course listener panic: %v", r)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func (l *CourseLoader) reload() error {
	// 先用严格模式预解析一次，未知字段直接报错，避免拼写错误静默丢失。
	fileCfg, err := readCourseFile(l.path)
	if err != nil {
		return err
	}
	normalized := make(map[string]CourseDefinition, len(fileCfg.Courses))
	for name, def := range fileCfg.Courses {
		normalized[name] = normalizeCourseDefinition(name, def)
	}
	l.mu.Lock()
	l.snapshot = CourseSnapshot{
		Version:  l.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Courses:  normalized,
	}
	l.mu.Unlock()
	logger.Infof("Course loader reloaded %d courses from %s", len(normalized), filepath.Base(l.path))
	return nil
}

func readCourseFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read course config failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse course config failed: %w", err)
	}
	return cfg, nil
}

func normalizeCourseDefinition(name string, def CourseDefinition) CourseDefinition {
	def.Name = strings.TrimSpace(name)
	def.Title = strings.TrimSpace(def.Title)
	if def.Title == "" {
		def.Title = def.Name
	}
	def.Scenarios = normalizeScenarioIDs(def.Scenarios)
	if def.Speed < 0 {
		def.Speed = 0
	}
	if def.RiskPct < 0 {
		def.RiskPct = 0
	}
	return def
}

func normalizeScenarioIDs(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, id := range in {
		norm := strings.TrimSpace(id)
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}

func cloneSnapshot(src CourseSnapshot) CourseSnapshot {
	dst := CourseSnapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Courses:  make(map[string]CourseDefinition, len(src.Courses)),
	}
	for name, def := range src.Courses {
		dst.Courses[name] = def
	}
	return dst
}
