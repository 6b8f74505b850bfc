package content

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"replaylab/internal/logger"
	"replaylab/internal/market"

	"github.com/fsnotify/fsnotify"
)

// Library 是剧本的内存集合，支持目录重载与可选的文件系统热更新。
type Library struct {
	dir string

	mu        sync.RWMutex
	scenarios map[string]*market.Scenario

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewLibrary 扫描目录建立剧本库。watch 为 true 时监听目录变更并自动重载。
func NewLibrary(dir string, watch bool) (*Library, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("scenario library requires dir")
	}
	lib := &Library{dir: dir, scenarios: make(map[string]*market.Scenario)}
	if err := lib.Reload(); err != nil {
		return nil, err
	}
	if watch {
		if err := lib.startWatch(); err != nil {
			return nil, err
		}
	}
	return lib, nil
}

// Reload 全量重扫目录，以新集合原子替换旧集合。
func (l *Library) Reload() error {
	scenarios, err := LoadScenarioDir(l.dir)
	if err != nil {
		return err
	}
	next := make(map[string]*market.Scenario, len(scenarios))
	for _, sc := range scenarios {
		if _, dup := next[sc.ID]; dup {
			logger.Warnf("剧本 ID 重复: %s，后者覆盖前者", sc.ID)
		}
		next[sc.ID] = sc
	}
	l.mu.Lock()
	l.scenarios = next
	l.mu.Unlock()
	logger.Infof("Scenario library loaded %d scenarios from %s", len(next), l.dir)
	return nil
}

// Get 按 ID 取剧本。
func (l *Library) Get(id string) (*market.Scenario, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sc, ok := l.scenarios[strings.TrimSpace(id)]
	return sc, ok
}

// List 返回按 ID 排序的剧本列表。
func (l *Library) List() []*market.Scenario {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*market.Scenario, 0, len(l.scenarios))
	for _, sc := range l.scenarios {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (l *Library) startWatch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("scenario watcher failed: %w", err)
	}
	if err := w.Add(l.dir); err != nil {
		w.Close()
		return fmt.Errorf("watch scenario dir failed: %w", err)
	}
	l.watcher = w
	l.done = make(chan struct{})
	go l.watchLoop()
	return nil
}

func (l *Library) watchLoop() {
	for {
		select {
		case evt, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !strings.HasSuffix(strings.ToLower(evt.Name), ".json") {
				continue
			}
			if err := l.Reload(); err != nil {
				logger.Errorf("scenario reload failed (%s): %v", evt.Name, err)
			}
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("scenario watcher error: %v", err)
		case <-l.done:
			return
		}
	}
}

// Close 停止热更新监听。
func (l *Library) Close() error {
	if l.watcher == nil {
		return nil
	}
	close(l.done)
	return l.watcher.Close()
}
