package watcher

import (
	"context"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/packserve/packserve/internal/cache"
	"github.com/packserve/packserve/internal/config"
	"github.com/packserve/packserve/internal/events"
	"github.com/packserve/packserve/internal/fileutil"
)

// ConfigWatcher 监听配置文件变化并执行协调换新：暂停重扫 → 计算命名空间
// 增/改/删集合 → 原子替换配置 → 重建路径缓存 → 恢复重扫 → 按需补扫。
// 解析失败时保留旧配置。
type ConfigWatcher struct {
	shared *config.Shared
	path   string
	cache  *cache.Manager
	bus    *events.Bus
	logger *logrus.Logger
}

// New 构造配置监听器。
func New(shared *config.Shared, path string, manager *cache.Manager, bus *events.Bus, logger *logrus.Logger) *ConfigWatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ConfigWatcher{
		shared: shared,
		path:   path,
		cache:  manager,
		bus:    bus,
		logger: logger,
	}
}

// Run 阻塞运行监听循环，直到 shutdown 关闭。配置热更新被禁用时直接返回。
func (w *ConfigWatcher) Run(shutdown <-chan struct{}) {
	cfg := w.shared.Get()
	if !cfg.HotReload.Config.Enabled {
		w.logger.Info("配置热更新已禁用")
		return
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.WithError(err).Error("创建配置监听器失败")
		return
	}
	defer fsWatcher.Close()

	if err := fsWatcher.Add(w.path); err != nil {
		w.logger.WithField("path", w.path).WithError(err).Error("监听配置文件失败")
		return
	}

	// 事件经有界通道送入主循环；通道满时发送端阻塞形成背压。
	reloadCh := make(chan struct{}, cfg.Cache.ConfigReloadChannelSize)
	go w.pumpEvents(fsWatcher, reloadCh, shutdown)

	for {
		select {
		case <-shutdown:
			return
		case <-reloadCh:
			w.debounce(shutdown)
			w.drain(reloadCh)
			w.reload()
		}
	}
}

func (w *ConfigWatcher) pumpEvents(fsWatcher *fsnotify.Watcher, reloadCh chan<- struct{}, shutdown <-chan struct{}) {
	for {
		select {
		case <-shutdown:
			return
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			select {
			case reloadCh <- struct{}{}:
			case <-shutdown:
				return
			}
		case watchErr, ok := <-fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(watchErr).Warn("配置监听错误")
		}
	}
}

func (w *ConfigWatcher) debounce(shutdown <-chan struct{}) {
	debounceMs := w.shared.Get().HotReload.Config.DebounceMs
	select {
	case <-time.After(time.Duration(debounceMs) * time.Millisecond):
	case <-shutdown:
	}
}

func (w *ConfigWatcher) drain(reloadCh <-chan struct{}) {
	for {
		select {
		case <-reloadCh:
		default:
			return
		}
	}
}

// reload 执行一次协调换新。步骤 7/8 的补扫在不持有任何锁的情况下做 I/O。
func (w *ConfigWatcher) reload() {
	if _, err := os.Stat(w.path); err != nil {
		w.logger.Warn("配置文件不存在，忽略本次变更事件")
		return
	}

	newCfg, err := config.Load(w.path)
	if err != nil {
		w.bus.Emit(events.ConfigError{Err: err.Error()})
		return
	}

	w.cache.PauseRescan()

	oldCfg := w.shared.Get()
	added, removed, modified := diffServers(oldCfg.Servers, newCfg.Servers)

	w.shared.Replace(newCfg)
	w.cache.RebuildServerPathCache()
	w.cache.ResumeRescan()

	w.bus.Emit(events.ConfigReloaded{})

	ctx := context.Background()

	for _, name := range modified {
		if err := w.cache.ForceRescan(ctx, name); err != nil {
			w.logger.WithField("server", name).WithError(err).Warn("变更命名空间补扫失败")
		}
	}

	for _, serverCfg := range added {
		if !serverCfg.Enabled {
			continue
		}
		w.bus.Emit(events.NewServerDetected{Name: serverCfg.Name})

		if _, err := fileutil.EnsureServerStructure(newCfg.Server.BasePath, serverCfg.Name); err != nil {
			w.logger.WithField("server", serverCfg.Name).WithError(err).Error("创建命名空间目录失败")
		}
		if err := w.cache.ForceRescan(ctx, serverCfg.Name); err != nil {
			w.logger.WithField("server", serverCfg.Name).WithError(err).Warn("新命名空间扫描失败")
		}
	}

	for _, name := range removed {
		w.bus.Emit(events.ServerRemoved{Name: name})
	}
}

// diffServers 按名称求 added/removed，modified 为同名但任一字段变化的集合。
func diffServers(oldServers, newServers []config.ServerConfig) (added []config.ServerConfig, removed, modified []string) {
	oldByName := make(map[string]config.ServerConfig, len(oldServers))
	for _, s := range oldServers {
		oldByName[s.Name] = s
	}
	newByName := make(map[string]config.ServerConfig, len(newServers))
	for _, s := range newServers {
		newByName[s.Name] = s
	}

	for _, s := range newServers {
		old, ok := oldByName[s.Name]
		if !ok {
			added = append(added, s)
			continue
		}
		if old.FieldsChanged(s) {
			modified = append(modified, s.Name)
		}
	}
	for _, s := range oldServers {
		if _, ok := newByName[s.Name]; !ok {
			removed = append(removed, s.Name)
		}
	}
	return added, removed, modified
}
