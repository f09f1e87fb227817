package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/packserve/packserve/internal/config"
	"github.com/packserve/packserve/internal/events"
	"github.com/packserve/packserve/internal/fileutil"
	"github.com/packserve/packserve/internal/logging"
	"github.com/packserve/packserve/internal/metadata"
	"github.com/packserve/packserve/internal/scanner"
	"github.com/packserve/packserve/internal/storage"
)

// cloudSyncConcurrency 限制单次 rescan 内并行的上传/删除数。
const cloudSyncConcurrency = 8

// RescanOrchestrator 驱动命名空间的周期/事件式重扫。rescan_interval > 0 时
// 走定时轮询；为 0 时注册文件系统监听并在防抖窗口后按命名空间分发。
// 通过 SnapshotUpdater 发布快照，不反向持有 Manager。
type RescanOrchestrator struct {
	cache       SnapshotUpdater
	lastUpdated *timestampStore
	shared      *config.Shared
	bus         *events.Bus
	storage     storage.Backend
	cloudflare  *CloudflareClient
	pathCache   *ServerPathCache
	logger      *logrus.Logger

	paused atomic.Bool
}

// NewRescanOrchestrator 组装重扫调度器；cloudflare 为 nil 时跳过 CDN 清理。
func NewRescanOrchestrator(
	updater SnapshotUpdater,
	lastUpdated *timestampStore,
	shared *config.Shared,
	bus *events.Bus,
	backend storage.Backend,
	cloudflare *CloudflareClient,
	pathCache *ServerPathCache,
	logger *logrus.Logger,
) *RescanOrchestrator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RescanOrchestrator{
		cache:       updater,
		lastUpdated: lastUpdated,
		shared:      shared,
		bus:         bus,
		storage:     backend,
		cloudflare:  cloudflare,
		pathCache:   pathCache,
		logger:      logger,
	}
}

// Pause 暂停重扫分发。返回后不会再有新的 rescan 迭代启动，直到 Resume。
func (o *RescanOrchestrator) Pause() {
	o.paused.Store(true)
	o.logger.Debug("rescan paused")
}

// Resume 恢复重扫分发。
func (o *RescanOrchestrator) Resume() {
	o.paused.Store(false)
	o.logger.Debug("rescan resumed")
}

// RunLoop 按配置进入轮询或事件模式，直到 shutdown 关闭。
func (o *RescanOrchestrator) RunLoop(shutdown <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-shutdown
		cancel()
	}()

	interval := o.shared.Get().Cache.RescanInterval
	if interval == 0 {
		o.bus.Emit(events.ContinuousScanEnabled{})
		o.runWatcherLoop(ctx, shutdown)
		return
	}

	o.bus.Emit(events.AutoScanEnabled{Interval: interval})
	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-shutdown:
			return
		case <-ticker.C:
			if o.paused.Load() {
				continue
			}
			cfg := o.shared.Get()
			for _, serverCfg := range cfg.EnabledServers() {
				o.rescanServer(ctx, serverCfg, cfg)
			}
		}
	}
}

// runWatcherLoop 监听所有启用命名空间的目录树，事件防抖后按归属命名空间
// 分发 rescan。暂停期间事件仍被收集与防抖，但不派发。
func (o *RescanOrchestrator) runWatcherLoop(ctx context.Context, shutdown <-chan struct{}) {
	cfg := o.shared.Get()
	if !cfg.HotReload.Files.Enabled {
		o.logger.Warn("文件热更新被禁用，事件驱动模式不会监听目录变化")
		<-shutdown
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		o.logger.WithError(err).Error("创建文件监听器失败")
		return
	}
	defer watcher.Close()

	for _, serverCfg := range cfg.EnabledServers() {
		dir := fileutil.BuildServerPath(cfg.Server.BasePath, serverCfg.Name)
		if err := o.watchRecursive(watcher, dir); err != nil {
			o.logger.WithFields(logrus.Fields{
				"action": "watch_server",
				"server": serverCfg.Name,
			}).WithError(err).Warn("监听命名空间目录失败")
		}
	}

	debounce := time.Duration(cfg.HotReload.Files.DebounceMs) * time.Millisecond
	pending := make(map[string]struct{})
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	timerArmed := false

	for {
		select {
		case <-shutdown:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			// 新建目录纳入监听，保持递归覆盖。
			if event.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					_ = o.watchRecursive(watcher, event.Name)
				}
			}

			if server, ok := o.pathCache.FindServer(event.Name); ok {
				pending[server] = struct{}{}
			}

			if timerArmed && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(debounce)
			timerArmed = true

		case <-timer.C:
			timerArmed = false
			if o.paused.Load() {
				// 暂停中：保留待处理集合，稍后重试。
				timer.Reset(debounce)
				timerArmed = true
				continue
			}
			if len(pending) == 0 {
				continue
			}

			current := o.shared.Get()
			for server := range pending {
				serverCfg, found := current.FindServer(server)
				if !found || !serverCfg.Enabled {
					continue
				}
				o.logger.WithFields(logrus.Fields{
					"action": "file_change_rescan",
					"server": server,
				}).Debug("检测到文件变化，触发重扫")
				o.rescanServer(ctx, serverCfg, current)
			}
			pending = make(map[string]struct{})

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return
			}
			o.logger.WithError(watchErr).Warn("文件监听错误")
		}
	}
}

func (o *RescanOrchestrator) watchRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if addErr := watcher.Add(path); addErr != nil {
				o.logger.WithField("path", path).WithError(addErr).Debug("add watch failed")
			}
		}
		return nil
	})
}

// rescanServer 对单个命名空间做静默扫描并在有差异时更新缓存。
func (o *RescanOrchestrator) rescanServer(ctx context.Context, serverCfg config.ServerConfig, cfg *config.Config) {
	sc := scanner.New(o.storage, cfg.Server.BasePath, cfg.Cache.Batch, cfg.Cache.ChecksumBufferSize, o.logger, nil)
	builder, err := sc.ScanServerSilent(ctx, serverCfg)
	if err != nil {
		// 目录可能尚未就绪或被移除，留给下一轮。
		o.logger.WithField("server", serverCfg.Name).WithError(err).Debug("silent scan failed")
		return
	}
	o.updateCacheIfChanged(ctx, serverCfg, builder, cfg)
}

// updateCacheIfChanged 计算差异；为空只发 unchanged 事件，否则按顺序执行
// 云同步 → 索引构建/增量应用 → 快照发布 → 时间戳 → CDN 清理 → 事件。
func (o *RescanOrchestrator) updateCacheIfChanged(ctx context.Context, serverCfg config.ServerConfig, next *metadata.VersionBuilder, cfg *config.Config) {
	name := serverCfg.Name
	old, hasOld := o.cache.Get(name)

	var oldRef *metadata.VersionBuilder
	if hasOld {
		oldRef = old
	}
	diff := ComputeDiff(name, oldRef, next)

	if diff.Empty() {
		o.bus.Emit(events.CacheUnchanged{Server: name})
		return
	}

	if o.storage.IsRemote() {
		o.syncCloudStorage(ctx, name, diff, cfg.Server.BasePath)
	}

	if !hasOld {
		next.BuildResolutionIndex()
	} else {
		next.CopyResolutionFrom(old)
		diff.Apply(next)
	}

	o.cache.Insert(name, next)
	o.lastUpdated.Set(name, currentTimestamp())

	o.purgeCDN(ctx, cfg, name)

	if !hasOld {
		o.bus.Emit(events.CacheNew{Server: name})
	} else {
		o.bus.Emit(events.CacheUpdated{
			Server:   name,
			Added:    len(diff.Added),
			Modified: len(diff.Modified),
			Removed:  len(diff.Removed),
		})
	}
}

func (o *RescanOrchestrator) purgeCDN(ctx context.Context, cfg *config.Config, name string) {
	if o.cloudflare == nil || !cfg.Cloudflare.Enabled || !cfg.Cloudflare.PurgeOnUpdate {
		return
	}
	if err := o.cloudflare.PurgeServer(ctx, name); err != nil {
		o.logger.WithField("server", name).WithError(err).Warn("CDN 清理失败")
	}
}

// syncCloudStorage 并行上传新增/修改并删除已移除的对象。单项失败只记日志，
// 本地文件系统始终是内容权威；所有操作完成后才返回，保证发布顺序。
func (o *RescanOrchestrator) syncCloudStorage(ctx context.Context, server string, diff *FileDiff, basePath string) {
	fields := logging.RescanFields(server, len(diff.Added), len(diff.Modified), len(diff.Removed))
	fields["action"] = "cloud_sync"
	o.logger.WithFields(fields).Info("开始同步对象存储")

	p := pool.New().WithMaxGoroutines(cloudSyncConcurrency)

	upload := func(change FileChange) {
		localPath := filepath.Join(basePath, filepath.FromSlash(change.LocalPath))
		p.Go(func() {
			if _, err := o.storage.UploadFile(ctx, localPath, change.RemoteKey); err != nil {
				o.logger.WithField("key", change.RemoteKey).WithError(err).Warn("上传失败")
			}
		})
	}
	for _, change := range diff.Added {
		upload(change)
	}
	for _, change := range diff.Modified {
		upload(change)
	}
	for _, change := range diff.Removed {
		change := change
		p.Go(func() {
			if err := o.storage.DeleteFile(ctx, change.RemoteKey); err != nil {
				o.logger.WithField("key", change.RemoteKey).WithError(err).Warn("删除失败")
			}
		})
	}

	p.Wait()
}

// ScanAllServers 并发扫描所有启用的命名空间并发布快照。单个命名空间扫描
// 失败时发布空快照兜底，保证元数据端点立即可用。
func (o *RescanOrchestrator) ScanAllServers(ctx context.Context) error {
	cfg := o.shared.Get()
	sc := scanner.New(o.storage, cfg.Server.BasePath, cfg.Cache.Batch, cfg.Cache.ChecksumBufferSize, o.logger, o.bus)

	p := pool.New().WithContext(ctx)
	for _, serverCfg := range cfg.EnabledServers() {
		serverCfg := serverCfg
		p.Go(func(ctx context.Context) error {
			builder, err := sc.ScanServer(ctx, serverCfg)
			if err != nil {
				o.logger.WithField("server", serverCfg.Name).WithError(err).
					Warn("初始扫描失败，发布空快照")
				builder = scanner.EmptyBuilder(serverCfg)
			} else {
				builder.BuildResolutionIndex()
			}
			o.cache.Insert(serverCfg.Name, builder)
			o.lastUpdated.Set(serverCfg.Name, currentTimestamp())
			o.bus.Emit(events.CacheNew{Server: serverCfg.Name})
			return nil
		})
	}
	return p.Wait()
}

// ForceRescan 对指定命名空间立即执行一次 rescan_one；命名空间不存在时报错。
// 扫描失败且尚无快照时发布空快照，让新建命名空间立即可见。
func (o *RescanOrchestrator) ForceRescan(ctx context.Context, name string) error {
	cfg := o.shared.Get()
	serverCfg, ok := cfg.FindServer(name)
	if !ok {
		return &ServerNotFoundError{Server: name}
	}

	sc := scanner.New(o.storage, cfg.Server.BasePath, cfg.Cache.Batch, cfg.Cache.ChecksumBufferSize, o.logger, nil)
	builder, err := sc.ScanServerSilent(ctx, serverCfg)
	if err != nil {
		if !o.cache.Contains(name) {
			o.logger.WithField("server", name).WithError(err).
				Warn("扫描失败，发布空快照")
			o.cache.Insert(name, scanner.EmptyBuilder(serverCfg))
			o.lastUpdated.Set(name, currentTimestamp())
			o.bus.Emit(events.CacheNew{Server: name})
			return nil
		}
		return err
	}

	o.updateCacheIfChanged(ctx, serverCfg, builder, cfg)
	return nil
}

func currentTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
