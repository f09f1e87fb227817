package cache

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/packserve/packserve/internal/config"
	"github.com/packserve/packserve/internal/events"
	"github.com/packserve/packserve/internal/fileutil"
	"github.com/packserve/packserve/internal/metadata"
	"github.com/packserve/packserve/internal/storage"
)

// lruPrimeConcurrency 限制启动预热时并行读盘的文件数。
const lruPrimeConcurrency = 32

// Manager 持有快照表、时间戳表、文件 LRU、路径缓存、重扫调度器与后台任务
// 注册表，是缓存子系统对外的唯一入口。所有共享状态由显式句柄线穿，没有
// 包级单例。
type Manager struct {
	snapshots    *snapshotStore
	lastUpdated  *timestampStore
	fileLRU      *FileLRU
	pathCache    *ServerPathCache
	orchestrator *RescanOrchestrator
	shared       *config.Shared
	bus          *events.Bus
	storage      storage.Backend
	logger       *logrus.Logger

	shutdownCh  chan struct{}
	shutdownOne sync.Once

	tasks       sync.Map // task id → chan struct{}（任务结束时关闭）
	taskCounter atomic.Uint64
}

// NewManager 组装缓存子系统；cloudflare 为 nil 时禁用 CDN 清理。
func NewManager(
	shared *config.Shared,
	bus *events.Bus,
	backend storage.Backend,
	cloudflare *CloudflareClient,
	logger *logrus.Logger,
) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	cfg := shared.Get()
	snapshots := newSnapshotStore()
	lastUpdated := newTimestampStore()

	pathCache := NewServerPathCache()
	pathCache.Rebuild(cfg.Servers, cfg.Server.BasePath)

	maxBytes := int64(cfg.Cache.MaxMemoryCacheGB) * 1024 * 1024 * 1024
	fileLRU := NewFileLRU(maxBytes)

	orchestrator := NewRescanOrchestrator(
		snapshots, lastUpdated, shared, bus, backend, cloudflare, pathCache, logger,
	)

	return &Manager{
		snapshots:    snapshots,
		lastUpdated:  lastUpdated,
		fileLRU:      fileLRU,
		pathCache:    pathCache,
		orchestrator: orchestrator,
		shared:       shared,
		bus:          bus,
		storage:      backend,
		logger:       logger,
		shutdownCh:   make(chan struct{}),
	}
}

// Initialize 在 auto_scan 启用时执行全量扫描并预热文件 LRU。
func (m *Manager) Initialize(ctx context.Context) error {
	cfg := m.shared.Get()
	if !cfg.Cache.Enabled || !cfg.Cache.AutoScan {
		return nil
	}

	m.bus.Emit(events.InitialScanStarted{})
	if err := m.orchestrator.ScanAllServers(ctx); err != nil {
		return err
	}
	m.primeFileLRU(ctx, cfg)
	return nil
}

// StartAutoRescan 把重扫循环注册为后台任务。
func (m *Manager) StartAutoRescan() {
	if !m.shared.Get().Cache.Enabled {
		return
	}
	m.runTask("rescan_loop", func() {
		m.orchestrator.RunLoop(m.shutdownCh)
	})
}

// Get 返回命名空间的快照句柄。
func (m *Manager) Get(server string) (*metadata.VersionBuilder, bool) {
	return m.snapshots.Get(server)
}

// LastUpdate 返回命名空间最近一次快照发布的时间串。
func (m *Manager) LastUpdate(server string) (string, bool) {
	return m.lastUpdated.Get(server)
}

// CachedFile 仅查询 LRU，不落盘。
func (m *Manager) CachedFile(server, path string) (*FileEntry, bool) {
	return m.fileLRU.Get(server, path)
}

// LoadAndCacheFile 从磁盘读入文件、写进 LRU 并返回条目。
func (m *Manager) LoadAndCacheFile(server, relPath, absPath string) (*FileEntry, error) {
	entry, err := LoadFileEntry(absPath)
	if err != nil {
		return nil, err
	}
	m.fileLRU.Put(server, relPath, entry)
	return entry, nil
}

// ForceRescan 立即重扫指定命名空间；不存在时返回 ServerNotFoundError。
func (m *Manager) ForceRescan(ctx context.Context, server string) error {
	return m.orchestrator.ForceRescan(ctx, server)
}

// PauseRescan / ResumeRescan 代理到调度器的暂停开关。
func (m *Manager) PauseRescan() {
	m.orchestrator.Pause()
}

func (m *Manager) ResumeRescan() {
	m.orchestrator.Resume()
}

// RebuildServerPathCache 配置热更新后重建路径归属缓存。
func (m *Manager) RebuildServerPathCache() {
	cfg := m.shared.Get()
	m.pathCache.Rebuild(cfg.Servers, cfg.Server.BasePath)
	m.logger.Debug("server path cache rebuilt")
}

// Stats 返回文件 LRU 的条目数与字节数。
func (m *Manager) Stats() (entries int, bytes int64) {
	return m.fileLRU.Stats()
}

// Shutdown 广播退出信号、汇合全部后台任务并清空 LRU。任何任务 panic 只会
// 记录日志，不会卡住退出。
func (m *Manager) Shutdown() {
	m.logger.Info("缓存管理器开始退出")
	m.shutdownOne.Do(func() {
		close(m.shutdownCh)
	})

	m.tasks.Range(func(key, value any) bool {
		done := value.(chan struct{})
		<-done
		m.tasks.Delete(key)
		return true
	})

	m.fileLRU.Shutdown()
	m.logger.Info("缓存管理器退出完成")
}

// Go 把外部后台工作（如配置监听器）注册进任务表，随 Shutdown 一起汇合。
// fn 应在 ShutdownSignal 关闭后尽快返回。
func (m *Manager) Go(name string, fn func()) {
	m.runTask(name, fn)
}

// ShutdownSignal 返回退出广播通道，供外部任务 select。
func (m *Manager) ShutdownSignal() <-chan struct{} {
	return m.shutdownCh
}

// runTask 以注册表跟踪后台任务；panic 被捕获记录，done 始终关闭。
func (m *Manager) runTask(name string, fn func()) {
	id := m.taskCounter.Add(1)
	done := make(chan struct{})
	m.tasks.Store(id, done)

	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				m.logger.WithFields(logrus.Fields{
					"task":  name,
					"panic": r,
				}).Error("后台任务异常退出")
			}
		}()
		fn()
	}()
}

// primeFileLRU 把启用命名空间下的 .jar/.json 与 assets 文件预读进 LRU。
// 单文件失败只记日志。
func (m *Manager) primeFileLRU(ctx context.Context, cfg *config.Config) {
	p := pool.New().WithMaxGoroutines(lruPrimeConcurrency)

	for _, serverCfg := range cfg.EnabledServers() {
		serverPath := fileutil.BuildServerPath(cfg.Server.BasePath, serverCfg.Name)
		assetsPrefix := filepath.Join(serverPath, "assets") + string(filepath.Separator)
		serverName := serverCfg.Name

		walkErr := filepath.WalkDir(serverPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}

			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".jar" && ext != ".json" && !strings.HasPrefix(path, assetsPrefix) {
				return nil
			}

			rel, relErr := filepath.Rel(serverPath, path)
			if relErr != nil {
				return nil
			}
			relPath := fileutil.NormalizePath(rel)
			absPath := path

			p.Go(func() {
				if _, loadErr := m.LoadAndCacheFile(serverName, relPath, absPath); loadErr != nil {
					m.logger.WithField("path", absPath).WithError(loadErr).Warn("预热文件失败")
				}
			})
			return nil
		})
		if walkErr != nil {
			m.logger.WithField("server", serverName).WithError(walkErr).Warn("预热目录遍历中断")
		}
	}

	p.Wait()

	entries, bytes := m.fileLRU.Stats()
	m.logger.WithFields(logrus.Fields{
		"action":  "lru_prime",
		"entries": entries,
		"bytes":   bytes,
	}).Info("文件缓存预热完成")
}
