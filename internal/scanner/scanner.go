package scanner

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/packserve/packserve/internal/config"
	"github.com/packserve/packserve/internal/events"
	"github.com/packserve/packserve/internal/fileutil"
	"github.com/packserve/packserve/internal/logging"
	"github.com/packserve/packserve/internal/metadata"
	"github.com/packserve/packserve/internal/storage"
)

// Scanner 把一个命名空间的磁盘目录树变成 VersionBuilder 快照。五个分类扫描
// 并发执行；分类级错误向上冒泡，单文件错误在分类内部被过滤。
type Scanner struct {
	storage    storage.Backend
	basePath   string
	batch      config.BatchConfig
	bufferSize int
	logger     *logrus.Logger
	bus        *events.Bus
}

// New 构造 Scanner；bus 可为 nil，此时扫描不产生生命周期事件。
func New(backend storage.Backend, basePath string, batch config.BatchConfig, bufferSize int, logger *logrus.Logger, bus *events.Bus) *Scanner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Scanner{
		storage:    backend,
		basePath:   basePath,
		batch:      batch,
		bufferSize: bufferSize,
		logger:     logger,
		bus:        bus,
	}
}

// ScanServer 扫描命名空间并发出扫描事件。
func (s *Scanner) ScanServer(ctx context.Context, cfg config.ServerConfig) (*metadata.VersionBuilder, error) {
	started := time.Now()
	if s.bus != nil {
		s.bus.Emit(events.ScanStarted{Server: cfg.Name})
	}

	builder, err := s.scan(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if s.bus != nil {
		s.bus.Emit(events.ScanCompleted{Server: cfg.Name, Duration: time.Since(started)})
	}
	return builder, nil
}

// ScanServerSilent 与 ScanServer 等价，但不发事件，供周期性轮询使用。
func (s *Scanner) ScanServerSilent(ctx context.Context, cfg config.ServerConfig) (*metadata.VersionBuilder, error) {
	s.logger.WithFields(logging.ScanFields(cfg.Name, true)).Debug("scanning")
	return s.scan(ctx, cfg)
}

// EmptyBuilder 用命名空间配置生成一份无记录快照（索引已建），供目录缺失或
// 新建命名空间兜底发布。
func EmptyBuilder(cfg config.ServerConfig) *metadata.VersionBuilder {
	builder := &metadata.VersionBuilder{
		MainClass:      metadata.MainClass{MainClass: cfg.MainClass},
		RuntimeVersion: metadata.RuntimeVersion{MajorVersion: cfg.RuntimeVersion},
		Arguments: metadata.Arguments{
			Game:    append([]string(nil), cfg.GameArgs...),
			Runtime: append([]string(nil), cfg.RuntimeArgs...),
		},
		Libraries: []metadata.Library{},
		Mods:      []metadata.Mod{},
		Assets:    []metadata.Asset{},
	}
	builder.BuildResolutionIndex()
	return builder
}

func (s *Scanner) scan(ctx context.Context, cfg config.ServerConfig) (*metadata.VersionBuilder, error) {
	serverPath := fileutil.BuildServerPath(s.basePath, cfg.Name)
	if _, err := os.Stat(serverPath); err != nil {
		return nil, &ServerNotFoundError{Server: cfg.Name}
	}

	builder := &metadata.VersionBuilder{
		MainClass:      metadata.MainClass{MainClass: cfg.MainClass},
		RuntimeVersion: metadata.RuntimeVersion{MajorVersion: cfg.RuntimeVersion},
		Arguments: metadata.Arguments{
			Game:    append([]string(nil), cfg.GameArgs...),
			Runtime: append([]string(nil), cfg.RuntimeArgs...),
		},
		Libraries: []metadata.Library{},
		Mods:      []metadata.Mod{},
		Assets:    []metadata.Asset{},
	}

	p := pool.New().WithContext(ctx)

	if cfg.EnableClient {
		p.Go(func(ctx context.Context) error {
			client, err := s.scanClient(ctx, serverPath, cfg.Name)
			if err != nil {
				return err
			}
			builder.Client = client
			return nil
		})
	}
	if cfg.EnableLibraries {
		p.Go(func(ctx context.Context) error {
			libs, err := s.scanLibraries(ctx, serverPath, cfg.Name)
			if err != nil {
				return err
			}
			builder.Libraries = libs
			return nil
		})
	}
	if cfg.EnableMods {
		p.Go(func(ctx context.Context) error {
			mods, err := s.scanMods(ctx, serverPath, cfg.Name)
			if err != nil {
				return err
			}
			builder.Mods = mods
			return nil
		})
	}
	if cfg.EnableNatives {
		p.Go(func(ctx context.Context) error {
			natives, err := s.scanNatives(ctx, serverPath, cfg.Name)
			if err != nil {
				return err
			}
			builder.Natives = natives
			return nil
		})
	}
	if cfg.EnableAssets {
		p.Go(func(ctx context.Context) error {
			assets, err := s.scanAssets(ctx, serverPath, cfg.Name)
			if err != nil {
				return err
			}
			builder.Assets = assets
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, err
	}

	return builder, nil
}

// categoryURL 统一构造记录 URL：对象键为 {ns}/{category}/{relPath}。
func (s *Scanner) categoryURL(server, category, relPath string) string {
	return s.storage.URLFor(server + "/" + category + "/" + relPath)
}
