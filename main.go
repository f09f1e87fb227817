package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/packserve/packserve/internal/cache"
	"github.com/packserve/packserve/internal/config"
	"github.com/packserve/packserve/internal/events"
	"github.com/packserve/packserve/internal/fileutil"
	"github.com/packserve/packserve/internal/logging"
	"github.com/packserve/packserve/internal/server"
	"github.com/packserve/packserve/internal/storage"
	"github.com/packserve/packserve/internal/version"
	"github.com/packserve/packserve/internal/watcher"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		fmt.Fprintln(stdOut, version.Full())
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["servers"] = len(cfg.Servers)
		fields["storage"] = cfg.Storage.Backend
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	bus := events.NewBus(logger, false)
	bus.Emit(events.Starting{})
	bus.Emit(events.ConfigLoaded{Path: opts.configPath, ServersCount: len(cfg.Servers)})
	if notes := cfg.MigrationNotes(); len(notes) > 0 {
		bus.Emit(events.ConfigMigrated{Notes: notes})
	}

	backend, err := storage.NewBackend(cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化存储后端失败: %v\n", err)
		return 1
	}

	shared := config.NewShared(cfg)

	var cloudflare *cache.CloudflareClient
	if cfg.Cloudflare.Enabled {
		cloudflare = cache.NewCloudflareClient(cfg.Cloudflare, logger)
	}

	manager := cache.NewManager(shared, bus, backend, cloudflare, logger)

	// 启动顺序：目录树 → 初始扫描 → 重扫循环 → 配置监听 → Fiber server。
	for _, serverCfg := range cfg.EnabledServers() {
		if _, err := fileutil.EnsureServerStructure(cfg.Server.BasePath, serverCfg.Name); err != nil {
			logger.WithField("server", serverCfg.Name).WithError(err).Error("创建命名空间目录失败")
		}
	}

	if err := manager.Initialize(context.Background()); err != nil {
		logger.WithError(err).Error("初始扫描失败")
	}
	manager.StartAutoRescan()

	configWatcher := watcher.New(shared, opts.configPath, manager, bus, logger)
	manager.Go("config_watcher", func() {
		configWatcher.Run(manager.ShutdownSignal())
	})

	fields := logging.BaseFields("startup", opts.configPath)
	fields["servers"] = len(cfg.Servers)
	fields["listen_port"] = cfg.Server.Port
	fields["storage"] = cfg.Storage.Backend
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, shared, manager, bus, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		manager.Shutdown()
		return 1
	}

	bus.Emit(events.Shutdown{})
	manager.Shutdown()
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("packserve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 PACKSERVE_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("PACKSERVE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

// startHTTPServer 启动 Fiber 服务并在收到退出信号时优雅关停，阻塞到服务结束。
func startHTTPServer(cfg *config.Config, shared *config.Shared, manager *cache.Manager, bus *events.Bus, logger *logrus.Logger) error {
	app, err := server.NewApp(server.AppOptions{
		Logger: logger,
		Shared: shared,
		Cache:  manager,
		Bus:    bus,
	})
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.WithField("signal", sig.String()).Info("收到退出信号")
		if shutdownErr := app.Shutdown(); shutdownErr != nil {
			logger.WithError(shutdownErr).Warn("HTTP 服务关停失败")
		}
	}()

	bus.Emit(events.Ready{Addr: addr, BaseURL: cfg.Server.BaseURL})
	return app.Listen(addr)
}
