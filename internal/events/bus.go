package events

import "github.com/sirupsen/logrus"

// Bus 把类型化事件渲染成结构化日志。silent 模式下仅保留错误类输出，
// 供周期性静默扫描复用同一套事件流。
type Bus struct {
	logger *logrus.Logger
	silent bool
}

// NewBus 构造事件总线；logger 为 nil 时使用全局 logrus 实例。
func NewBus(logger *logrus.Logger, silent bool) *Bus {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Bus{logger: logger, silent: silent}
}

// Emit 输出一条事件。事件名固定落在 event 字段，便于日志侧聚合。
func (b *Bus) Emit(event Event) {
	entry := b.logger.WithField("event", event.eventName())

	switch e := event.(type) {
	case Starting:
		b.info(entry, "服务启动中")
	case Ready:
		b.info(entry.WithFields(logrus.Fields{"addr": e.Addr, "base_url": e.BaseURL}), "服务就绪")
	case Shutdown:
		b.info(entry, "服务开始退出")
	case ConfigLoaded:
		b.info(entry.WithFields(logrus.Fields{"path": e.Path, "servers": e.ServersCount}), "配置加载完成")
	case ConfigMigrated:
		b.info(entry.WithField("notes", e.Notes), "配置迁移已应用")
	case ConfigReloaded:
		b.info(entry, "配置热更新完成")
	case ConfigError:
		entry.WithField("error", e.Err).Error("配置热更新失败，保留旧配置")
	case InitialScanStarted:
		b.info(entry, "开始初始扫描")
	case ScanStarted:
		entry.WithField("server", e.Server).Debug("scan started")
	case ScanCompleted:
		entry.WithFields(logrus.Fields{
			"server":     e.Server,
			"elapsed_ms": e.Duration.Milliseconds(),
		}).Debug("scan completed")
	case CacheNew:
		b.info(entry.WithField("server", e.Server), "命名空间已缓存")
	case CacheUpdated:
		b.info(entry.WithFields(logrus.Fields{
			"server":   e.Server,
			"added":    e.Added,
			"modified": e.Modified,
			"removed":  e.Removed,
		}), "快照已更新")
	case CacheUnchanged:
		entry.WithField("server", e.Server).Debug("snapshot unchanged")
	case NewServerDetected:
		b.info(entry.WithField("server", e.Name), "发现新命名空间")
	case ServerRemoved:
		b.info(entry.WithField("server", e.Name), "命名空间已移除")
	case AutoScanEnabled:
		b.info(entry.WithField("interval_secs", e.Interval), "轮询扫描已启用")
	case ContinuousScanEnabled:
		b.info(entry, "事件驱动扫描已启用")
	case ErrorEvent:
		entry.WithFields(logrus.Fields{"context": e.Context, "error": e.Err}).Error("后台任务错误")
	default:
		entry.Debug("event")
	}
}

func (b *Bus) info(entry *logrus.Entry, msg string) {
	if b.silent {
		entry.Debug(msg)
		return
	}
	entry.Info(msg)
}
