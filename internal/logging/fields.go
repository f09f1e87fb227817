package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// ScanFields 提供命名空间扫描日志的公共字段。
func ScanFields(server string, silent bool) logrus.Fields {
	return logrus.Fields{
		"action": "scan",
		"server": server,
		"silent": silent,
	}
}

// RescanFields 提供 rescan 事件日志字段，供轮询/事件两种模式复用。
func RescanFields(server string, added, modified, removed int) logrus.Fields {
	return logrus.Fields{
		"action":   "rescan",
		"server":   server,
		"added":    added,
		"modified": modified,
		"removed":  removed,
	}
}

// ServeFields 提供文件请求日志字段。
func ServeFields(server, path string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"action":    "serve_file",
		"server":    server,
		"path":      path,
		"cache_hit": cacheHit,
	}
}
