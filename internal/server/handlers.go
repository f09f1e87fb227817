package server

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/packserve/packserve/internal/cache"
	"github.com/packserve/packserve/internal/config"
	"github.com/packserve/packserve/internal/events"
	"github.com/packserve/packserve/internal/fileutil"
	"github.com/packserve/packserve/internal/logging"
)

// handler 消费缓存管理器与共享配置，承载全部 HTTP 语义。
type handler struct {
	logger *logrus.Logger
	shared *config.Shared
	cache  *cache.Manager
	bus    *events.Bus
}

func newHandler(opts AppOptions) *handler {
	return &handler{
		logger: opts.Logger,
		shared: opts.Shared,
		cache:  opts.Cache,
		bus:    opts.Bus,
	}
}

// serverInfo 是目录端点里单个命名空间的展示形态。
type serverInfo struct {
	Name          string `json:"name"`
	Loader        string `json:"loader"`
	TargetVersion string `json:"target_version"`
	URL           string `json:"url"`
	LastUpdate    string `json:"last_update,omitempty"`
}

type serverListResponse struct {
	Servers []serverInfo `json:"servers"`
}

// listServers 返回启用命名空间的目录，附带元数据文档 URL 与最近更新时间。
func (h *handler) listServers(c fiber.Ctx) error {
	cfg := h.shared.Get()
	baseURL := strings.TrimRight(cfg.Server.BaseURL, "/")

	servers := make([]serverInfo, 0, len(cfg.Servers))
	for _, s := range cfg.EnabledServers() {
		info := serverInfo{
			Name:          s.Name,
			Loader:        s.Loader,
			TargetVersion: s.TargetVersion,
			URL:           baseURL + "/" + s.Name + ".json",
		}
		if ts, ok := h.cache.LastUpdate(s.Name); ok {
			info.LastUpdate = ts
		}
		servers = append(servers, info)
	}

	return c.JSON(serverListResponse{Servers: servers})
}

// serverMetadata 返回命名空间的快照 JSON（解析索引不在线上形态里）。
// 路由形如 /{ns}.json；禁用或未知的命名空间 404 并附可用列表。
func (h *handler) serverMetadata(c fiber.Ctx) error {
	document := c.Params("document")
	name := strings.TrimSuffix(document, ".json")

	cfg := h.shared.Get()
	serverCfg, found := cfg.FindServer(name)
	if !found || !serverCfg.Enabled {
		return renderServerNotFound(c, name, h.enabledNames(cfg))
	}

	builder, ok := h.cache.Get(name)
	if !ok {
		return renderServerNotFound(c, name, h.enabledNames(cfg))
	}

	return c.JSON(builder)
}

// forceRescan 触发一次带外重扫，返回 {status, message}。
func (h *handler) forceRescan(c fiber.Ctx) error {
	name := c.Params("server")

	if err := h.cache.ForceRescan(c.Context(), name); err != nil {
		var notFound *cache.ServerNotFoundError
		if errors.As(err, &notFound) {
			return renderServerNotFound(c, name, h.enabledNames(h.shared.Get()))
		}
		return renderError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Server " + name + " rescanned successfully",
	})
}

// serveFile 处理 /{ns}/{path...}：校验路径 → 快照解析 → LRU → 磁盘。
// 大于等于流式阈值的文件分块发送，其余整体读入并写进 LRU。
func (h *handler) serveFile(c fiber.Ctx) error {
	started := time.Now()
	requested := strings.TrimPrefix(c.Path(), "/")

	if err := validateRequestPath(requested); err != nil {
		return renderError(c, fiber.StatusBadRequest, "INVALID_PATH", err.Error())
	}

	parts := strings.SplitN(requested, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return renderError(c, fiber.StatusNotFound, "NOT_FOUND", "Resource not found")
	}
	serverName, filePart := parts[0], parts[1]

	cfg := h.shared.Get()

	builder, ok := h.cache.Get(serverName)
	if !ok {
		return renderServerNotFound(c, serverName, h.enabledNames(cfg))
	}

	requestedURL := strings.TrimRight(cfg.Server.BaseURL, "/") + "/" + serverName + "/" + filePart
	relPath, ok := builder.ResolvePath(requestedURL)
	if !ok {
		return renderError(c, fiber.StatusNotFound, "NOT_FOUND", "Resource not found")
	}

	// RAM 缓存优先。
	if entry, hit := h.cache.CachedFile(serverName, relPath); hit {
		h.logServe(serverName, relPath, true, started)
		c.Set(fiber.HeaderContentType, entry.MIMEType)
		return c.Send(entry.Data)
	}

	absPath := filepath.Join(
		fileutil.BuildServerPath(cfg.Server.BasePath, serverName),
		filepath.FromSlash(relPath),
	)

	info, err := os.Stat(absPath)
	if err != nil {
		h.logger.WithFields(logging.ServeFields(serverName, relPath, false)).
			WithError(err).Warn("文件不在磁盘上")
		return renderError(c, fiber.StatusNotFound, "NOT_FOUND", "Resource not found")
	}

	if uint64(info.Size()) >= cfg.Server.StreamingThresholdBytes() {
		h.logServe(serverName, relPath, false, started)
		return c.SendFile(absPath)
	}

	entry, err := h.cache.LoadAndCacheFile(serverName, relPath, absPath)
	if err != nil {
		return renderError(c, fiber.StatusInternalServerError, "IO_ERROR", err.Error())
	}

	h.logServe(serverName, relPath, false, started)
	c.Set(fiber.HeaderContentType, entry.MIMEType)
	return c.Send(entry.Data)
}

func (h *handler) logServe(server, path string, cacheHit bool, started time.Time) {
	fields := logging.ServeFields(server, path, cacheHit)
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	h.logger.WithFields(fields).Debug("file served")
}

func (h *handler) enabledNames(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.EnabledServers() {
		names = append(names, s.Name)
	}
	return names
}

// validateRequestPath 拒绝路径穿越与非法字符：".."、NUL、绝对路径与盘符。
func validateRequestPath(path string) error {
	if strings.Contains(path, "..") {
		return errInvalidPath("path contains '..'")
	}
	if strings.ContainsRune(path, 0) {
		return errInvalidPath("path contains null byte")
	}
	if strings.HasPrefix(path, "/") || strings.HasPrefix(path, "\\") {
		return errInvalidPath("absolute paths are not allowed")
	}
	if len(path) >= 2 && path[1] == ':' {
		return errInvalidPath("drive letters are not allowed")
	}
	return nil
}

type invalidPathError string

func (e invalidPathError) Error() string { return string(e) }

func errInvalidPath(reason string) error { return invalidPathError(reason) }
