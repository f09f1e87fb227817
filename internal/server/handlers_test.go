package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/packserve/packserve/internal/cache"
	"github.com/packserve/packserve/internal/config"
	"github.com/packserve/packserve/internal/events"
	"github.com/packserve/packserve/internal/storage"
)

func serverTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func writeServerFile(t *testing.T, basePath, server, rel, content string) {
	t.Helper()
	path := filepath.Join(basePath, server, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write error: %v", err)
	}
}

func newTestApp(t *testing.T, mutate func(cfg *config.Config)) (*fiber.App, *cache.Manager, string) {
	t.Helper()

	base := t.TempDir()
	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8080
	cfg.Server.BaseURL = "http://host"
	cfg.Server.BasePath = base
	cfg.Server.TimeoutSecs = 30
	cfg.Server.MaxBodySizeMB = 10
	cfg.Server.MaxConcurrentRequests = 256
	cfg.Server.StreamingThresholdMB = 100
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Cache.Enabled = true
	cfg.Cache.AutoScan = true
	cfg.Cache.RescanInterval = 300
	cfg.Cache.ChecksumBufferSize = 8192
	cfg.Cache.Batch = config.BatchConfig{Client: 4, Libraries: 4, Mods: 4, Natives: 4, Assets: 4}
	cfg.Servers = []config.ServerConfig{
		{
			Name:           "s1",
			Enabled:        true,
			Loader:         "fabric",
			TargetVersion:  "1.20.4",
			MainClass:      "net.example.Main",
			RuntimeVersion: 17,
			EnableClient:   true,
			EnableMods:     true,
		},
		{
			Name:    "hidden",
			Enabled: false,
			Loader:  "forge",
		},
	}
	if mutate != nil {
		mutate(cfg)
	}

	writeServerFile(t, base, "s1", "mods/mod1.jar", "mod one bytes")

	logger := serverTestLogger()
	shared := config.NewShared(cfg)
	bus := events.NewBus(logger, true)
	backend := storage.NewLocalBackend(cfg.Server.BaseURL)

	manager := cache.NewManager(shared, bus, backend, nil, logger)
	t.Cleanup(manager.Shutdown)
	if err := manager.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize error: %v", err)
	}

	app, err := NewApp(AppOptions{
		Logger: logger,
		Shared: shared,
		Cache:  manager,
		Bus:    bus,
	})
	if err != nil {
		t.Fatalf("new app error: %v", err)
	}
	return app, manager, base
}

func TestListServers(t *testing.T) {
	app, _, _ := newTestApp(t, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var payload struct {
		Servers []struct {
			Name          string `json:"name"`
			Loader        string `json:"loader"`
			TargetVersion string `json:"target_version"`
			URL           string `json:"url"`
			LastUpdate    string `json:"last_update"`
		} `json:"servers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if len(payload.Servers) != 1 {
		t.Fatalf("disabled namespaces must be hidden: %+v", payload.Servers)
	}
	s := payload.Servers[0]
	if s.Name != "s1" || s.Loader != "fabric" || s.TargetVersion != "1.20.4" {
		t.Fatalf("unexpected server info: %+v", s)
	}
	if s.URL != "http://host/s1.json" {
		t.Fatalf("metadata url = %s", s.URL)
	}
	if s.LastUpdate == "" {
		t.Fatalf("last_update missing after initial scan")
	}
}

func TestServerMetadata(t *testing.T) {
	app, _, _ := newTestApp(t, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/s1.json", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	for _, field := range []string{"main_class", "runtime_version", "arguments", "mods", "natives", "client", "assets", "libraries"} {
		if _, ok := doc[field]; !ok {
			t.Fatalf("snapshot json missing %s: %s", field, body)
		}
	}
	if _, leaked := doc["url_to_path"]; leaked {
		t.Fatalf("resolution index leaked to wire form")
	}
}

func TestServerMetadataUnknown(t *testing.T) {
	app, _, _ := newTestApp(t, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/ghost.json", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var payload ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Error.Code != "SERVER_NOT_FOUND" {
		t.Fatalf("error code = %s", payload.Error.Code)
	}
	if len(payload.Error.AvailableServers) != 1 || payload.Error.AvailableServers[0] != "s1" {
		t.Fatalf("available servers = %v", payload.Error.AvailableServers)
	}
}

func TestServerMetadataDisabled(t *testing.T) {
	app, _, _ := newTestApp(t, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/hidden.json", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("disabled namespace must 404, got %d", resp.StatusCode)
	}
}

func TestServeFileFromLRU(t *testing.T) {
	app, _, _ := newTestApp(t, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/s1/mods/mod1.jar", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d body=%s", resp.StatusCode, body)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "mod one bytes" {
		t.Fatalf("body = %q", body)
	}
}

func TestServeFileStreamsAtThreshold(t *testing.T) {
	// 阈值 0 → 所有文件走流式分支（>= 判定）。
	app, manager, base := newTestApp(t, func(cfg *config.Config) {
		cfg.Server.StreamingThresholdMB = 0
	})

	// 初始化时预热的文件会命中 LRU；重扫新增的文件不在 LRU 中，才会走到阈值判定。
	writeServerFile(t, base, "s1", "mods/mod2.jar", "mod two bytes")
	if err := manager.ForceRescan(context.Background(), "s1"); err != nil {
		t.Fatalf("force rescan error: %v", err)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/s1/mods/mod2.jar", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "mod two bytes" {
		t.Fatalf("streamed body = %q", body)
	}
	// 流式分支不写入 LRU。
	if _, hit := manager.CachedFile("s1", "mods/mod2.jar"); hit {
		t.Fatalf("streamed file must not be cached")
	}
}

func TestServeFileUnknownPath(t *testing.T) {
	app, _, _ := newTestApp(t, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/s1/mods/nope.jar", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestServeFileRejectsTraversal(t *testing.T) {
	app, _, _ := newTestApp(t, nil)

	// fasthttp 会折叠 "../"，使用仍含 ".." 的文件名验证完整链路。
	resp, err := app.Test(httptest.NewRequest("GET", "/s1/mods/..evil.jar", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var payload ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Error.Code != "INVALID_PATH" {
		t.Fatalf("error code = %s", payload.Error.Code)
	}
}

func TestValidateRequestPath(t *testing.T) {
	bad := []string{
		"s1/../etc/passwd",
		"s1/mods/\x00.jar",
		"c:/windows/system32",
	}
	for _, path := range bad {
		if err := validateRequestPath(path); err == nil {
			t.Fatalf("expected rejection for %q", path)
		}
	}

	if err := validateRequestPath("s1/mods/mod1.jar"); err != nil {
		t.Fatalf("valid path rejected: %v", err)
	}
}

func TestForceRescanEndpoint(t *testing.T) {
	app, _, base := newTestApp(t, nil)

	writeServerFile(t, base, "s1", "mods/mod2.jar", "new mod")

	resp, err := app.Test(httptest.NewRequest("GET", "/rescan/s1", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var payload struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Status != "success" {
		t.Fatalf("payload = %+v", payload)
	}

	// 新文件经重扫后立即可服务。
	resp, err = app.Test(httptest.NewRequest("GET", "/s1/mods/mod2.jar", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("rescanned file not served: %d", resp.StatusCode)
	}
}

func TestForceRescanUnknownServer(t *testing.T) {
	app, _, _ := newTestApp(t, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/rescan/ghost", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestRequestIDHeader(t *testing.T) {
	app, _, _ := newTestApp(t, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header")
	}
}
