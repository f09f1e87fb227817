package config

import (
	"fmt"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值、迁移遗留字段并校验。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	migrations := migrateLegacyKeys(v)

	var cfg Config
	// allowed_origins 等列表字段允许写成逗号分隔字符串。
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absBase, err := filepath.Abs(cfg.Server.BasePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析命名空间根目录: %w", err)
	}
	cfg.Server.BasePath = absBase

	cfg.migrationNotes = migrations
	return &cfg, nil
}

// MigrationNotes 返回加载阶段对遗留字段做的兼容处理摘要。
func (c *Config) MigrationNotes() []string {
	return c.migrationNotes
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.base_path", "data")
	v.SetDefault("server.tcp_nodelay", true)
	v.SetDefault("server.timeout_secs", 60)
	v.SetDefault("server.max_concurrent_requests", 1000)
	v.SetDefault("server.max_body_size_mb", 100)
	v.SetDefault("server.streaming_threshold_mb", 100)
	v.SetDefault("server.enable_compression", true)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.auto_scan", true)
	v.SetDefault("cache.rescan_interval", 300)
	v.SetDefault("cache.max_memory_cache_gb", 0)
	v.SetDefault("cache.checksum_buffer_size", 8192)
	v.SetDefault("cache.config_reload_channel_size", 16)
	v.SetDefault("cache.batch.client", 100)
	v.SetDefault("cache.batch.libraries", 100)
	v.SetDefault("cache.batch.mods", 100)
	v.SetDefault("cache.batch.natives", 100)
	v.SetDefault("cache.batch.assets", 100)

	v.SetDefault("hot-reload.config.enabled", true)
	v.SetDefault("hot-reload.config.debounce_ms", 500)
	v.SetDefault("hot-reload.files.enabled", true)
	v.SetDefault("hot-reload.files.debounce_ms", 500)

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.s3.region", "auto")

	v.SetDefault("cloudflare.enabled", false)
	v.SetDefault("cloudflare.base_url", "https://api.cloudflare.com/client/v4")
	v.SetDefault("cloudflare.purge_on_update", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file_path", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.compress", true)
}

// migrateLegacyKeys 把历史字段映射到当前 schema。[hot-reload.*] 为权威来源：
// 仅当新键未显式配置时才采纳旧键的值。
func migrateLegacyKeys(v *viper.Viper) []string {
	var notes []string

	if v.InConfig("file_watcher_debounce_ms") {
		if v.InConfig("hot-reload.files.debounce_ms") {
			notes = append(notes, "file_watcher_debounce_ms 已被 [hot-reload.files].debounce_ms 覆盖")
		} else {
			v.Set("hot-reload.files.debounce_ms", v.GetUint64("file_watcher_debounce_ms"))
			notes = append(notes, "file_watcher_debounce_ms → [hot-reload.files].debounce_ms")
		}
	}

	if v.InConfig("metrics") {
		notes = append(notes, "忽略已弃用的 [metrics] 段")
	}

	// [cdn] 是 [cloudflare] 的别名写法；仅支持 cloudflare provider。
	if v.InConfig("cdn") {
		provider := v.GetString("cdn.provider")
		if provider == "" || provider == "cloudflare" {
			if !v.InConfig("cloudflare.zone_id") && v.InConfig("cdn.zone_id") {
				v.Set("cloudflare.zone_id", v.GetString("cdn.zone_id"))
			}
			if !v.InConfig("cloudflare.api_token") && v.InConfig("cdn.api_token") {
				v.Set("cloudflare.api_token", v.GetString("cdn.api_token"))
			}
			if !v.InConfig("cloudflare.enabled") {
				v.Set("cloudflare.enabled", true)
			}
			notes = append(notes, "[cdn] → [cloudflare]")
		} else {
			notes = append(notes, fmt.Sprintf("忽略未知 CDN provider: %s", provider))
		}
	}

	return notes
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Cache.ChecksumBufferSize <= 0 {
		cfg.Cache.ChecksumBufferSize = 8192
	}
	if cfg.Cache.ConfigReloadChannelSize <= 0 {
		cfg.Cache.ConfigReloadChannelSize = 16
	}
	applyBatchDefaults(&cfg.Cache.Batch)
	if cfg.Storage.S3.Region == "" {
		cfg.Storage.S3.Region = "auto"
	}
	if cfg.Cloudflare.BaseURL == "" {
		cfg.Cloudflare.BaseURL = "https://api.cloudflare.com/client/v4"
	}
}

func applyBatchDefaults(b *BatchConfig) {
	if b.Client <= 0 {
		b.Client = 100
	}
	if b.Libraries <= 0 {
		b.Libraries = 100
	}
	if b.Mods <= 0 {
		b.Mods = 100
	}
	if b.Natives <= 0 {
		b.Natives = 100
	}
	if b.Assets <= 0 {
		b.Assets = 100
	}
}
