package config

// ServerSettings 描述 HTTP 服务本身的监听与分发行为。
type ServerSettings struct {
	Host                  string   `mapstructure:"host"`
	Port                  int      `mapstructure:"port"`
	BaseURL               string   `mapstructure:"base_url"`
	BasePath              string   `mapstructure:"base_path"`
	TCPNoDelay            bool     `mapstructure:"tcp_nodelay"`
	TimeoutSecs           uint64   `mapstructure:"timeout_secs"`
	MaxConcurrentRequests int      `mapstructure:"max_concurrent_requests"`
	MaxBodySizeMB         int      `mapstructure:"max_body_size_mb"`
	StreamingThresholdMB  uint64   `mapstructure:"streaming_threshold_mb"`
	EnableCompression     bool     `mapstructure:"enable_compression"`
	AllowedOrigins        []string `mapstructure:"allowed_origins"`
}

// StreamingThresholdBytes 返回流式传输阈值的字节数，供文件 handler 比较。
func (s ServerSettings) StreamingThresholdBytes() uint64 {
	return s.StreamingThresholdMB * 1024 * 1024
}

// CacheSettings 控制元数据缓存与扫描行为。RescanInterval 为秒，0 表示事件驱动模式。
type CacheSettings struct {
	Enabled                 bool        `mapstructure:"enabled"`
	AutoScan                bool        `mapstructure:"auto_scan"`
	RescanInterval          uint64      `mapstructure:"rescan_interval"`
	MaxMemoryCacheGB        uint64      `mapstructure:"max_memory_cache_gb"`
	ChecksumBufferSize      int         `mapstructure:"checksum_buffer_size"`
	ConfigReloadChannelSize int         `mapstructure:"config_reload_channel_size"`
	Batch                   BatchConfig `mapstructure:"batch"`
}

// BatchConfig 限定各分类扫描的并发上限。
type BatchConfig struct {
	Client    int `mapstructure:"client"`
	Libraries int `mapstructure:"libraries"`
	Mods      int `mapstructure:"mods"`
	Natives   int `mapstructure:"natives"`
	Assets    int `mapstructure:"assets"`
}

// HotReloadSettings 汇总配置文件与命名空间目录两类热更新开关。
type HotReloadSettings struct {
	Config HotReloadEntry `mapstructure:"config"`
	Files  HotReloadEntry `mapstructure:"files"`
}

// HotReloadEntry 是单个热更新通道的开关与防抖窗口。
type HotReloadEntry struct {
	Enabled    bool   `mapstructure:"enabled"`
	DebounceMs uint64 `mapstructure:"debounce_ms"`
}

// StorageSettings 选择本地直出或 S3 兼容对象存储。
type StorageSettings struct {
	Backend string     `mapstructure:"backend"`
	S3      S3Settings `mapstructure:"s3"`
}

// S3Settings 是 S3 兼容后端（R2/MinIO/Spaces 等）的连接参数。
type S3Settings struct {
	Endpoint     string `mapstructure:"endpoint"`
	Region       string `mapstructure:"region"`
	Bucket       string `mapstructure:"bucket"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	PublicURL    string `mapstructure:"public_url"`
	BucketPrefix string `mapstructure:"bucket_prefix"`
}

// CloudflareSettings 控制元数据更新后的 CDN 缓存清理。
type CloudflareSettings struct {
	Enabled       bool   `mapstructure:"enabled"`
	ZoneID        string `mapstructure:"zone_id"`
	APIToken      string `mapstructure:"api_token"`
	BaseURL       string `mapstructure:"base_url"`
	PurgeOnUpdate bool   `mapstructure:"purge_on_update"`
}

// LogSettings 描述结构化日志的级别与落盘策略。
type LogSettings struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// ServerConfig 声明一个命名空间（逻辑服务器），绑定到 <base_path>/<name>/ 目录。
type ServerConfig struct {
	Name            string   `mapstructure:"name"`
	Enabled         bool     `mapstructure:"enabled"`
	Loader          string   `mapstructure:"loader"`
	LoaderVersion   string   `mapstructure:"loader_version"`
	TargetVersion   string   `mapstructure:"target_version"`
	MainClass       string   `mapstructure:"main_class"`
	RuntimeVersion  int      `mapstructure:"runtime_version"`
	EnableClient    bool     `mapstructure:"enable_client"`
	EnableLibraries bool     `mapstructure:"enable_libraries"`
	EnableMods      bool     `mapstructure:"enable_mods"`
	EnableNatives   bool     `mapstructure:"enable_natives"`
	EnableAssets    bool     `mapstructure:"enable_assets"`
	GameArgs        []string `mapstructure:"game_args"`
	RuntimeArgs     []string `mapstructure:"runtime_args"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Server     ServerSettings     `mapstructure:"server"`
	Cache      CacheSettings      `mapstructure:"cache"`
	HotReload  HotReloadSettings  `mapstructure:"hot-reload"`
	Storage    StorageSettings    `mapstructure:"storage"`
	Cloudflare CloudflareSettings `mapstructure:"cloudflare"`
	Log        LogSettings        `mapstructure:"log"`
	Servers    []ServerConfig     `mapstructure:"servers"`

	migrationNotes []string
}

// EnabledServers 返回启用的命名空间列表，保持配置中的声明顺序。
func (c *Config) EnabledServers() []ServerConfig {
	var out []ServerConfig
	for _, s := range c.Servers {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// FindServer 按名称查找命名空间配置。
func (c *Config) FindServer(name string) (ServerConfig, bool) {
	for _, s := range c.Servers {
		if s.Name == name {
			return s, true
		}
	}
	return ServerConfig{}, false
}

// FieldsChanged 比较两份命名空间声明；任一会影响快照内容的字段变化都返回 true。
func (s ServerConfig) FieldsChanged(other ServerConfig) bool {
	if s.Enabled != other.Enabled ||
		s.Loader != other.Loader ||
		s.LoaderVersion != other.LoaderVersion ||
		s.TargetVersion != other.TargetVersion ||
		s.MainClass != other.MainClass ||
		s.RuntimeVersion != other.RuntimeVersion ||
		s.EnableClient != other.EnableClient ||
		s.EnableLibraries != other.EnableLibraries ||
		s.EnableMods != other.EnableMods ||
		s.EnableNatives != other.EnableNatives ||
		s.EnableAssets != other.EnableAssets {
		return true
	}
	return !stringSlicesEqual(s.GameArgs, other.GameArgs) ||
		!stringSlicesEqual(s.RuntimeArgs, other.RuntimeArgs)
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
