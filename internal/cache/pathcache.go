package cache

import (
	"sort"
	"strings"
	"sync"

	"github.com/packserve/packserve/internal/config"
	"github.com/packserve/packserve/internal/fileutil"
)

// ServerPathCache 把文件系统路径映射回其所属命名空间，供事件驱动 rescan
// 在每个 fsnotify 事件上做快速归属判断。条目按目录长度降序排列，遍历返回
// 第一个前缀命中即最长前缀匹配。重建整体替换且低频，读多写少用读写锁。
type ServerPathCache struct {
	mu      sync.RWMutex
	entries []pathEntry
}

type pathEntry struct {
	dir    string
	server string
}

// NewServerPathCache 构造空缓存。
func NewServerPathCache() *ServerPathCache {
	return &ServerPathCache{}
}

// Rebuild 依据启用的命名空间全量重建映射。
func (c *ServerPathCache) Rebuild(servers []config.ServerConfig, basePath string) {
	entries := make([]pathEntry, 0, len(servers))
	for _, s := range servers {
		if !s.Enabled {
			continue
		}
		entries = append(entries, pathEntry{
			dir:    fileutil.NormalizePath(fileutil.BuildServerPath(basePath, s.Name)),
			server: s.Name,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return len(entries[i].dir) > len(entries[j].dir)
	})

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
}

// FindServer 返回目录是 path 前缀的命名空间名；没有命中返回 ("", false)。
func (c *ServerPathCache) FindServer(path string) (string, bool) {
	normalized := fileutil.NormalizePath(path)

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, entry := range c.entries {
		if normalized == entry.dir || strings.HasPrefix(normalized, entry.dir+"/") {
			return entry.server, true
		}
	}
	return "", false
}

// Len 返回当前映射条目数。
func (c *ServerPathCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
