package config

import "sync"

// Shared 是进程级共享的活动配置句柄：热更新期间单写者独占，其余场景并发读。
// Config 本身在加载后视为不可变，替换通过整体换指针完成。
type Shared struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewShared 包装一份已加载的配置。
func NewShared(cfg *Config) *Shared {
	return &Shared{cfg: cfg}
}

// Get 返回当前配置指针；调用方不得修改其内容。
func (s *Shared) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Replace 在写锁下整体替换配置。
func (s *Shared) Replace(cfg *Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}
