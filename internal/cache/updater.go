package cache

import (
	"sync"

	"github.com/packserve/packserve/internal/metadata"
)

// SnapshotUpdater 是 orchestrator 对快照表的窄接口：只允许插入与读取，
// 避免 orchestrator 反向依赖 Manager。
type SnapshotUpdater interface {
	Insert(server string, builder *metadata.VersionBuilder)
	Get(server string) (*metadata.VersionBuilder, bool)
	Contains(server string) bool
}

// snapshotStore 以整体替换值的方式保存各命名空间的不可变快照句柄。
type snapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]*metadata.VersionBuilder
}

func newSnapshotStore() *snapshotStore {
	return &snapshotStore{snapshots: make(map[string]*metadata.VersionBuilder)}
}

func (s *snapshotStore) Insert(server string, builder *metadata.VersionBuilder) {
	s.mu.Lock()
	s.snapshots[server] = builder
	s.mu.Unlock()
}

func (s *snapshotStore) Get(server string) (*metadata.VersionBuilder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	builder, ok := s.snapshots[server]
	return builder, ok
}

func (s *snapshotStore) Contains(server string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.snapshots[server]
	return ok
}

// timestampStore 保存各命名空间的最近更新时间（RFC3339 字符串）。
type timestampStore struct {
	mu    sync.RWMutex
	times map[string]string
}

func newTimestampStore() *timestampStore {
	return &timestampStore{times: make(map[string]string)}
}

func (s *timestampStore) Set(server, ts string) {
	s.mu.Lock()
	s.times[server] = ts
	s.mu.Unlock()
}

func (s *timestampStore) Get(server string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.times[server]
	return ts, ok
}
