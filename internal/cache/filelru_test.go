package cache

import (
	"fmt"
	"testing"
)

func entryOf(size int) *FileEntry {
	data := make([]byte, size)
	return &FileEntry{Data: data, Size: int64(size), MIMEType: "application/octet-stream"}
}

func TestFileLRUPutGet(t *testing.T) {
	lru := NewFileLRU(1 << 20)

	lru.Put("s1", "mods/x.jar", entryOf(100))
	entry, ok := lru.Get("s1", "mods/x.jar")
	if !ok || entry.Weight() != 100 {
		t.Fatalf("get after put failed: %v %v", entry, ok)
	}

	if _, ok := lru.Get("s1", "mods/missing.jar"); ok {
		t.Fatalf("unexpected hit for missing key")
	}
}

func TestFileLRUWeightNeverExceedsBudget(t *testing.T) {
	const budget = 64 * fileLRUShards // 每分片 64 字节
	lru := NewFileLRU(budget)

	for i := 0; i < 1000; i++ {
		lru.Put("s1", fmt.Sprintf("assets/file-%d", i), entryOf(16))

		_, bytes := lru.Stats()
		if bytes > budget {
			t.Fatalf("cached bytes %d exceed budget %d", bytes, budget)
		}
	}
}

func TestFileLRUEvictsLeastRecentlyUsed(t *testing.T) {
	lru := NewFileLRU(30 * fileLRUShards) // 每分片 30 字节

	// 收集落在同一分片的键，保证淘汰顺序可观测。
	target := lru.shardFor(fileKey("s1", "k0"))
	keys := []string{"k0"}
	for i := 1; len(keys) < 4; i++ {
		key := fmt.Sprintf("k%d", i)
		if lru.shardFor(fileKey("s1", key)) == target {
			keys = append(keys, key)
		}
	}

	lru.Put("s1", keys[0], entryOf(10))
	lru.Put("s1", keys[1], entryOf(10))
	lru.Put("s1", keys[2], entryOf(10))

	// 命中提升 keys[0]，此时 keys[1] 是最久未用。
	if _, ok := lru.Get("s1", keys[0]); !ok {
		t.Fatalf("expected hit for %s", keys[0])
	}

	lru.Put("s1", keys[3], entryOf(10))

	if _, ok := lru.Get("s1", keys[1]); ok {
		t.Fatalf("least recently used entry must be evicted")
	}
	if _, ok := lru.Get("s1", keys[0]); !ok {
		t.Fatalf("recently used entry must survive")
	}
}

func TestFileLRUOversizedEntrySkipped(t *testing.T) {
	lru := NewFileLRU(64 * fileLRUShards)

	lru.Put("s1", "big", entryOf(1<<20))
	if _, ok := lru.Get("s1", "big"); ok {
		t.Fatalf("oversized entry must not be cached")
	}
}

func TestFileLRUUnlimited(t *testing.T) {
	lru := NewFileLRU(0)

	for i := 0; i < 100; i++ {
		lru.Put("s1", fmt.Sprintf("f-%d", i), entryOf(1024))
	}
	entries, bytes := lru.Stats()
	if entries != 100 || bytes != 100*1024 {
		t.Fatalf("unlimited cache evicted: %d entries %d bytes", entries, bytes)
	}
}

func TestFileLRURemoveAndShutdown(t *testing.T) {
	lru := NewFileLRU(1 << 20)
	lru.Put("s1", "a", entryOf(10))
	lru.Remove("s1", "a")
	if _, ok := lru.Get("s1", "a"); ok {
		t.Fatalf("entry survived removal")
	}

	lru.Put("s1", "b", entryOf(10))
	lru.Shutdown()
	entries, bytes := lru.Stats()
	if entries != 0 || bytes != 0 {
		t.Fatalf("shutdown must drain cache: %d %d", entries, bytes)
	}
}

func TestFileLRUUpdateExistingKey(t *testing.T) {
	lru := NewFileLRU(1 << 20)
	lru.Put("s1", "a", entryOf(10))
	lru.Put("s1", "a", entryOf(20))

	entry, ok := lru.Get("s1", "a")
	if !ok || entry.Weight() != 20 {
		t.Fatalf("update failed: %v %v", entry, ok)
	}

	entries, bytes := lru.Stats()
	if entries != 1 || bytes != 20 {
		t.Fatalf("stats after update: %d entries %d bytes", entries, bytes)
	}
}
