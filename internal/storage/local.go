package storage

import (
	"context"
	"strings"
)

// LocalBackend 表示文件由本进程直接对外服务，upload/delete 均为 no-op。
type LocalBackend struct {
	baseURL string
}

// NewLocalBackend 以 base_url 构造本地后端。
func NewLocalBackend(baseURL string) *LocalBackend {
	return &LocalBackend{baseURL: strings.TrimRight(baseURL, "/")}
}

func (b *LocalBackend) UploadFile(_ context.Context, _ string, key string) (string, error) {
	return b.URLFor(key), nil
}

func (b *LocalBackend) DeleteFile(_ context.Context, _ string) error {
	return nil
}

func (b *LocalBackend) URLFor(key string) string {
	return b.baseURL + "/" + key
}

func (b *LocalBackend) IsRemote() bool {
	return false
}
