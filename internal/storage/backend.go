package storage

import (
	"context"
	"fmt"

	"github.com/packserve/packserve/internal/config"
)

// Backend 抽象文件的对外发布位置：本地直出或远端对象存储。
// 对象键统一为 {namespace}/{category}/{relative_path} 形式。
type Backend interface {
	// UploadFile 把本地文件发布到 key，返回公开 URL。本地后端为 no-op。
	UploadFile(ctx context.Context, localPath, key string) (string, error)

	// DeleteFile 删除 key 对应的对象，键不存在视为成功。本地后端为 no-op。
	DeleteFile(ctx context.Context, key string) error

	// URLFor 返回 key 的公开 URL，不触发任何网络操作。
	URLFor(key string) string

	// IsRemote 标识是否需要在 rescan 时同步上传/删除。
	IsRemote() bool
}

// NewBackend 依据配置构造后端；凭证或 endpoint 非法在启动阶段即失败。
func NewBackend(cfg *config.Config) (Backend, error) {
	switch cfg.Storage.Backend {
	case "local":
		return NewLocalBackend(cfg.Server.BaseURL), nil
	case "s3":
		return NewS3Backend(cfg.Storage.S3)
	default:
		return nil, fmt.Errorf("未知存储后端: %s", cfg.Storage.Backend)
	}
}
