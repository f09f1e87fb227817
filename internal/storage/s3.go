package storage

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/packserve/packserve/internal/config"
)

// S3Backend 通过 S3 兼容 API（R2/MinIO/Spaces 等）发布文件。
type S3Backend struct {
	client    *minio.Client
	bucket    string
	publicURL string
	prefix    string
}

// NewS3Backend 解析 endpoint 并建立客户端；参数非法即返回错误，属启动致命。
func NewS3Backend(cfg config.S3Settings) (*S3Backend, error) {
	endpoint := cfg.Endpoint
	secure := true
	if strings.HasPrefix(endpoint, "http://") {
		endpoint = strings.TrimPrefix(endpoint, "http://")
		secure = false
	} else {
		endpoint = strings.TrimPrefix(endpoint, "https://")
	}
	endpoint = strings.TrimRight(endpoint, "/")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 s3 客户端失败: %w", err)
	}

	return &S3Backend{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		prefix:    strings.Trim(cfg.BucketPrefix, "/"),
	}, nil
}

func (b *S3Backend) objectKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return b.prefix + "/" + key
}

func (b *S3Backend) UploadFile(ctx context.Context, localPath, key string) (string, error) {
	object := b.objectKey(key)

	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := b.client.FPutObject(ctx, b.bucket, object, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", &UploadError{Key: object, Err: err}
	}
	return b.URLFor(key), nil
}

func (b *S3Backend) DeleteFile(ctx context.Context, key string) error {
	object := b.objectKey(key)
	if err := b.client.RemoveObject(ctx, b.bucket, object, minio.RemoveObjectOptions{}); err != nil {
		return &DeleteError{Key: object, Err: err}
	}
	return nil
}

func (b *S3Backend) URLFor(key string) string {
	return b.publicURL + "/" + b.objectKey(key)
}

func (b *S3Backend) IsRemote() bool {
	return true
}
