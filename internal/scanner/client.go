package scanner

import (
	"context"
	"os"
	"path/filepath"

	"github.com/packserve/packserve/internal/fileutil"
	"github.com/packserve/packserve/internal/metadata"
)

// scanClient 在 <ns>/client/ 中取第一个 .jar 作为客户端主包；目录不存在或
// 没有 jar 时返回 nil。
func (s *Scanner) scanClient(ctx context.Context, serverPath, server string) (*metadata.Client, error) {
	clientDir := filepath.Join(serverPath, "client")

	entries, err := os.ReadDir(clientDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !isJarFile(entry.Name()) {
			continue
		}

		path := filepath.Join(clientDir, entry.Name())
		sha1sum, size, err := fileutil.ChecksumFile(path, s.bufferSize)
		if err != nil {
			s.logger.WithField("path", path).WithError(err).Warn("client checksum failed")
			return nil, nil
		}

		return &metadata.Client{
			Name: "client",
			URL:  s.categoryURL(server, "client", entry.Name()),
			Path: entry.Name(),
			SHA1: sha1sum,
			Size: size,
		}, nil
	}

	return nil, nil
}
