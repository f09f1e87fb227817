package scanner

import (
	"context"
	"path/filepath"

	"github.com/packserve/packserve/internal/metadata"
)

// scanAssets 递归扫描 <ns>/assets/ 下的所有文件类型，扇出受 batch.assets 限流。
func (s *Scanner) scanAssets(ctx context.Context, serverPath, server string) ([]metadata.Asset, error) {
	records, err := scanFilesParallel(
		ctx,
		filepath.Join(serverPath, "assets"),
		true,
		nil,
		func(relPath string) string { return s.categoryURL(server, "assets", relPath) },
		s.batch.Assets,
		s.bufferSize,
		s.logger,
	)
	if err != nil {
		return nil, err
	}

	assets := make([]metadata.Asset, 0, len(records))
	for _, r := range records {
		assets = append(assets, metadata.Asset{
			Hash: r.SHA1,
			Size: r.Size,
			URL:  r.URL,
			Path: r.RelPath,
		})
	}
	return assets, nil
}
