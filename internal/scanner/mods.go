package scanner

import (
	"context"
	"path/filepath"

	"github.com/packserve/packserve/internal/metadata"
)

// scanMods 平铺扫描 <ns>/mods/ 下的 jar，记录名即文件名。
func (s *Scanner) scanMods(ctx context.Context, serverPath, server string) ([]metadata.Mod, error) {
	records, err := scanFilesParallel(
		ctx,
		filepath.Join(serverPath, "mods"),
		false,
		isJarFile,
		func(relPath string) string { return s.categoryURL(server, "mods", relPath) },
		s.batch.Mods,
		s.bufferSize,
		s.logger,
	)
	if err != nil {
		return nil, err
	}

	mods := make([]metadata.Mod, 0, len(records))
	for _, r := range records {
		mods = append(mods, metadata.Mod{
			Name: r.FileName,
			URL:  r.URL,
			Path: r.RelPath,
			SHA1: r.SHA1,
			Size: r.Size,
		})
	}
	return mods, nil
}
