package scanner

import (
	"context"
	"path/filepath"

	"github.com/packserve/packserve/internal/fileutil"
	"github.com/packserve/packserve/internal/metadata"
)

// scanLibraries 递归扫描 <ns>/libraries/ 下的 jar，名称按 maven 坐标推导。
func (s *Scanner) scanLibraries(ctx context.Context, serverPath, server string) ([]metadata.Library, error) {
	records, err := scanFilesParallel(
		ctx,
		filepath.Join(serverPath, "libraries"),
		true,
		isJarFile,
		func(relPath string) string { return s.categoryURL(server, "libraries", relPath) },
		s.batch.Libraries,
		s.bufferSize,
		s.logger,
	)
	if err != nil {
		return nil, err
	}

	libs := make([]metadata.Library, 0, len(records))
	for _, r := range records {
		libs = append(libs, metadata.Library{
			Name: fileutil.PathToMavenCoordinate(r.RelPath),
			URL:  r.URL,
			Path: r.RelPath,
			SHA1: r.SHA1,
			Size: r.Size,
		})
	}
	return libs, nil
}
