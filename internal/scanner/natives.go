package scanner

import (
	"context"
	"os"
	"path/filepath"

	"github.com/packserve/packserve/internal/fileutil"
	"github.com/packserve/packserve/internal/metadata"
)

// scanNatives 逐个扫描 natives/{windows,linux,macos} 子目录并给记录打上 OS
// 标签。natives/ 目录不存在时返回 nil（None）；存在但为空时返回非 nil 空
// 切片（Some([])），两种状态在差异计算里有区别。
func (s *Scanner) scanNatives(ctx context.Context, serverPath, server string) ([]metadata.Native, error) {
	nativesDir := filepath.Join(serverPath, "natives")
	if _, err := os.Stat(nativesDir); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	natives := []metadata.Native{}
	for _, osName := range fileutil.NativeOSNames {
		osName := osName
		records, err := scanFilesParallel(
			ctx,
			filepath.Join(nativesDir, osName),
			false,
			nil,
			func(relPath string) string {
				return s.categoryURL(server, "natives", osName+"/"+relPath)
			},
			s.batch.Natives,
			s.bufferSize,
			s.logger,
		)
		if err != nil {
			return nil, err
		}

		for _, r := range records {
			natives = append(natives, metadata.Native{
				Name: r.FileName,
				URL:  r.URL,
				Path: osName + "/" + r.RelPath,
				SHA1: r.SHA1,
				Size: r.Size,
				OS:   osName,
			})
		}
	}

	return natives, nil
}
