package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/packserve/packserve/internal/fileutil"
)

// fileRecord 是分类扫描器映射函数的输入：一个已完成摘要计算的候选文件。
type fileRecord struct {
	FileName string
	RelPath  string // 分类目录内的相对路径，`/` 分隔
	URL      string
	SHA1     string
	Size     int64
}

// scanFilesParallel 先同步收集 dir 下满足 filter 的文件（recursive 控制是否
// 深入子目录），再以 concurrency 为上限并发计算摘要并生成 fileRecord。单个
// 文件失败只记日志并被过滤，不影响同分类的其余文件；完成顺序不保证。
func scanFilesParallel(
	ctx context.Context,
	dir string,
	recursive bool,
	filter func(path string) bool,
	urlFor func(relPath string) string,
	concurrency int,
	bufferSize int,
	logger *logrus.Logger,
) ([]fileRecord, error) {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	paths, walkErr := collectPaths(dir, recursive, filter, logger)
	if walkErr != nil {
		return nil, walkErr
	}
	if len(paths) == 0 {
		return nil, nil
	}

	if concurrency <= 0 {
		concurrency = 1
	}

	p := pool.NewWithResults[*fileRecord]().WithMaxGoroutines(concurrency).WithContext(ctx)
	for _, path := range paths {
		path := path
		p.Go(func(ctx context.Context) (*fileRecord, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			rel, err := filepath.Rel(dir, path)
			if err != nil {
				logger.WithField("path", path).WithError(err).Warn("strip prefix failed")
				return nil, nil
			}

			sha1sum, size, err := fileutil.ChecksumFile(path, bufferSize)
			if err != nil {
				logger.WithField("path", path).WithError(err).Warn("checksum failed")
				return nil, nil
			}

			relPath := fileutil.NormalizePath(rel)
			return &fileRecord{
				FileName: filepath.Base(path),
				RelPath:  relPath,
				URL:      urlFor(relPath),
				SHA1:     sha1sum,
				Size:     size,
			}, nil
		})
	}

	results, err := p.Wait()
	if err != nil {
		return nil, err
	}

	records := make([]fileRecord, 0, len(results))
	for _, r := range results {
		if r != nil {
			records = append(records, *r)
		}
	}
	return records, nil
}

func collectPaths(dir string, recursive bool, filter func(path string) bool, logger *logrus.Logger) ([]string, error) {
	var paths []string

	if !recursive {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if filter == nil || filter(path) {
				paths = append(paths, path)
			}
		}
		return paths, nil
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.WithFields(logrus.Fields{
				"action": "scan_walk",
				"path":   path,
			}).WithError(err).Warn("skip unreadable entry")
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if filter == nil || filter(path) {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

func isJarFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".jar")
}
