package cache

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/packserve/packserve/internal/fileutil"
)

// FileEntry 是文件正文在内存缓存里的形态，权重即字节长度。
type FileEntry struct {
	Data     []byte
	SHA1     string
	Size     int64
	MIMEType string
}

// Weight 返回条目占用的字节数。
func (e *FileEntry) Weight() int64 {
	return int64(len(e.Data))
}

// LoadFileEntry 从磁盘读入整个文件并计算摘要与内容类型。
func LoadFileEntry(path string) (*FileEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return &FileEntry{
		Data:     data,
		SHA1:     fileutil.ChecksumBytes(data),
		Size:     int64(len(data)),
		MIMEType: DetectContentType(path),
	}, nil
}

// DetectContentType 按扩展名推断内容类型，未知时退回 octet-stream。
func DetectContentType(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
