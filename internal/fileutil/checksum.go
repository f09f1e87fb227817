package fileutil

// 分发协议要求每条记录携带 SHA-1 十六进制摘要（启动器按该算法核对文件），
// 因此这里固定使用 crypto/sha1 的流式实现。

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// DefaultChecksumBufferSize 是流式摘要的默认读缓冲大小。
const DefaultChecksumBufferSize = 8192

// ChecksumFile 以 bufferSize 为读缓冲流式计算文件的十六进制摘要与字节数，
// 内存占用与文件大小无关。
func ChecksumFile(path string, bufferSize int) (string, int64, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultChecksumBufferSize
	}

	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	hasher := sha1.New()
	buf := make([]byte, bufferSize)
	var total int64

	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
			total += int64(n)
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return "", 0, fmt.Errorf("read %s: %w", path, readErr)
		}
	}

	return hex.EncodeToString(hasher.Sum(nil)), total, nil
}

// ChecksumBytes 计算内存中数据的十六进制摘要，供文件缓存条目使用。
func ChecksumBytes(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}
