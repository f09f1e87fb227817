package fileutil

import (
	"path/filepath"
	"strings"
)

// NormalizePath 把平台相对路径转成快照/索引统一使用的 `/` 分隔形式。
func NormalizePath(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}

// PathToMavenCoordinate 把 g1/g2/.../artifact/version/artifact-version.ext
// 转换为 g1.g2...:artifact:version。组件不足时原样返回规范化路径。
func PathToMavenCoordinate(relPath string) string {
	normalized := NormalizePath(relPath)
	components := strings.Split(strings.Trim(normalized, "/"), "/")
	if len(components) < 4 {
		return normalized
	}

	group := strings.Join(components[:len(components)-3], ".")
	artifact := components[len(components)-3]
	version := components[len(components)-2]
	return group + ":" + artifact + ":" + version
}

// StripNamespacePrefix 去掉 "ns/category/x" 里的命名空间首段，得到索引值
// 形式 "category/x"；没有分隔符时原样返回。
func StripNamespacePrefix(localPath string) string {
	if idx := strings.IndexByte(localPath, '/'); idx >= 0 {
		return localPath[idx+1:]
	}
	return localPath
}

// BuildServerPath 拼出命名空间的磁盘根目录。
func BuildServerPath(basePath, server string) string {
	return filepath.Join(basePath, server)
}
