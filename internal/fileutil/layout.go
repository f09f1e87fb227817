package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// NativeOSNames 是 natives 目录允许的操作系统子目录。
var NativeOSNames = []string{"windows", "linux", "macos"}

// EnsureServerStructure 创建命名空间的标准目录树：
//
//	<base>/<name>/{client,libraries,mods,natives/{windows,linux,macos},assets}
//
// 已存在的目录保持不变，返回命名空间根的绝对路径。
func EnsureServerStructure(basePath, server string) (string, error) {
	root := BuildServerPath(basePath, server)
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve server path: %w", err)
	}

	dirs := []string{
		abs,
		filepath.Join(abs, "client"),
		filepath.Join(abs, "libraries"),
		filepath.Join(abs, "mods"),
		filepath.Join(abs, "natives"),
		filepath.Join(abs, "assets"),
	}
	for _, osName := range NativeOSNames {
		dirs = append(dirs, filepath.Join(abs, "natives", osName))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return abs, nil
}
