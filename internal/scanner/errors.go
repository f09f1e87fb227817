package scanner

import "fmt"

// ServerNotFoundError 表示命名空间目录缺失，仅中止该命名空间的扫描。
type ServerNotFoundError struct {
	Server string
}

func (e *ServerNotFoundError) Error() string {
	return fmt.Sprintf("server folder does not exist: %s", e.Server)
}
