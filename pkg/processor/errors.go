package processor

import (
	"fmt"
	"path/filepath"

	"github.com/yleoer/stataconv/pkg/writer"
)

// LoadError 表示输入文件无法读取或解析，该文件被放弃
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", filepath.Base(e.Path), e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// WriteError 表示某一种输出格式写入失败，其余格式仍会尝试
type WriteError struct {
	Path   string
	Format writer.Format
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %s output for %s: %v", e.Format, filepath.Base(e.Path), e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
