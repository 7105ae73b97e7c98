package scanner

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yleoer/stataconv/pkg/util"
)

// DTAScanner 负责在输入目录中发现 .dta 文件
type DTAScanner struct {
	logger *log.Logger
}

// NewDTAScanner 创建一个新的 DTAScanner 实例
func NewDTAScanner(logger *log.Logger) *DTAScanner {
	return &DTAScanner{logger: logger}
}

// ScanDTAFiles 列出 dir 下的 .dta 文件（扩展名不区分大小写），按文件名排序。
// 目录不存在时创建它并返回空列表。
func (s *DTAScanner) ScanDTAFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create input directory %s: %w", dir, err)
		}
		s.logger.Printf("Input directory %s did not exist and was created. Put .dta files there and run again.", dir)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !util.IsDTAFile(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	s.logger.Printf("Found %d .dta file(s) in %s", len(files), dir)
	return files, nil
}

// Resolve 把命令行参数映射为文件路径。参数可以是路径，也可以是输入目录中的
// 文件名（可省略 .dta 扩展名）。没有参数时返回目录中的全部 .dta 文件。
func (s *DTAScanner) Resolve(dir string, args []string) ([]string, error) {
	if len(args) == 0 {
		return s.ScanDTAFiles(dir)
	}

	seen := make(map[string]bool, len(args))
	var files []string
	for _, arg := range args {
		path, err := resolveOne(dir, arg)
		if err != nil {
			return nil, err
		}
		if seen[path] {
			continue
		}
		seen[path] = true
		files = append(files, path)
	}
	return files, nil
}

func resolveOne(dir, arg string) (string, error) {
	candidates := []string{arg, filepath.Join(dir, arg)}
	if !util.IsDTAFile(arg) {
		candidates = append(candidates, arg+".dta", filepath.Join(dir, arg+".dta"))
	}
	for _, c := range candidates {
		info, err := os.Stat(c)
		if err == nil && !info.IsDir() {
			return filepath.Clean(c), nil
		}
	}
	if strings.ContainsRune(arg, filepath.Separator) {
		return "", fmt.Errorf("input file %s not found", arg)
	}
	return "", fmt.Errorf("input file %s not found (also looked in %s)", arg, dir)
}
