package processor

import (
	"context"
	"fmt"
	"path/filepath"
)

// Failure 是批量转换中失败的一个文件
type Failure struct {
	Path string
	Err  error
}

// Summary 汇总一次批量转换
type Summary struct {
	Total       int
	Succeeded   int // 包含 Skipped
	Skipped     int
	Failed      []Failure
	Interrupted bool // 因 ctx 取消而提前结束
}

// OK 当没有失败且没有被中断时返回 true
func (s Summary) OK() bool { return len(s.Failed) == 0 && !s.Interrupted }

func (s Summary) String() string {
	str := fmt.Sprintf("%d/%d files converted successfully", s.Succeeded, s.Total)
	if s.Skipped > 0 {
		str += fmt.Sprintf(" (%d unchanged)", s.Skipped)
	}
	return str
}

// ConvertAll 按顺序转换 paths。单个文件失败只记录日志，批次继续；
// ctx 取消时在两个文件之间停止。
func (p *Processor) ConvertAll(ctx context.Context, paths []string) Summary {
	sum := Summary{Total: len(paths)}
	for i, path := range paths {
		if ctx.Err() != nil {
			p.logger.Printf("Conversion interrupted, %d file(s) not processed.", len(paths)-i)
			sum.Interrupted = true
			break
		}
		p.logger.Printf("Processing %s (%d/%d)...", filepath.Base(path), i+1, len(paths))
		res, err := p.ConvertFile(ctx, path)
		if err != nil {
			p.logger.Printf("ERROR: Failed to convert %s: %v", filepath.Base(path), err)
			sum.Failed = append(sum.Failed, Failure{Path: path, Err: err})
			continue
		}
		sum.Succeeded++
		if res.Skipped {
			sum.Skipped++
		}
	}
	p.logger.Println(sum.String())
	return sum
}
