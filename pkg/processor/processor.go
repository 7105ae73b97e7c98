package processor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding"

	"github.com/yleoer/stataconv/pkg/converter"
	"github.com/yleoer/stataconv/pkg/database"
	"github.com/yleoer/stataconv/pkg/identity"
	"github.com/yleoer/stataconv/pkg/stata"
	"github.com/yleoer/stataconv/pkg/util"
	"github.com/yleoer/stataconv/pkg/writer"
)

// Options 控制一次转换的输出
type Options struct {
	OutputDir      string
	Formats        []writer.Format
	SheetName      string
	LegacyEncoding encoding.Encoding // 旧版 .dta 的文本编码，nil 表示 UTF-8
	Force          bool              // 忽略转换记录，总是重新转换

	// 以下两项只用于判断上次的输出是否仍然适用
	OpenCCConfig string
	EncodingName string
}

// settings 把影响输出内容的配置压成一个字符串，写入转换记录
func (o Options) settings() string {
	return fmt.Sprintf("opencc=%s;encoding=%s;sheet=%s", o.OpenCCConfig, o.EncodingName, o.SheetName)
}

// Result 是单个文件的转换结果
type Result struct {
	Source  string
	Outputs []string
	Stats   identity.Stats
	Skipped bool // 内容与格式都未变化，沿用上次的输出
}

// Processor 负责把 .dta 文件转换为 CSV/XLSX
type Processor struct {
	opts       Options
	normalizer *converter.Normalizer
	writer     *writer.Writer
	store      database.ConversionStore // 可以为 nil
	runID      string
	logger     *log.Logger
}

// NewProcessor 创建一个新的 Processor 实例。store 为 nil 时不记录转换历史，
// normalizer 为 nil 时只做固定修正。
func NewProcessor(opts Options, normalizer *converter.Normalizer, store database.ConversionStore, logger *log.Logger) *Processor {
	if len(opts.Formats) == 0 {
		opts.Formats = []writer.Format{writer.CSV}
	}
	if normalizer == nil {
		normalizer = converter.NewNormalizer(nil)
	}
	return &Processor{
		opts:       opts,
		normalizer: normalizer,
		writer:     writer.New(opts.SheetName),
		store:      store,
		runID:      uuid.NewString(),
		logger:     logger,
	}
}

// RunID 返回本 Processor 写入转换记录时使用的批次 ID
func (p *Processor) RunID() string { return p.runID }

// ConvertFile 读取一个 .dta 文件，转换文字、生成 PersonUID 并写出所选格式。
// 读取失败返回 *LoadError；写入失败时其余格式仍会写出，返回 *WriteError（多个时合并）。
func (p *Processor) ConvertFile(ctx context.Context, path string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	res := &Result{Source: path}

	sum, err := util.FileSHA256(path)
	if err != nil {
		return nil, p.fail(path, "", &LoadError{Path: path, Err: err})
	}
	if p.upToDate(path, sum, res) {
		p.logger.Printf("  -> %s unchanged since last conversion. Skipping.", filepath.Base(path))
		return res, nil
	}

	start := time.Now()
	file, err := stata.ReadFile(path, stata.Options{LegacyEncoding: p.opts.LegacyEncoding})
	if err != nil {
		return nil, p.fail(path, sum, &LoadError{Path: path, Err: err})
	}
	t := file.Table
	p.logger.Printf("  -> Loaded %d rows x %d columns (release %d)%s", t.Len(), len(t.Columns), file.Release, describeMeta(file.Meta))

	p.normalizer.NormalizeTable(t)
	stats, err := identity.Annotate(t)
	if err != nil {
		return nil, p.fail(path, sum, &LoadError{Path: path, Err: err})
	}
	res.Stats = stats
	p.logger.Printf("  -> %s", stats)

	if err := os.MkdirAll(p.opts.OutputDir, 0755); err != nil {
		return nil, p.fail(path, sum, &WriteError{Path: path, Format: p.opts.Formats[0], Err: err})
	}
	var writeErrs []error
	for _, format := range p.opts.Formats {
		out := util.OutputPath(p.opts.OutputDir, path, format.Ext())
		if err := p.writer.Write(format, out, t); err != nil {
			p.logger.Printf("  -> ERROR: Failed to write %s: %v", out, err)
			writeErrs = append(writeErrs, &WriteError{Path: path, Format: format, Err: err})
			continue
		}
		res.Outputs = append(res.Outputs, out)
		p.logger.Printf("  -> Successfully created %s", out)
	}
	if len(writeErrs) > 0 {
		return res, p.fail(path, sum, errors.Join(writeErrs...))
	}

	p.record(&database.Conversion{
		SourcePath:   path,
		SourceSHA256: sum,
		Outputs:      res.Outputs,
		Rows:         stats.Rows,
		DistinctUIDs: stats.DistinctUIDs,
		Status:       database.StatusSucceeded,
	})
	p.logger.Printf("  -> Converted %s in %v", filepath.Base(path), time.Since(start).Round(time.Millisecond))
	return res, nil
}

// upToDate 判断上次成功的转换是否可以沿用：源文件内容、输出格式和相关配置都未变化，
// 且当前输出目录下的每个输出文件仍然存在
func (p *Processor) upToDate(path, sum string, res *Result) bool {
	if p.store == nil || p.opts.Force {
		return false
	}
	last, err := p.store.LastSuccess(path)
	if err != nil || last == nil {
		return false
	}
	if last.SourceSHA256 != sum || last.Formats != writer.JoinFormats(p.opts.Formats) || last.Settings != p.opts.settings() {
		return false
	}
	if len(last.Outputs) != len(p.opts.Formats) {
		return false
	}
	for i, format := range p.opts.Formats {
		out := util.OutputPath(p.opts.OutputDir, path, format.Ext())
		if last.Outputs[i] != out {
			return false
		}
		if _, err := os.Stat(out); err != nil {
			return false
		}
	}
	res.Outputs = last.Outputs
	res.Stats = identity.Stats{Rows: last.Rows, DistinctUIDs: last.DistinctUIDs}
	res.Skipped = true
	return true
}

// fail 记录失败并原样返回 err
func (p *Processor) fail(path, sum string, err error) error {
	p.record(&database.Conversion{
		SourcePath:   path,
		SourceSHA256: sum,
		Status:       database.StatusFailed,
		Error:        err.Error(),
	})
	return err
}

// record 写入转换记录，失败只记日志，不影响转换结果
func (p *Processor) record(c *database.Conversion) {
	if p.store == nil {
		return
	}
	c.RunID = p.runID
	c.Formats = writer.JoinFormats(p.opts.Formats)
	c.Settings = p.opts.settings()
	_ = p.store.RecordConversion(c)
}

func describeMeta(m stata.Meta) string {
	var s string
	if label, ok := m.DataLabel.Get(); ok {
		s += fmt.Sprintf(", label %q", label)
	}
	if ts, ok := m.Timestamp.Get(); ok {
		s += fmt.Sprintf(", saved %s", ts.Format("2006-01-02 15:04"))
	}
	return s
}
