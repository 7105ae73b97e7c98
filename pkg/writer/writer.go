// Package writer 把文本表序列化为带 BOM 的 CSV 或单工作表 XLSX。
package writer

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/yleoer/stataconv/pkg/table"
	"github.com/yleoer/stataconv/pkg/util"
)

const bom = "\uFEFF"

// DefaultSheet 是 XLSX 输出的默认工作表名
const DefaultSheet = "Sheet1"

// Writer 按格式写出表格
type Writer struct {
	sheet string
}

// New 创建 Writer，sheet 为 XLSX 工作表名，空串使用 DefaultSheet
func New(sheet string) *Writer {
	if sheet == "" {
		sheet = DefaultSheet
	}
	return &Writer{sheet: util.SanitizeSheetName(sheet)}
}

// Write 按 format 把 t 写到 path
func (w *Writer) Write(format Format, path string, t *table.Table) error {
	switch format {
	case CSV:
		return WriteCSV(path, t)
	case XLSX:
		return WriteXLSX(path, t, w.sheet)
	}
	return fmt.Errorf("unknown output format %q", format)
}

// WriteCSV 写出 UTF-8 BOM + RFC 4180 CSV，行尾为 \n
func WriteCSV(path string, t *table.Table) error {
	return writeAtomic(path, func(w io.Writer) error {
		if _, err := io.WriteString(w, bom); err != nil {
			return err
		}
		cw := csv.NewWriter(w)
		if err := cw.Write(t.Columns); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
		if err := cw.WriteAll(t.Rows); err != nil {
			return fmt.Errorf("failed to write CSV rows: %w", err)
		}
		return nil
	})
}

// WriteXLSX 用 excelize 的流式写入生成只有一个工作表的 .xlsx
func WriteXLSX(path string, t *table.Table, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet != DefaultSheet {
		if err := f.SetSheetName(DefaultSheet, sheet); err != nil {
			return fmt.Errorf("failed to rename sheet: %w", err)
		}
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	values := make([]interface{}, len(t.Columns))
	setRow := func(n int, row []string) error {
		for i, v := range row {
			values[i] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, n)
		if err != nil {
			return err
		}
		return sw.SetRow(cell, values)
	}
	if err := setRow(1, t.Columns); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}
	for i, row := range t.Rows {
		if err := setRow(i+2, row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}

	return writeAtomic(path, func(w io.Writer) error {
		return f.Write(w)
	})
}
