package writer

import (
	"fmt"
	"strings"
)

// Format 是输出文件格式
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// Ext 返回带点的扩展名
func (f Format) Ext() string { return "." + string(f) }

// ParseFormats 解析格式选择：csv、xlsx、both，或逗号分隔的列表。
// 结果去重并保持 csv 在前。
func ParseFormats(s string) ([]Format, error) {
	var csv, xlsx bool
	for _, part := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "csv":
			csv = true
		case "xlsx", "excel":
			xlsx = true
		case "both", "all":
			csv, xlsx = true, true
		case "":
		default:
			return nil, fmt.Errorf("unknown output format %q (want csv, xlsx or both)", strings.TrimSpace(part))
		}
	}
	var formats []Format
	if csv {
		formats = append(formats, CSV)
	}
	if xlsx {
		formats = append(formats, XLSX)
	}
	if len(formats) == 0 {
		return nil, fmt.Errorf("no output format selected")
	}
	return formats, nil
}

// JoinFormats 把格式列表拼成 "csv,xlsx" 形式，用于记录
func JoinFormats(formats []Format) string {
	parts := make([]string, len(formats))
	for i, f := range formats {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}
