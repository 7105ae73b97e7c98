package database

import "time"

// Status 是一次转换的结果
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Conversion 是转换记录表中的一行
type Conversion struct {
	ID           int64
	RunID        string // 同一次命令执行中的记录共享一个 RunID
	SourcePath   string
	SourceSHA256 string
	Formats      string   // 例如 "csv,xlsx"
	Settings     string   // 影响输出内容的其他配置
	Outputs      []string // 输出文件路径
	Rows         int
	DistinctUIDs int
	Status       Status
	Error        string
	ConvertedAt  time.Time
}

// ConversionStore 定义转换记录存储接口
type ConversionStore interface {
	RecordConversion(c *Conversion) error                        // 追加一条转换记录
	LastSuccess(sourcePath string) (*Conversion, error)          // 最近一次成功的转换，没有时返回 nil
	History(sourcePath string, limit int) ([]*Conversion, error) // 最近的转换记录，新的在前
	Close() error                                                // 关闭数据库连接
}
