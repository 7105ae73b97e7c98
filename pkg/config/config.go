package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DTADir         string        `json:"dta_dir"`         // .dta 输入目录
	OutputDir      string        `json:"output_dir"`      // CSV/XLSX 输出目录
	DataDir        string        `json:"data_dir"`        // SQLite 转换记录存放目录
	DBFileName     string        `json:"db_file_name"`    // SQLite 数据库文件名
	DBPath         string        `json:"-"`               // 完整的数据库文件路径
	OutputFormat   string        `json:"output_format"`   // csv、xlsx 或 both
	OpenCCConfig   string        `json:"opencc_config"`   // OpenCC 转换配置，默认 s2t
	LegacyEncoding string        `json:"legacy_encoding"` // 旧版 .dta 的文本编码
	SheetName      string        `json:"sheet_name"`      // XLSX 工作表名
	WatchDebounce  time.Duration `json:"watch_debounce"`  // 监听模式下文件安静多久后开始转换
}

const (
	dtaDir    = "dta"
	outputDir = "output"
	dataDir   = "data"

	dbFileName     = "conversions.db"
	outputFormat   = "csv"
	openCCConfig   = "s2t"
	legacyEncoding = "gb18030"
	sheetName      = "Sheet1"

	watchDebounce = 5 * time.Second
)

// LoadConfig 从环境变量或默认值加载配置
func LoadConfig() (*Config, error) {
	// 尝试加载 .env 文件
	_ = godotenv.Load()

	cfg := &Config{
		DTADir:         getenvOrDefault("DTA_DIR", dtaDir),
		OutputDir:      getenvOrDefault("OUTPUT_DIR", outputDir),
		DataDir:        getenvOrDefault("DATA_DIR", dataDir),
		DBFileName:     getenvOrDefault("DB_FILE_NAME", dbFileName),
		OutputFormat:   getenvOrDefault("OUTPUT_FORMAT", outputFormat),
		OpenCCConfig:   getenvOrDefault("OPENCC_CONFIG", openCCConfig),
		LegacyEncoding: getenvOrDefault("LEGACY_ENCODING", legacyEncoding),
		SheetName:      getenvOrDefault("SHEET_NAME", sheetName),
		WatchDebounce:  parseDurationOrDefault(os.Getenv("WATCH_DEBOUNCE"), watchDebounce),
	}
	cfg.DBPath = filepath.Join(cfg.DataDir, cfg.DBFileName)
	return cfg, nil
}

// EnsureDirs 创建输出目录和数据库目录。输入目录由扫描器负责创建。
func (c *Config) EnsureDirs() error {
	if err := os.MkdirAll(c.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", c.OutputDir, err)
	}
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create database directory %s: %w", c.DataDir, err)
	}
	return nil
}

func getenvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func parseDurationOrDefault(s string, defaultValue time.Duration) time.Duration {
	if s == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Warning: Could not parse duration '%s', using default '%v'. Error: %v", s, defaultValue, err)
		return defaultValue
	}
	return d
}
