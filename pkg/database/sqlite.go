package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// sqliteStore 是 ConversionStore 接口的 SQLite 实现
type sqliteStore struct {
	db     *sql.DB
	logger *log.Logger
}

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS conversions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		source_path TEXT NOT NULL,
		source_sha256 TEXT NOT NULL,
		formats TEXT NOT NULL,
		settings TEXT NOT NULL DEFAULT '',
		outputs TEXT NOT NULL DEFAULT '',
		rows INTEGER NOT NULL DEFAULT 0,
		distinct_uids INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		converted_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_conversions_source ON conversions (source_path, id);
	`

// 早期的数据库没有 settings 列
const addSettingsSQL = `ALTER TABLE conversions ADD COLUMN settings TEXT NOT NULL DEFAULT ''`

const selectColumns = `id, run_id, source_path, source_sha256, formats, settings, outputs, rows, distinct_uids, status, error, converted_at`

// NewSQLiteStore 初始化 SQLite 数据库并返回 ConversionStore 接口实例
func NewSQLiteStore(dataSourceName string, log *log.Logger) (ConversionStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// 尝试创建表，如果不存在
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close() // 创建表失败也要关闭连接
		return nil, fmt.Errorf("failed to create conversions table: %w", err)
	}
	if _, err := db.Exec(addSettingsSQL); err != nil && !strings.Contains(err.Error(), "duplicate column name") {
		db.Close()
		return nil, fmt.Errorf("failed to migrate conversions table: %w", err)
	}
	log.Printf("SQLite database initialized at: %s", dataSourceName)
	return &sqliteStore{db: db, logger: log}, nil
}

// Close 关闭数据库连接
func (s *sqliteStore) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.logger.Println("SQLite database connection closed.")
		return err
	}
	return nil
}

// RecordConversion 追加一条转换记录，成功后回填 ID
func (s *sqliteStore) RecordConversion(c *Conversion) error {
	if c.ConvertedAt.IsZero() {
		c.ConvertedAt = time.Now()
	}
	res, err := s.db.Exec(
		`INSERT INTO conversions (run_id, source_path, source_sha256, formats, settings, outputs, rows, distinct_uids, status, error, converted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.RunID, c.SourcePath, c.SourceSHA256, c.Formats, c.Settings, strings.Join(c.Outputs, "\n"),
		c.Rows, c.DistinctUIDs, string(c.Status), c.Error, c.ConvertedAt,
	)
	if err != nil {
		s.logger.Printf("ERROR: Failed to record conversion of %s: %v", c.SourcePath, err)
		return fmt.Errorf("failed to record conversion of %s: %w", c.SourcePath, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		c.ID = id
	}
	return nil
}

// LastSuccess 返回 sourcePath 最近一次成功的转换，没有时返回 nil
func (s *sqliteStore) LastSuccess(sourcePath string) (*Conversion, error) {
	row := s.db.QueryRow(
		`SELECT `+selectColumns+` FROM conversions WHERE source_path = ? AND status = ? ORDER BY id DESC LIMIT 1`,
		sourcePath, string(StatusSucceeded),
	)
	c, err := scanConversion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.logger.Printf("ERROR: Failed to look up last conversion of %s: %v", sourcePath, err)
		return nil, fmt.Errorf("failed to look up last conversion of %s: %w", sourcePath, err)
	}
	return c, nil
}

// History 返回 sourcePath 最近的 limit 条转换记录，新的在前
func (s *sqliteStore) History(sourcePath string, limit int) ([]*Conversion, error) {
	rows, err := s.db.Query(
		`SELECT `+selectColumns+` FROM conversions WHERE source_path = ? ORDER BY id DESC LIMIT ?`,
		sourcePath, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history of %s: %w", sourcePath, err)
	}
	defer rows.Close()

	var out []*Conversion
	for rows.Next() {
		c, err := scanConversion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read history of %s: %w", sourcePath, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversion(row scanner) (*Conversion, error) {
	var (
		c       Conversion
		outputs string
		status  string
	)
	err := row.Scan(&c.ID, &c.RunID, &c.SourcePath, &c.SourceSHA256, &c.Formats, &c.Settings, &outputs,
		&c.Rows, &c.DistinctUIDs, &status, &c.Error, &c.ConvertedAt)
	if err != nil {
		return nil, err
	}
	if outputs != "" {
		c.Outputs = strings.Split(outputs, "\n")
	}
	c.Status = Status(status)
	return &c, nil
}
