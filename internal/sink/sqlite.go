package sink

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/RecoveryAshes/SerpHarvest/internal/models"
	_ "modernc.org/sqlite"
)

var _ Sink = (*SQLite)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS serp_records (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	keyword TEXT NOT NULL,
	position INTEGER,
	anchor_link TEXT,
	text_snippet TEXT,
	url TEXT,
	payload TEXT,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_serp_records_keyword ON serp_records (keyword);
CREATE TABLE IF NOT EXISTS keyword_rows (
	keyword TEXT NOT NULL,
	amount_of_results INTEGER NOT NULL,
	links_collected INTEGER NOT NULL,
	job_result BOOLEAN NOT NULL,
	error TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLite 写入SQLite数据库
type SQLite struct {
	db *sql.DB
}

// NewSQLite 打开数据库并建表
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开SQLite失败: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("初始化SQLite表失败: %w", err)
	}

	return &SQLite{db: db}, nil
}

// PostRow 实现 Sink
func (s *SQLite) PostRow(ctx context.Context, row models.TableRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO keyword_rows (keyword, amount_of_results, links_collected, job_result, error) VALUES (?, ?, ?, ?, ?)`,
		row.Keyword, row.AmountOfResults, row.LinksCollected, row.JobResult, row.Error,
	)
	if err != nil {
		return fmt.Errorf("写入汇总行失败: %w", err)
	}
	return nil
}

// PostRecord 实现 Sink
func (s *SQLite) PostRecord(ctx context.Context, record models.StorageRecord) error {
	extra, err := payload(record)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO serp_records (id, kind, keyword, position, anchor_link, text_snippet, url, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, string(record.Kind), record.Keyword, record.Position,
		record.AnchorLink, record.TextSnippet, record.URL, extra, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("写入记录失败: %w", err)
	}
	return nil
}

// Close 实现 Sink
func (s *SQLite) Close() error {
	return s.db.Close()
}
