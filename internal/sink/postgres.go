package sink

import (
	"context"
	"fmt"

	"github.com/RecoveryAshes/SerpHarvest/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Sink = (*Postgres)(nil)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS serp_records (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	keyword TEXT NOT NULL,
	position INTEGER,
	anchor_link TEXT,
	text_snippet TEXT,
	url TEXT,
	payload JSONB,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_serp_records_keyword ON serp_records (keyword);
CREATE TABLE IF NOT EXISTS keyword_rows (
	keyword TEXT NOT NULL,
	amount_of_results INTEGER NOT NULL,
	links_collected INTEGER NOT NULL,
	job_result BOOLEAN NOT NULL,
	error TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Postgres 写入PostgreSQL
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres 连接数据库并建表
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("连接Postgres失败: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("连接Postgres失败: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("初始化Postgres表失败: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// PostRow 实现 Sink
func (p *Postgres) PostRow(ctx context.Context, row models.TableRow) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO keyword_rows (keyword, amount_of_results, links_collected, job_result, error) VALUES ($1, $2, $3, $4, $5)`,
		row.Keyword, row.AmountOfResults, row.LinksCollected, row.JobResult, row.Error,
	)
	if err != nil {
		return fmt.Errorf("写入汇总行失败: %w", err)
	}
	return nil
}

// PostRecord 实现 Sink
func (p *Postgres) PostRecord(ctx context.Context, record models.StorageRecord) error {
	extra, err := payload(record)
	if err != nil {
		return err
	}

	var jsonPayload interface{}
	if extra != "" {
		jsonPayload = extra
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO serp_records (id, kind, keyword, position, anchor_link, text_snippet, url, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		record.ID, string(record.Kind), record.Keyword, record.Position,
		record.AnchorLink, record.TextSnippet, record.URL, jsonPayload, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("写入记录失败: %w", err)
	}
	return nil
}

// Close 实现 Sink
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
