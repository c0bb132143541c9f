package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/SerpHarvest/internal/utils"
)

// 支持的输出格式
const (
	FormatJSONL    = "jsonl"
	FormatCSV      = "csv"
	FormatSQLite   = "sqlite"
	FormatPostgres = "postgres"
)

// Options 输出配置
type Options struct {
	Dir         string   // 输出目录
	Formats     []string // 逐条记录的输出格式
	SQLitePath  string   // 为空时使用 Dir/serp_results.db
	PostgresDSN string
}

// Open 按配置创建输出,汇总表总是启用
func Open(ctx context.Context, opts Options) (*Multi, *Table, error) {
	if opts.Dir == "" {
		opts.Dir = "output"
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	summary := NewTable()
	sinks := []Sink{summary}

	closeAll := func() {
		for _, s := range sinks {
			s.Close()
		}
	}

	seen := make(map[string]bool)
	for _, format := range opts.Formats {
		format = strings.ToLower(strings.TrimSpace(format))
		if format == "" || seen[format] {
			continue
		}
		seen[format] = true

		var (
			s   Sink
			err error
		)
		switch format {
		case FormatJSONL:
			s, err = NewJSONL(filepath.Join(opts.Dir, "serp_records.jsonl"))
		case FormatCSV:
			s, err = NewCSV(filepath.Join(opts.Dir, "serp_records.csv"))
		case FormatSQLite:
			path := opts.SQLitePath
			if path == "" {
				path = filepath.Join(opts.Dir, "serp_results.db")
			}
			s, err = NewSQLite(path)
		case FormatPostgres:
			if opts.PostgresDSN == "" {
				err = fmt.Errorf("postgres 输出需要配置 output.postgres_dsn")
			} else {
				s, err = NewPostgres(ctx, opts.PostgresDSN)
			}
		default:
			err = fmt.Errorf("不支持的输出格式: %s", format)
		}

		if err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, s)
		utils.Infof("已启用输出: %s", format)
	}

	return NewMulti(sinks...), summary, nil
}
