// Package sink 采集结果输出: 汇总表、JSONL、CSV、SQLite、Postgres
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/RecoveryAshes/SerpHarvest/internal/models"
	"github.com/rodaine/table"
)

// Sink 结果输出
// PostRow 每个关键词一行汇总, PostRecord 每条结果或相关词块一条记录
type Sink interface {
	PostRow(ctx context.Context, row models.TableRow) error
	PostRecord(ctx context.Context, record models.StorageRecord) error
	Close() error
}

var (
	_ Sink = (*Multi)(nil)
	_ Sink = (*Table)(nil)
)

// Multi 同时写入多个输出
type Multi struct {
	sinks []Sink
}

// NewMulti 组合多个输出,忽略nil
func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// PostRow 实现 Sink
func (m *Multi) PostRow(ctx context.Context, row models.TableRow) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.PostRow(ctx, row); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PostRecord 实现 Sink
func (m *Multi) PostRecord(ctx context.Context, record models.StorageRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.PostRecord(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close 实现 Sink
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Table 内存中的汇总表
type Table struct {
	mu   sync.Mutex
	rows []models.TableRow
}

// NewTable 创建汇总表
func NewTable() *Table {
	return &Table{rows: make([]models.TableRow, 0)}
}

// PostRow 实现 Sink
func (t *Table) PostRow(_ context.Context, row models.TableRow) error {
	t.mu.Lock()
	t.rows = append(t.rows, row)
	t.mu.Unlock()
	return nil
}

// PostRecord 汇总表不保存记录
func (t *Table) PostRecord(context.Context, models.StorageRecord) error {
	return nil
}

// Rows 返回汇总行的副本
func (t *Table) Rows() []models.TableRow {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows := make([]models.TableRow, len(t.rows))
	copy(rows, t.rows)
	return rows
}

// Print 以表格形式输出
func (t *Table) Print(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}

	header := make([]interface{}, 0, len(models.TableHeader))
	for _, h := range models.TableHeader {
		header = append(header, h)
	}

	tbl := table.New(header...).WithWriter(w)
	for _, row := range t.Rows() {
		tbl.AddRow(row.Keyword, row.AmountOfResults, row.LinksCollected, row.JobResult)
	}
	tbl.Print()
}

// Close 实现 Sink
func (t *Table) Close() error {
	return nil
}

// payload 记录的结构化部分序列化为JSON
func payload(record models.StorageRecord) (string, error) {
	var v interface{}
	switch record.Kind {
	case models.RecordSuggestions:
		v = record.Suggestions
	case models.RecordSerp:
		v = record.Serp
	default:
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("序列化记录失败: %w", err)
	}
	return string(data), nil
}
