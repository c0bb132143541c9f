package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/RecoveryAshes/SerpHarvest/internal/models"
)

var _ Sink = (*CSV)(nil)

// csvHeader CSV列顺序
var csvHeader = []string{
	"id",
	"kind",
	"keyword",
	"position",
	"anchor",
	"snippet",
	"url",
	"payload_json",
	"created_at",
}

// CSV 逐条写入CSV
type CSV struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSV 以追加方式打开文件,空文件写入表头
func NewCSV(path string) (*CSV, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("打开CSV文件失败: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("读取CSV文件信息失败: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("写入CSV表头失败: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("写入CSV表头失败: %w", err)
		}
	}

	return &CSV{file: f, writer: w}, nil
}

// PostRow 汇总行不写入CSV
func (c *CSV) PostRow(context.Context, models.TableRow) error {
	return nil
}

// PostRecord 实现 Sink
func (c *CSV) PostRecord(_ context.Context, record models.StorageRecord) error {
	extra, err := payload(record)
	if err != nil {
		return err
	}

	position := ""
	if record.Kind == models.RecordResult {
		position = strconv.Itoa(record.Position)
	}

	line := []string{
		record.ID,
		string(record.Kind),
		record.Keyword,
		position,
		record.AnchorLink,
		record.TextSnippet,
		record.URL,
		extra,
		record.CreatedAt.Format(time.RFC3339),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.writer.Write(line); err != nil {
		return fmt.Errorf("写入CSV失败: %w", err)
	}
	c.writer.Flush()
	return c.writer.Error()
}

// Close 实现 Sink
func (c *CSV) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		c.file.Close()
		return err
	}
	return c.file.Close()
}
