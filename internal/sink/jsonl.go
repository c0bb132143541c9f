package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/RecoveryAshes/SerpHarvest/internal/models"
)

var _ Sink = (*JSONL)(nil)

// JSONL 每行一条记录
type JSONL struct {
	mu   sync.Mutex
	file *os.File
}

// NewJSONL 以追加方式打开文件
func NewJSONL(path string) (*JSONL, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("打开JSONL文件失败: %w", err)
	}
	return &JSONL{file: f}, nil
}

// PostRow 汇总行不写入JSONL
func (j *JSONL) PostRow(context.Context, models.TableRow) error {
	return nil
}

// PostRecord 实现 Sink
func (j *JSONL) PostRecord(_ context.Context, record models.StorageRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化记录失败: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("写入JSONL失败: %w", err)
	}
	return nil
}

// Close 实现 Sink
func (j *JSONL) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}
