package models

import (
	"encoding/json"
	"time"
)

// HarvestReport 采集报告
type HarvestReport struct {
	// 运行信息
	RunID  string      `json:"run_id"`
	Engine string      `json:"engine"`
	Mode   HarvestMode `json:"mode"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	// 统计信息
	Summary HarvestSummary `json:"summary"`

	// 汇总表
	Rows []TableRow `json:"rows"`

	// 失败关键词
	FailedKeywords []FailedKeyword `json:"failed_keywords"`

	// 配置快照
	Config HarvestConfig `json:"config"`
}

// FailedKeyword 失败关键词信息
type FailedKeyword struct {
	TaskID   string `json:"task_id"`
	Keyword  string `json:"keyword"`
	ErrorMsg string `json:"error_msg"`
}

// ToJSON 序列化报告
func (r *HarvestReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
