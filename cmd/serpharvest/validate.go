package main

import (
	"fmt"
	"strings"

	"github.com/RecoveryAshes/SerpHarvest/internal/models"
	"github.com/RecoveryAshes/SerpHarvest/internal/sink"
	"github.com/RecoveryAshes/SerpHarvest/internal/utils"
)

// ValidateFlags 验证命令行标志
func ValidateFlags(
	engine string,
	mode string,
	pageLimit int,
	maxDepth int,
	threads int,
	formats []string,
) error {
	// 验证引擎
	switch strings.ToLower(engine) {
	case "yandex", "bing":
	default:
		return fmt.Errorf("不支持的搜索引擎: %s (有效值: yandex, bing)", engine)
	}

	// 验证模式
	validModes := map[string]bool{
		string(models.ModeDynamic): true,
		string(models.ModeStatic):  true,
	}
	if !validModes[strings.ToLower(mode)] {
		return fmt.Errorf("无效的浏览模式: %s (有效值: dynamic, static)", mode)
	}

	// 验证页数
	if pageLimit < 1 || pageLimit > 50 {
		return fmt.Errorf("翻页数必须在1-50之间,当前值: %d", pageLimit)
	}

	// 验证深度
	if maxDepth < 0 || maxDepth > 10 {
		return fmt.Errorf("递归深度必须在0-10之间,当前值: %d", maxDepth)
	}
	if maxDepth >= models.MaxSearchDepth {
		utils.Warnf("递归深度%d超过上限%d,将不会采集相关词", maxDepth, models.MaxSearchDepth-1)
	}

	// 验证并发数
	if threads < 1 || threads > 64 {
		return fmt.Errorf("并发数必须在1-64之间,当前值: %d", threads)
	}

	// 验证输出格式
	validFormats := map[string]bool{
		sink.FormatJSONL:    true,
		sink.FormatCSV:      true,
		sink.FormatSQLite:   true,
		sink.FormatPostgres: true,
	}
	for _, f := range formats {
		if !validFormats[strings.ToLower(strings.TrimSpace(f))] {
			return fmt.Errorf("不支持的输出格式: %s (有效值: jsonl, csv, sqlite, postgres)", f)
		}
	}

	return nil
}
