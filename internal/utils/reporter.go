package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/SerpHarvest/internal/models"
	"github.com/schollz/progressbar/v3"
)

// 报告文件名
const (
	HarvestReportFile  = "harvest_report.json"
	SerpResultsFile    = "serp_results.json"
	FailedKeywordsFile = "failed_keywords.json"
)

// Reporter 报告生成器
type Reporter struct {
	outputDir string
}

// NewReporter 创建报告生成器,报告写入 outputDir/reports
func NewReporter(outputDir string) *Reporter {
	return &Reporter{outputDir: outputDir}
}

// Dir 报告目录
func (r *Reporter) Dir() string {
	return filepath.Join(r.outputDir, "reports")
}

// GenerateReport 生成采集报告
// results 为所有任务的关键词结果(含递归相关词)
func (r *Reporter) GenerateReport(report *models.HarvestReport, results []models.SerpResult) error {
	reportsDir := r.Dir()
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return fmt.Errorf("创建报告目录失败: %w", err)
	}

	if results == nil {
		results = make([]models.SerpResult, 0)
	}
	failed := report.FailedKeywords
	if failed == nil {
		failed = make([]models.FailedKeyword, 0)
	}

	if err := r.saveJSONReport(reportsDir, HarvestReportFile, report); err != nil {
		return err
	}
	if err := r.saveJSONReport(reportsDir, SerpResultsFile, results); err != nil {
		return err
	}
	if err := r.saveJSONReport(reportsDir, FailedKeywordsFile, failed); err != nil {
		return err
	}

	Infof("✅ 报告已生成: %s", reportsDir)
	return nil
}

// saveJSONReport 保存JSON报告
func (r *Reporter) saveJSONReport(dir string, filename string, data interface{}) error {
	path := filepath.Join(dir, filename)

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", path)
	return nil
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
