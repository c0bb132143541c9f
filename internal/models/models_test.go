package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"有效的HTTP URL", "http://example.com", false},
		{"有效的HTTPS URL", "https://ya.ru/search/?text=go", false},
		{"无效的协议", "ftp://example.com", true},
		{"无效的URL", "not a url", true},
		{"空URL", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func validConfig() HarvestConfig {
	return HarvestConfig{
		Engine:             "yandex",
		Mode:               ModeDynamic,
		PageLimit:          3,
		MaxDepth:           1,
		Threads:            2,
		CaptchaMaxAttempts: 5,
	}
}

func TestHarvestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *HarvestConfig)
		wantErr bool
	}{
		{"有效配置", func(c *HarvestConfig) {}, false},
		{"bing引擎", func(c *HarvestConfig) { c.Engine = "Bing" }, false},
		{"未知引擎", func(c *HarvestConfig) { c.Engine = "google" }, true},
		{"无效模式", func(c *HarvestConfig) { c.Mode = "all" }, true},
		{"翻页数为0", func(c *HarvestConfig) { c.PageLimit = 0 }, true},
		{"负深度", func(c *HarvestConfig) { c.MaxDepth = -1 }, true},
		{"并发数过大", func(c *HarvestConfig) { c.Threads = 65 }, true},
		{"验证码次数为0", func(c *HarvestConfig) { c.CaptchaMaxAttempts = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHarvestConfig_ExpansionEnabled(t *testing.T) {
	tests := []struct {
		name     string
		flag     bool
		maxDepth int
		want     bool
	}{
		{"未开启", false, 2, false},
		{"深度为0", true, 0, false},
		{"深度为负", true, -1, false},
		{"深度为1", true, 1, true},
		{"深度为4", true, 4, true},
		{"深度为5", true, 5, false},
		{"深度过大", true, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := HarvestConfig{AlsoSearchedFor: tt.flag, MaxDepth: tt.maxDepth}
			if got := cfg.ExpansionEnabled(); got != tt.want {
				t.Errorf("ExpansionEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseProxyLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantErr  bool
		wantAddr string
		wantAuth bool
	}{
		{"无认证", "10.0.0.1:8080", false, "10.0.0.1:8080", false},
		{"带认证", "proxy.local:3128:user:secret", false, "proxy.local:3128", true},
		{"首尾空白", "  10.0.0.1:8080 \n", false, "10.0.0.1:8080", false},
		{"缺少端口", "10.0.0.1", true, "", false},
		{"端口非数字", "10.0.0.1:abc", true, "", false},
		{"端口越界", "10.0.0.1:70000", true, "", false},
		{"三段格式", "10.0.0.1:8080:user", true, "", false},
		{"空行", "", true, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseProxyLine(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseProxyLine() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if p.Address() != tt.wantAddr {
				t.Errorf("Address() = %v, want %v", p.Address(), tt.wantAddr)
			}
			if p.HasAuth() != tt.wantAuth {
				t.Errorf("HasAuth() = %v, want %v", p.HasAuth(), tt.wantAuth)
			}
		})
	}
}

func TestProxy_Redacted(t *testing.T) {
	p, err := ParseProxyLine("proxy.local:3128:user:secret")
	if err != nil {
		t.Fatalf("ParseProxyLine() error = %v", err)
	}

	if strings.Contains(p.Redacted(), "secret") {
		t.Errorf("脱敏结果包含密码: %s", p.Redacted())
	}
	if !strings.Contains(p.URL(), "user:secret@") {
		t.Errorf("代理URL缺少认证信息: %s", p.URL())
	}

	// 密码不应被序列化
	data, _ := json.Marshal(p)
	if strings.Contains(string(data), "secret") {
		t.Errorf("JSON包含密码: %s", data)
	}
}

func TestDedupeKeywords(t *testing.T) {
	unique, dups := DedupeKeywords([]string{"alpha", " beta ", "", "alpha", "beta  ", "gamma   delta"})

	want := []string{"alpha", "beta", "gamma delta"}
	if len(unique) != len(want) {
		t.Fatalf("去重后数量 = %d, want %d (%v)", len(unique), len(want), unique)
	}
	for i := range want {
		if unique[i] != want[i] {
			t.Errorf("unique[%d] = %q, want %q", i, unique[i], want[i])
		}
	}
	if len(dups) != 2 {
		t.Errorf("重复项数量 = %d, want 2", len(dups))
	}
}

func TestNewHarvestTask(t *testing.T) {
	task := NewHarvestTask("golang", nil)

	if task.ID == "" {
		t.Error("任务ID不应为空")
	}
	if task.Keyword != "golang" {
		t.Errorf("Keyword = %v, want golang", task.Keyword)
	}
	if task.Status != TaskStatusPending {
		t.Errorf("Status = %v, want %v", task.Status, TaskStatusPending)
	}
	if other := NewHarvestTask("golang", nil); other.ID == task.ID {
		t.Error("两个任务ID不应相同")
	}
}

func TestSerpResult_JSONKeys(t *testing.T) {
	serp := NewSerpResult("alpha")
	serp.SearchResults = append(serp.SearchResults, SearchResult{Position: 1, URL: "https://a.example", AnchorLink: "A", TextSnippet: "s"})
	serp.RelatedKeywords = append(serp.RelatedKeywords, SearchSuggestion{Suggestion: "beta", URL: "https://ya.ru/search/?text=beta"})
	serp.AmountOfResults = 1

	data, err := json.Marshal(serp)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	for _, key := range []string{`"keyword"`, `"relatedKeywords"`, `"amountOfResults"`, `"searchResults"`, `"anchorLink"`, `"textSnippet"`, `"suggestion"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("JSON缺少字段 %s: %s", key, data)
		}
	}
	if !serp.Consistent() {
		t.Error("结果数量应与列表一致")
	}
}

func TestStorageRecord_Fields(t *testing.T) {
	rec := NewResultRecord("alpha", SearchResult{Position: 3, URL: "https://a.example"})
	if rec.Kind != RecordResult || rec.Position != 3 {
		t.Errorf("记录内容错误: %+v", rec)
	}
	if got := strings.Join(rec.Fields(), ","); got != "keyword,position,anchor,snippet,url" {
		t.Errorf("Fields() = %v", got)
	}

	sug := NewSuggestionsRecord("alpha", []SearchSuggestion{{Suggestion: "beta"}})
	if len(sug.Fields()) != 2 {
		t.Errorf("相关词记录字段数 = %d, want 2", len(sug.Fields()))
	}
	if sug.ID == rec.ID {
		t.Error("记录ID不应相同")
	}
}

func TestHarvestSummary_Add(t *testing.T) {
	var summary HarvestSummary
	summary.Add(HarvestOutcome{
		Status: TaskStatusCompleted,
		Results: []SerpResult{
			{Keyword: "alpha", SearchResults: make([]SearchResult, 10)},
			{Keyword: "beta", SearchResults: make([]SearchResult, 5)},
		},
	})
	summary.Add(HarvestOutcome{Status: TaskStatusFailed})
	summary.Add(HarvestOutcome{Status: TaskStatusSkipped})

	if summary.TotalTasks != 3 || summary.CompletedTasks != 1 || summary.FailedTasks != 1 || summary.SkippedTasks != 1 {
		t.Errorf("任务计数错误: %+v", summary)
	}
	if summary.TotalKeywords != 2 {
		t.Errorf("TotalKeywords = %d, want 2", summary.TotalKeywords)
	}
	if summary.TotalLinks != 15 {
		t.Errorf("TotalLinks = %d, want 15", summary.TotalLinks)
	}
}

func TestHarvestReport_JSON(t *testing.T) {
	report := &HarvestReport{
		RunID:     "run-1",
		Engine:    "bing",
		Mode:      ModeDynamic,
		StartTime: time.Now(),
		EndTime:   time.Now().Add(time.Minute),
		Rows:      []TableRow{{Keyword: "alpha", AmountOfResults: 23, LinksCollected: 23, JobResult: true}},
	}

	data, err := report.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	var decoded HarvestReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.RunID != report.RunID || len(decoded.Rows) != 1 || decoded.Rows[0].AmountOfResults != 23 {
		t.Errorf("解码后的报告不匹配: %+v", decoded)
	}
}
