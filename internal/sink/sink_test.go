package sink

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RecoveryAshes/SerpHarvest/internal/models"
)

func sampleRecords() []models.StorageRecord {
	serp := models.NewSerpResult("golang")
	serp.SearchResults = append(serp.SearchResults, models.SearchResult{Position: 1, URL: "https://go.dev", AnchorLink: "Go", TextSnippet: "The Go language"})
	serp.AmountOfResults = 1

	return []models.StorageRecord{
		models.NewResultRecord("golang", serp.SearchResults[0]),
		models.NewSuggestionsRecord("golang", []models.SearchSuggestion{{Suggestion: "golang tutorial", URL: "https://ya.ru/search/?text=golang+tutorial"}}),
		models.NewSerpRecord(serp),
	}
}

func TestTable(t *testing.T) {
	ctx := context.Background()
	tbl := NewTable()

	tbl.PostRow(ctx, models.TableRow{Keyword: "golang", AmountOfResults: 23, LinksCollected: 23, JobResult: true})
	tbl.PostRow(ctx, models.TableRow{Keyword: "rust", Error: "timeout"})

	rows := tbl.Rows()
	if len(rows) != 2 {
		t.Fatalf("行数 = %d, want 2", len(rows))
	}
	rows[0].Keyword = "changed"
	if tbl.Rows()[0].Keyword != "golang" {
		t.Error("Rows() 应返回副本")
	}

	var buf bytes.Buffer
	tbl.Print(&buf)
	out := buf.String()
	for _, want := range []string{"Keyword", "Amount of links collected", "golang", "23", "false"} {
		if !strings.Contains(out, want) {
			t.Errorf("输出缺少 %q:\n%s", want, out)
		}
	}
}

type failingSink struct{ Table }

func (f *failingSink) PostRecord(context.Context, models.StorageRecord) error {
	return errors.New("disk full")
}

func TestMulti(t *testing.T) {
	ctx := context.Background()
	a, b := NewTable(), NewTable()
	m := NewMulti(a, nil, b)

	if err := m.PostRow(ctx, models.TableRow{Keyword: "x"}); err != nil {
		t.Fatalf("PostRow() error = %v", err)
	}
	if len(a.Rows()) != 1 || len(b.Rows()) != 1 {
		t.Error("每个输出都应收到汇总行")
	}

	broken := NewMulti(a, &failingSink{})
	if err := broken.PostRecord(ctx, sampleRecords()[0]); err == nil {
		t.Error("任一输出失败应返回错误")
	}
}

func TestJSONL(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "records.jsonl")

	s, err := NewJSONL(path)
	if err != nil {
		t.Fatalf("NewJSONL() error = %v", err)
	}
	for _, r := range sampleRecords() {
		if err := s.PostRecord(ctx, r); err != nil {
			t.Fatalf("PostRecord() error = %v", err)
		}
	}
	s.PostRow(ctx, models.TableRow{Keyword: "golang"})
	s.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("打开文件失败: %v", err)
	}
	defer f.Close()

	kinds := make([]models.RecordKind, 0)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r models.StorageRecord
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			t.Fatalf("解析行失败: %v", err)
		}
		kinds = append(kinds, r.Kind)
	}

	want := []models.RecordKind{models.RecordResult, models.RecordSuggestions, models.RecordSerp}
	if len(kinds) != len(want) {
		t.Fatalf("记录数 = %d, want %d", len(kinds), len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("kinds[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestCSV(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "records.csv")

	for round := 0; round < 2; round++ {
		s, err := NewCSV(path)
		if err != nil {
			t.Fatalf("NewCSV() error = %v", err)
		}
		for _, r := range sampleRecords() {
			if err := s.PostRecord(ctx, r); err != nil {
				t.Fatalf("PostRecord() error = %v", err)
			}
		}
		s.Close()
	}

	f, _ := os.Open(path)
	defer f.Close()
	lines, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("读取CSV失败: %v", err)
	}

	if len(lines) != 7 {
		t.Fatalf("行数 = %d, want 7 (表头只写一次)", len(lines))
	}
	if lines[0][0] != "id" || lines[0][7] != "payload_json" {
		t.Errorf("表头不正确: %v", lines[0])
	}
	result := lines[1]
	if result[1] != "result" || result[3] != "1" || result[6] != "https://go.dev" {
		t.Errorf("结果行不正确: %v", result)
	}
	if !strings.Contains(lines[2][7], "golang tutorial") {
		t.Errorf("相关词应序列化到payload: %v", lines[2])
	}
}

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLite("file:sinktest?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	defer s.Close()

	for _, r := range sampleRecords() {
		if err := s.PostRecord(ctx, r); err != nil {
			t.Fatalf("PostRecord() error = %v", err)
		}
	}
	if err := s.PostRow(ctx, models.TableRow{Keyword: "golang", AmountOfResults: 1, LinksCollected: 1, JobResult: true}); err != nil {
		t.Fatalf("PostRow() error = %v", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM serp_records WHERE keyword = ?`, "golang").Scan(&count); err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if count != 3 {
		t.Errorf("记录数 = %d, want 3", count)
	}

	var payloadText string
	if err := s.db.QueryRowContext(ctx, `SELECT payload FROM serp_records WHERE kind = ?`, "serp").Scan(&payloadText); err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	var serp models.SerpResult
	if err := json.Unmarshal([]byte(payloadText), &serp); err != nil || serp.AmountOfResults != 1 {
		t.Errorf("payload = %s, err = %v", payloadText, err)
	}

	var ok bool
	if err := s.db.QueryRowContext(ctx, `SELECT job_result FROM keyword_rows WHERE keyword = ?`, "golang").Scan(&ok); err != nil || !ok {
		t.Errorf("汇总行 job_result = %v, err = %v", ok, err)
	}
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("SERPHARVEST_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("未设置 SERPHARVEST_TEST_PG_DSN")
	}

	ctx := context.Background()
	p, err := NewPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPostgres() error = %v", err)
	}
	defer p.Close()

	for _, r := range sampleRecords() {
		if err := p.PostRecord(ctx, r); err != nil {
			t.Fatalf("PostRecord() error = %v", err)
		}
	}
	if err := p.PostRow(ctx, models.TableRow{Keyword: "golang", JobResult: true}); err != nil {
		t.Fatalf("PostRow() error = %v", err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		formats []string
		wantErr bool
		files   []string
	}{
		{"仅汇总表", nil, false, nil},
		{"jsonl和csv", []string{"jsonl", "CSV", "jsonl"}, false, []string{"serp_records.jsonl", "serp_records.csv"}},
		{"sqlite", []string{"sqlite"}, false, []string{"serp_results.db"}},
		{"postgres缺少DSN", []string{"postgres"}, true, nil},
		{"未知格式", []string{"xml"}, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			multi, table, err := Open(ctx, Options{Dir: dir, Formats: tt.formats})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer multi.Close()

			if table == nil {
				t.Error("汇总表应总是启用")
			}
			for _, name := range tt.files {
				if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
					t.Errorf("应创建 %s: %v", name, err)
				}
			}
		})
	}
}
