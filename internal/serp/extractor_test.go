package serp

import (
	"context"
	"testing"
)

const yandexFixture = `<html><body>
<ul id="search-result">
  <li class="serp-item"><div class="VanillaReact"><a href="https://a.example/">Site A</a></div>
    <span class="OrganicTextContentSpan"> snippet a </span></li>
  <li class="serp-item"><div>advert without link</div></li>
  <li class="serp-item"><div class="VanillaReact"><a href="https://b.example/">Site B</a></div></li>
</ul>
<div class="Pager-Content"><div><a href="/search/?text=x&amp;p=1">2</a><a href="/search/?text=x&amp;p=2">3</a></div></div>
<div class="RelatedBottom-Items">
  <a href="/search/?text=beta" title="beta title">beta</a>
  <a href="/search/?text=gamma" title="gamma title">gamma</a>
</div>
</body></html>`

func TestResultExtractor_Extract(t *testing.T) {
	doc, err := parseDocument(yandexFixture)
	if err != nil {
		t.Fatalf("parseDocument() error = %v", err)
	}

	results, next := NewResultExtractor(Yandex).Extract(doc, 7)

	if len(results) != 2 {
		t.Fatalf("结果数量 = %d, want 2 (缺少链接的条目应跳过)", len(results))
	}
	if next != 9 {
		t.Errorf("下一个序号 = %d, want 9", next)
	}

	first := results[0]
	if first.Position != 7 || first.URL != "https://a.example/" || first.AnchorLink != "Site A" || first.TextSnippet != "snippet a" {
		t.Errorf("第一条结果不正确: %+v", first)
	}
	if results[1].Position != 8 {
		t.Errorf("第二条序号 = %d, want 8", results[1].Position)
	}
	if results[1].TextSnippet != "" {
		t.Errorf("缺少摘要时应为空, got %q", results[1].TextSnippet)
	}
}

func TestResultExtractor_BingSnippet(t *testing.T) {
	doc, err := parseDocument(bingPage(1, 1, ""))
	if err != nil {
		t.Fatalf("parseDocument() error = %v", err)
	}

	results, _ := NewResultExtractor(Bing).Extract(doc, 1)
	if len(results) != 1 {
		t.Fatalf("结果数量 = %d, want 1", len(results))
	}
	if results[0].TextSnippet != "snippet 1" {
		t.Errorf("摘要 = %q, want %q", results[0].TextSnippet, "snippet 1")
	}
}

func TestResultExtractor_NextPage(t *testing.T) {
	doc, _ := parseDocument(yandexFixture)
	next, ok := NewResultExtractor(Yandex).NextPage(doc)
	if !ok {
		t.Fatal("应找到下一页")
	}
	if next != "https://ya.ru/search/?text=x&p=2" {
		t.Errorf("下一页 = %q, 应取最后一个分页链接", next)
	}

	empty, _ := parseDocument("<html><body></body></html>")
	if _, ok := NewResultExtractor(Yandex).NextPage(empty); ok {
		t.Error("没有分页控件时应返回false")
	}
}

func TestSkipRunes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"不跳过", "abc", 0, "abc"},
		{"多字节字符", "日期 摘要", 3, "摘要"},
		{"长度不足", "ab", 3, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := skipRunes(tt.in, tt.n); got != tt.want {
				t.Errorf("skipRunes() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSuggestionCollector(t *testing.T) {
	t.Run("yandex读取title属性", func(t *testing.T) {
		page := newFakePage(Yandex, map[string]string{"https://ya.ru/search/?text=x": yandexFixture})
		page.current = "https://ya.ru/search/?text=x"

		got, err := NewSuggestionCollector(Yandex).Collect(context.Background(), page, "x")
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("相关词数量 = %d, want 2", len(got))
		}
		if got[0].Suggestion != "beta title" || got[0].URL != "https://ya.ru/search/?text=beta" {
			t.Errorf("相关词不正确: %+v", got[0])
		}
	})

	t.Run("bing读取链接文本", func(t *testing.T) {
		doc, _ := parseDocument(bingPage(1, 1, "", "beta", "gamma"))
		got := NewSuggestionCollector(Bing).FromDocument(doc)
		if len(got) != 2 {
			t.Fatalf("相关词数量 = %d, want 2", len(got))
		}
		if got[1].Suggestion != "gamma" || got[1].URL != "https://www.bing.com/search?q=gamma" {
			t.Errorf("相关词不正确: %+v", got[1])
		}
	})

	t.Run("跳过缺少链接的相关词", func(t *testing.T) {
		doc, err := parseDocument(`<html><body><div id="brsv3"><ul>
<li><a>no-href</a></li>
<li><a href="  ">blank-href</a></li>
<li><a href="/search?q=delta">delta</a></li>
</ul></div></body></html>`)
		if err != nil {
			t.Fatalf("parseDocument() error = %v", err)
		}
		got := NewSuggestionCollector(Bing).FromDocument(doc)
		if len(got) != 1 || got[0].Suggestion != "delta" {
			t.Fatalf("相关词 = %+v, want 只有 delta", got)
		}
		if got[0].URL == Bing.BaseURL || got[0].URL != "https://www.bing.com/search?q=delta" {
			t.Errorf("URL = %q", got[0].URL)
		}
	})

	t.Run("没有相关词区块", func(t *testing.T) {
		doc, _ := parseDocument(bingPage(1, 3, ""))
		got := NewSuggestionCollector(Bing).FromDocument(doc)
		if got == nil || len(got) != 0 {
			t.Errorf("应返回空列表, got %v", got)
		}
	})
}
