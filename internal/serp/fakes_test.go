package serp

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/RecoveryAshes/SerpHarvest/internal/models"
)

// fakePage 内存中的页面,按URL返回HTML
type fakePage struct {
	profile     Profile
	docs        map[string]string
	current     string
	present     map[string]bool
	transitions map[string]string
	failNav     map[string]error
	box         models.ElementBox

	calls       int
	navigations []string
	clicks      []string
	clickAts    []models.Point
	screenshots []string
	evals       []string
}

func newFakePage(profile Profile, docs map[string]string) *fakePage {
	if docs == nil {
		docs = make(map[string]string)
	}
	return &fakePage{
		profile:     profile,
		docs:        docs,
		present:     make(map[string]bool),
		transitions: make(map[string]string),
		failNav:     make(map[string]error),
	}
}

func (p *fakePage) Navigate(_ context.Context, url string, _ time.Duration) error {
	p.calls++
	p.navigations = append(p.navigations, url)
	if err, ok := p.failNav[url]; ok {
		return err
	}
	p.current = url
	return nil
}

func (p *fakePage) URL() string {
	return p.current
}

func (p *fakePage) HTML(context.Context) (string, error) {
	p.calls++
	if raw, ok := p.docs[p.current]; ok {
		return raw, nil
	}
	return "<html><body></body></html>", nil
}

func (p *fakePage) Has(_ context.Context, selector string) (bool, error) {
	p.calls++
	return p.present[selector], nil
}

func (p *fakePage) WaitFor(_ context.Context, selector string, _ time.Duration) error {
	p.calls++
	doc, err := parseDocument(p.docs[p.current])
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("元素未出现: %s", selector)
	}
	return nil
}

func (p *fakePage) Click(_ context.Context, selector string) error {
	p.calls++
	p.clicks = append(p.clicks, selector)
	return nil
}

func (p *fakePage) ClickAndWait(_ context.Context, selector string, _ time.Duration) error {
	p.calls++
	p.clicks = append(p.clicks, selector)
	if target, ok := p.transitions[selector]; ok {
		p.current = target
		return nil
	}
	return fmt.Errorf("点击 %s: %w", selector, ErrNavigationTimeout)
}

func (p *fakePage) ClickAt(_ context.Context, x, y float64) error {
	p.calls++
	p.clickAts = append(p.clickAts, models.Point{X: x, Y: y})
	return nil
}

func (p *fakePage) BoundingBox(context.Context, string) (models.ElementBox, error) {
	p.calls++
	return p.box, nil
}

func (p *fakePage) ScreenshotElement(_ context.Context, _ string, path string) error {
	p.calls++
	p.screenshots = append(p.screenshots, path)
	return os.WriteFile(path, []byte("\x89PNG fake"), 0644)
}

func (p *fakePage) Eval(_ context.Context, js string) error {
	p.calls++
	p.evals = append(p.evals, js)
	return nil
}

func (p *fakePage) Search(_ context.Context, _ string, text string, _ time.Duration) error {
	p.calls++
	p.current = p.profile.SearchURL(text)
	return nil
}

type fakeSolver struct {
	points []models.Point
	err    error
	tasks  []models.CaptchaTask
}

func (s *fakeSolver) Solve(_ context.Context, task models.CaptchaTask) ([]models.Point, error) {
	s.tasks = append(s.tasks, task)
	return s.points, s.err
}

type fakeSink struct {
	rows    []models.TableRow
	records []models.StorageRecord
}

func (s *fakeSink) PostRow(_ context.Context, row models.TableRow) error {
	s.rows = append(s.rows, row)
	return nil
}

func (s *fakeSink) PostRecord(_ context.Context, record models.StorageRecord) error {
	s.records = append(s.records, record)
	return nil
}

func (s *fakeSink) countKind(kind models.RecordKind) int {
	n := 0
	for _, r := range s.records {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

type fakeDedup struct {
	seen map[string]bool
}

func newFakeDedup(claimed ...string) *fakeDedup {
	d := &fakeDedup{seen: make(map[string]bool)}
	for _, k := range claimed {
		d.seen[k] = true
	}
	return d
}

func (d *fakeDedup) MarkOrClaim(_ context.Context, keyword string) bool {
	if d.seen[keyword] {
		return true
	}
	d.seen[keyword] = true
	return false
}

func (d *fakeDedup) Contains(keyword string) bool {
	return d.seen[keyword]
}

type fakeBus struct {
	published []models.SerpResult
	senders   []string
}

func (b *fakeBus) Publish(_ context.Context, sender string, result models.SerpResult) error {
	b.senders = append(b.senders, sender)
	b.published = append(b.published, result)
	return nil
}

func noPause(context.Context, time.Duration) error {
	return nil
}

// bingPage 生成bing结果页,first为第一条结果编号
func bingPage(first, count int, next string, suggestions ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><ol id="b_results">`)
	for i := 0; i < count; i++ {
		n := first + i
		fmt.Fprintf(&b, `<li class="b_algo"><h2><a href="https://example.com/%d">Result %d</a></h2>`+
			`<div class="b_caption"><p class="b_lineclamp2">-- snippet %d</p></div></li>`, n, n, n)
	}
	b.WriteString(`</ol>`)
	if next != "" {
		fmt.Fprintf(&b, `<ul><li class="b_pag"><ul><li><a href="%s">Next</a></li></ul></li></ul>`, next)
	}
	if len(suggestions) > 0 {
		b.WriteString(`<div id="brsv3"><ul>`)
		for _, s := range suggestions {
			fmt.Fprintf(&b, `<li><a href="/search?q=%s">%s</a></li>`, s, s)
		}
		b.WriteString(`</ul></div>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}
