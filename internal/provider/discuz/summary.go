package discuz

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/rangdl/FN-AQ/internal/model"
)

// Summary 读取“我的打卡动态”面板；面板或条目缺失时返回空结果而不是错误。
func (s *Site) Summary(ctx context.Context) (model.Summary, error) {
	p, err := s.get(ctx, s.cfg.CheckinURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch check-in page: %w", err)
	}
	return s.parseSummary(p.doc), nil
}

func (s *Site) parseSummary(doc *goquery.Document) model.Summary {
	var panel *goquery.Selection
	doc.Find("div.bm").EachWithBreak(func(_ int, bm *goquery.Selection) bool {
		h := bm.Find("div.bm_h").First()
		if h.Length() > 0 && strings.Contains(h.Text(), s.markers.SummaryPanel) {
			panel = bm
			return false
		}
		return true
	})
	if panel == nil {
		s.bus.Log("warn", "summary panel not found", map[string]any{"panel": s.markers.SummaryPanel})
		return model.Summary{}
	}

	out := model.Summary{}
	panel.Find("div.bm_c li").Each(func(_ int, li *goquery.Selection) {
		text := strippedText(li)
		key, value, ok := strings.Cut(text, s.markers.SummaryDelimiter)
		if !ok {
			key, value, ok = strings.Cut(text, ":")
		}
		if !ok {
			return
		}
		out = append(out, model.SummaryItem{
			Key:   strings.TrimSpace(key),
			Value: strings.TrimSpace(value),
		})
	})
	return out
}

// strippedText 对每个文本节点去掉首尾空白后直接拼接。
func strippedText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(strings.TrimSpace(n.Data))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return b.String()
}
