package discuz

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// IsAuthenticated 请求首页判断 cookie 是否仍然有效；请求失败或信号不明确都视为未登录。
func (s *Site) IsAuthenticated(ctx context.Context) bool {
	p, err := s.get(ctx, s.cfg.BaseURL, nil)
	if err != nil {
		s.bus.Log("warn", "auth probe failed", map[string]any{"error": err.Error()})
		return false
	}
	ok, signal := s.authenticated(p)
	if ok {
		s.bus.Log("info", "session valid", map[string]any{"signal": signal})
	} else {
		s.bus.Log("info", "session invalid or expired", nil)
	}
	return ok
}

func (s *Site) authenticated(p page) (bool, string) {
	if sel := p.doc.Find(s.markers.UserSelector); sel.Length() > 0 {
		return true, "user element"
	}
	hasLoginLink := false
	p.doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if strings.Contains(href, s.markers.LoginLinkMarker) {
			hasLoginLink = true
			return false
		}
		return true
	})
	if hasLoginLink {
		return false, ""
	}
	if s.username != "" && strings.Contains(p.doc.Find("body").Text(), s.username) {
		return true, "username in body"
	}
	return false, ""
}
