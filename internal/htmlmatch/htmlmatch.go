// Package htmlmatch 按优先级依次尝试一组命名的匹配策略，返回第一个命中的元素。
package htmlmatch

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type Matcher interface {
	Name() string
	Match(s *goquery.Selection) bool
}

type matcherFunc struct {
	name string
	fn   func(s *goquery.Selection) bool
}

func (m matcherFunc) Name() string                    { return m.name }
func (m matcherFunc) Match(s *goquery.Selection) bool { return m.fn(s) }

func New(name string, fn func(s *goquery.Selection) bool) Matcher {
	return matcherFunc{name: name, fn: fn}
}

// AttrContains 命中 attr 包含任一子串的元素。
func AttrContains(attr string, subs ...string) Matcher {
	return New(attr+" contains "+strings.Join(subs, "|"), func(s *goquery.Selection) bool {
		v, ok := s.Attr(attr)
		if !ok || v == "" {
			return false
		}
		for _, sub := range subs {
			if strings.Contains(v, sub) {
				return true
			}
		}
		return false
	})
}

func AttrEquals(attr, want string) Matcher {
	return New(attr+" == "+want, func(s *goquery.Selection) bool {
		v, ok := s.Attr(attr)
		return ok && v == want
	})
}

// Any 命中任意元素，放在最后作为兜底。
func Any() Matcher {
	return New("first", func(*goquery.Selection) bool { return true })
}

type Result struct {
	Selection *goquery.Selection
	Matcher   string
}

// First 先按策略顺序、再按文档顺序查找。
func First(candidates *goquery.Selection, matchers ...Matcher) (Result, bool) {
	for _, m := range matchers {
		var hit *goquery.Selection
		candidates.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if m.Match(s) {
				hit = s
				return false
			}
			return true
		})
		if hit != nil {
			return Result{Selection: hit, Matcher: m.Name()}, true
		}
	}
	return Result{}, false
}

// LoginForm 是 Discuz 登录表单的默认策略顺序。
func LoginForm() []Matcher {
	return []Matcher{
		AttrContains("id", "loginform", "lsform"),
		AttrEquals("name", "login"),
		AttrContains("action", "logging"),
		Any(),
	}
}
