package session

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/rangdl/FN-AQ/internal/model"
)

// Jar 包装标准 cookiejar，同时记住每条 cookie 的完整属性，
// 因为 cookiejar.Jar.Cookies 只返回 name/value。
type Jar struct {
	jar *cookiejar.Jar

	mu   sync.Mutex
	seen map[string]model.Cookie
}

func NewJar() (*Jar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &Jar{jar: jar, seen: make(map[string]model.Cookie)}, nil
}

func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.jar.SetCookies(u, cookies)

	now := time.Now()
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, c := range cookies {
		rec := model.CookieFromHTTP(c)
		if rec.Domain == "" {
			rec.Domain = u.Hostname()
		}
		if rec.Path == "" {
			rec.Path = "/"
		}
		key := cookieKey(rec)
		if c.MaxAge < 0 || rec.Expired(now) {
			delete(j.seen, key)
			continue
		}
		j.seen[key] = rec
	}
}

func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

// Import 把持久化的 cookie 放回 jar；没有 domain 的视为 base 主机的 host-only cookie。
func (j *Jar) Import(base *url.URL, cookies []model.Cookie) {
	now := time.Now()
	for _, c := range cookies {
		if c.Name == "" || c.Expired(now) {
			continue
		}
		u := *base
		if host := strings.TrimPrefix(c.Domain, "."); host != "" {
			u.Host = host
		}
		u.Path = c.Path
		if u.Path == "" {
			u.Path = "/"
		}
		u.RawQuery = ""
		j.SetCookies(&u, model.CookiesToHTTP([]model.Cookie{c}))
	}
}

// Export 返回 jar 中对 base 仍然有效的 cookie，按 name 排序。
func (j *Jar) Export(base *url.URL) []model.Cookie {
	now := time.Now()

	j.mu.Lock()
	recs := make([]model.Cookie, 0, len(j.seen))
	for _, rec := range j.seen {
		recs = append(recs, rec)
	}
	j.mu.Unlock()

	out := make([]model.Cookie, 0, len(recs))
	for _, rec := range recs {
		if rec.Expired(now) {
			continue
		}
		u := *base
		if host := strings.TrimPrefix(rec.Domain, "."); host != "" {
			u.Host = host
		}
		u.Path = rec.Path
		u.RawQuery = ""
		if hasLive(j.jar.Cookies(&u), rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Name != out[b].Name {
			return out[a].Name < out[b].Name
		}
		return out[a].Domain < out[b].Domain
	})
	return out
}

func hasLive(live []*http.Cookie, rec model.Cookie) bool {
	for _, c := range live {
		if c.Name == rec.Name && c.Value == rec.Value {
			return true
		}
	}
	return false
}

func cookieKey(c model.Cookie) string {
	return strings.TrimPrefix(c.Domain, ".") + "|" + c.Path + "|" + c.Name
}
