// Package discuz 实现 Discuz! X 论坛的登录、签到与打卡信息读取。
package discuz

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/rangdl/FN-AQ/internal/captcha"
	"github.com/rangdl/FN-AQ/internal/config"
	"github.com/rangdl/FN-AQ/internal/logbus"
	"github.com/rangdl/FN-AQ/internal/model"
	"github.com/rangdl/FN-AQ/internal/provider"
	"github.com/rangdl/FN-AQ/internal/session"
	"github.com/rangdl/FN-AQ/internal/utils"
)

type Options struct {
	Site       config.SiteConfig
	Markers    config.MarkersConfig
	Username   string
	Cookies    []model.Cookie
	Recognizer captcha.Recognizer
	Bus        *logbus.Bus
}

type Site struct {
	cfg        config.SiteConfig
	markers    config.MarkersConfig
	username   string
	baseURL    *url.URL
	client     *resty.Client
	jar        *session.Jar
	recognizer captcha.Recognizer
	bus        *logbus.Bus
	tokenRe    *regexp.Regexp
}

var _ provider.Site = (*Site)(nil)

func New(opts Options) (*Site, error) {
	u, err := url.Parse(opts.Site.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	jar, err := session.NewJar()
	if err != nil {
		return nil, err
	}
	jar.Import(u, opts.Cookies)

	s := &Site{
		cfg:        opts.Site,
		markers:    opts.Markers,
		username:   opts.Username,
		baseURL:    u,
		jar:        jar,
		recognizer: opts.Recognizer,
		bus:        opts.Bus,
		tokenRe:    regexp.MustCompile(`(?:^|[?&;])` + regexp.QuoteMeta(opts.Markers.TokenKey) + `=([A-Za-z0-9_.~%-]+)`),
	}
	s.client = s.newClient()
	return s, nil
}

func (s *Site) Name() string { return "discuz" }

func (s *Site) Cookies() []model.Cookie {
	return s.jar.Export(s.baseURL)
}

// newClient 整个运行期间共用一个 client，cookie 在各步骤之间保持。
// 重试由上层统一处理，这里不开 resty 的重试。
func (s *Site) newClient() *resty.Client {
	qps := s.cfg.QPS
	if qps <= 0 {
		qps = 2
	}
	burst := s.cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(qps), burst)

	client := resty.New().
		SetTimeout(s.cfg.Timeout()).
		SetCookieJar(s.jar).
		SetHeader("User-Agent", utils.NormalizeDesktopUserAgent(s.cfg.UserAgent)).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8").
		SetHeader("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")

	if s.cfg.Proxy != "" {
		client.SetProxy(s.cfg.Proxy)
	}

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if err := limiter.Wait(req.Context()); err != nil {
			return err
		}
		s.bus.Log("debug", "http request", map[string]any{
			"method": req.Method,
			"url":    req.URL,
		})
		return nil
	})
	return client
}

type page struct {
	doc  *goquery.Document
	text string
}

// get 拉取页面并按 Content-Type / meta 声明的编码转成 UTF-8。
func (s *Site) get(ctx context.Context, rawURL string, headers map[string]string) (page, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(rawURL)
	if err != nil {
		return page{}, err
	}
	if resp.IsError() {
		return page{}, &provider.HTTPError{Method: "GET", URL: rawURL, Status: resp.StatusCode()}
	}
	return parsePage(resp)
}

func parsePage(resp *resty.Response) (page, error) {
	body, err := decodeBody(resp.Body(), resp.Header().Get("Content-Type"))
	if err != nil {
		return page{}, fmt.Errorf("decode %s: %w", resp.Request.URL, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return page{}, err
	}
	return page{doc: doc, text: string(body)}, nil
}

// decodeBody 只在页面明确声明了非 UTF-8 编码（如 GBK 模板）时转码；
// 未声明时 charset 会猜 windows-1252，这对中文页面是错的，按 UTF-8 处理。
func decodeBody(body []byte, contentType string) ([]byte, error) {
	e, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || name == "windows-1252" || e == nil {
		return body, nil
	}
	return e.NewDecoder().Bytes(body)
}

// resolve 把页面里的相对链接转为绝对地址。
func (s *Site) resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return s.baseURL.ResolveReference(u).String()
}
