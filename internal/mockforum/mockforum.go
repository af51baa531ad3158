// Package mockforum 提供一个最小化的 Discuz 站点模拟，外加 OCR 与推送接口，
// 供本地联调（cmd/mock）和测试使用。
package mockforum

import (
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"sync"
)

const (
	SessionCookie = "mock_auth"
	SignToken     = "3f9a2b"
	FormHash      = "a1b2c3d4"
	SeccodeHash   = "cSAxYz"
	OCRToken      = "mock-ocr-token"
)

type Options struct {
	Username string
	Password string
	// Captcha 为 true 时登录页带图片验证码，答案为 CaptchaAnswer。
	Captcha       bool
	CaptchaAnswer string
	NoFormHash    bool
	AlreadyDone   bool
	// StickyNotDone 模拟签到请求不生效，按钮一直停在未签到。
	StickyNotDone bool
	// Label 非空时签到按钮固定显示该文字。
	Label string
	// FailFirst 前 N 个页面请求返回 502。
	FailFirst int
}

type Stats struct {
	PageRequests  int
	LoginPosts    int
	CaptchaImages int
	SignRequests  int
	OCRTokens     int
	OCRCalls      int
	Pushes        int
	LastPush      map[string]string
}

type Forum struct {
	mu       sync.Mutex
	opts     Options
	sessions map[string]bool
	done     bool
	failLeft int
	stats    Stats
}

func New(opts Options) *Forum {
	if opts.Username == "" {
		opts.Username = "alice"
	}
	if opts.Password == "" {
		opts.Password = "secret"
	}
	if opts.CaptchaAnswer == "" {
		opts.CaptchaAnswer = "k7p2"
	}
	return &Forum{
		opts:     opts,
		sessions: make(map[string]bool),
		done:     opts.AlreadyDone,
		failLeft: opts.FailFirst,
	}
}

func (f *Forum) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.stats
	if f.stats.LastPush != nil {
		s.LastPush = make(map[string]string, len(f.stats.LastPush))
		for k, v := range f.stats.LastPush {
			s.LastPush[k] = v
		}
	}
	return s
}

func (f *Forum) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// IssueSession 直接生成一个有效会话，测试里用来模拟已登录的 cookie 文件。
func (f *Forum) IssueSession() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.newSessionLocked()
}

func (f *Forum) newSessionLocked() string {
	b := make([]byte, 8)
	_, _ = crand.Read(b)
	v := hex.EncodeToString(b)
	f.sessions[v] = true
	return v
}

func (f *Forum) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", f.handleIndex)
	mux.HandleFunc("/forum.php", f.handleIndex)
	mux.HandleFunc("/member.php", f.handleMember)
	mux.HandleFunc("/misc.php", f.handleSeccode)
	mux.HandleFunc("/plugin.php", f.handlePlugin)
	mux.HandleFunc("/oauth/2.0/token", f.handleOCRToken)
	mux.HandleFunc("/rest/2.0/ocr/v1/general_basic", f.handleOCR)
	mux.HandleFunc("/push/", f.handlePush)
	mux.HandleFunc("/mock/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"ok": true})
	})
	return mux
}

func (f *Forum) authed(r *http.Request) bool {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return false
	}
	return f.sessions[c.Value]
}

// failing 在 FailFirst 用完之前返回 true。调用方需持有锁。
func (f *Forum) failingLocked() bool {
	f.stats.PageRequests++
	if f.failLeft > 0 {
		f.failLeft--
		return true
	}
	return false
}

func (f *Forum) handleIndex(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failingLocked() {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	writeHTML(w, layout(f.headerLocked(r), `<div id="ct">欢迎访问</div>`))
}

func (f *Forum) headerLocked(r *http.Request) string {
	if f.authed(r) {
		return `<div id="um"><strong class="vwmy"><a href="home.php?mod=space">` + html.EscapeString(f.opts.Username) + `</a></strong></div>`
	}
	return `<div id="um"><a href="member.php?mod=logging&amp;action=login">登录</a> <a href="member.php?mod=register">立即注册</a></div>`
}

func (f *Forum) handleMember(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("mod") != "logging" {
		http.NotFound(w, r)
		return
	}
	if r.Method == http.MethodPost {
		f.handleLoginPost(w, r)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failingLocked() {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	var b strings.Builder
	b.WriteString(`<form method="post" autocomplete="off" name="login" id="loginform_LxV1q" action="member.php?mod=logging&amp;action=login&amp;loginsubmit=yes">`)
	if !f.opts.NoFormHash {
		b.WriteString(`<input type="hidden" name="formhash" value="` + FormHash + `" />`)
	}
	b.WriteString(`<input type="text" name="username" id="username_LxV1q" />`)
	b.WriteString(`<input type="password" name="password" id="password3_LxV1q" />`)
	if f.opts.Captcha {
		b.WriteString(`<input type="hidden" name="seccodehash" value="` + SeccodeHash + `" />`)
		b.WriteString(`<span id="seccode_` + SeccodeHash + `"><input name="seccodeverify" id="seccodeverify_` + SeccodeHash + `" type="text" />`)
		b.WriteString(`<img src="misc.php?mod=seccode&amp;update=81514&amp;idhash=` + SeccodeHash + `" /></span>`)
	}
	b.WriteString(`<button type="submit" name="loginsubmit" value="true">登录</button></form>`)
	writeHTML(w, layout(f.headerLocked(r), b.String()))
}

func (f *Forum) handleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats.LoginPosts++

	switch {
	case r.PostForm.Get("formhash") != FormHash:
		writeAjax(w, "非法请求，请返回更新页面后重试")
	case f.opts.Captcha && !strings.EqualFold(r.PostForm.Get("seccodeverify"), f.opts.CaptchaAnswer):
		writeAjax(w, "抱歉，验证码填写错误")
	case r.PostForm.Get("username") != f.opts.Username || r.PostForm.Get("password") != f.opts.Password:
		writeAjax(w, "登录失败，您还可以尝试 4 次")
	default:
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    f.newSessionLocked(),
			Path:     "/",
			MaxAge:   30 * 24 * 3600,
			HttpOnly: true,
		})
		writeAjax(w, `<script type="text/javascript">succeedhandle_login('forum.php', '欢迎您回来，`+html.EscapeString(f.opts.Username)+`', {});</script>`)
	}
}

// 1x1 PNG
var seccodePNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func (f *Forum) handleSeccode(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("mod") != "seccode" {
		http.NotFound(w, r)
		return
	}
	f.mu.Lock()
	f.stats.CaptchaImages++
	f.mu.Unlock()
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(seccodePNG)
}

func (f *Forum) handlePlugin(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failingLocked() {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	if !f.authed(r) {
		writeHTML(w, layout(f.headerLocked(r), `<div class="alert_error">您需要先登录才能继续本操作</div>`))
		return
	}
	if sign := r.URL.Query().Get("sign"); sign != "" {
		f.stats.SignRequests++
		if sign == SignToken && !f.opts.StickyNotDone {
			f.done = true
		}
	}

	var btn string
	switch {
	case f.opts.Label != "":
		btn = `<a class="btna" href="plugin.php?id=zqlj_sign&amp;sign=` + SignToken + `">` + html.EscapeString(f.opts.Label) + `</a>`
	case f.done:
		btn = `<a class="btna">今日已打卡</a>`
	default:
		btn = `<a class="btna" href="plugin.php?id=zqlj_sign&amp;sign=` + SignToken + `">点击打卡</a>`
	}
	days := 12
	if f.done {
		days++
	}
	body := `<div class="signbtn">` + btn + `</div>` +
		`<div class="bm"><div class="bm_h"><h2>打卡排行</h2></div><div class="bm_c"><ul><li>第一名：bob</li></ul></div></div>` +
		`<div class="bm"><div class="bm_h"><h2>我的打卡动态</h2></div><div class="bm_c"><ul>` +
		`<li>最近打卡：<span>2026-10-19 08:00:00</span></li>` +
		fmt.Sprintf(`<li>本月打卡：<b>%d</b> 天</li>`, days) +
		fmt.Sprintf(`<li>连续打卡：%d 天</li>`, days) +
		`<li>打卡等级：<em>Lv.3</em></li>` +
		`</ul></div></div>`
	writeHTML(w, layout(f.headerLocked(r), body))
}

func (f *Forum) handleOCRToken(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.stats.OCRTokens++
	f.mu.Unlock()
	if r.URL.Query().Get("client_id") == "" || r.URL.Query().Get("client_secret") == "" {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, map[string]any{"error": "invalid_client", "error_description": "unknown client id"})
		return
	}
	writeJSON(w, map[string]any{"access_token": OCRToken, "expires_in": 2592000})
}

func (f *Forum) handleOCR(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.stats.OCRCalls++
	answer := f.opts.CaptchaAnswer
	f.mu.Unlock()
	if r.URL.Query().Get("access_token") != OCRToken {
		writeJSON(w, map[string]any{"error_code": 110, "error_msg": "Access token invalid or no longer valid"})
		return
	}
	if err := r.ParseForm(); err != nil || r.PostForm.Get("image") == "" {
		writeJSON(w, map[string]any{"error_code": 216101, "error_msg": "param image not exist"})
		return
	}
	writeJSON(w, map[string]any{
		"words_result_num": 1,
		"words_result":     []map[string]any{{"words": " " + answer + " "}},
	})
}

// handlePush 模拟 Server 酱：/push/<key>.send
func (f *Forum) handlePush(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.stats.Pushes++
	f.stats.LastPush = map[string]string{
		"key":   strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/push/"), ".send"),
		"title": r.PostForm.Get("title"),
		"desp":  r.PostForm.Get("desp"),
	}
	f.mu.Unlock()
	writeJSON(w, map[string]any{"code": 0, "message": "", "data": map[string]any{"pushid": "1"}})
}

func layout(header, body string) string {
	return `<!DOCTYPE html><html><head><meta charset="utf-8" /><title>飞牛私有云论坛</title></head><body>` +
		`<div id="hd">` + header + `</div><div id="wp">` + body + `</div></body></html>`
}

func writeHTML(w http.ResponseWriter, s string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(s))
}

func writeAjax(w http.ResponseWriter, inner string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	_, _ = w.Write([]byte(`<?xml version="1.0" encoding="utf-8"?><root><![CDATA[` + inner + `]]></root>`))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
