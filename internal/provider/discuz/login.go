package discuz

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rangdl/FN-AQ/internal/htmlmatch"
	"github.com/rangdl/FN-AQ/internal/model"
	"github.com/rangdl/FN-AQ/internal/provider"
)

var (
	seccodeSpanRe   = regexp.MustCompile(`seccode_([A-Za-z0-9]+)`)
	updateSeccodeRe = regexp.MustCompile(`updateseccode\(\s*'([A-Za-z0-9]+)'`)
	cdataRe         = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
)

// Login 完整走一遍：取登录页 -> 找表单 -> formhash -> 验证码 -> 提交 -> 判定。
// 每次调用都重新取页面，formhash 只对当前会话有效。
func (s *Site) Login(ctx context.Context, creds model.Credentials) error {
	loginURL := s.cfg.LoginURL()
	p, err := s.get(ctx, loginURL, nil)
	if err != nil {
		return fmt.Errorf("fetch login page: %w", err)
	}

	res, ok := htmlmatch.First(p.doc.Find("form"), htmlmatch.LoginForm()...)
	if !ok {
		return fmt.Errorf("login form: %w", provider.ErrElementNotFound)
	}
	formID, _ := res.Selection.Attr("id")
	formAction, _ := res.Selection.Attr("action")
	s.bus.Log("info", "login form found", map[string]any{"id": formID, "action": formAction, "matcher": res.Matcher})

	formhash := findInputValue(res.Selection, p.doc, "formhash")
	if formhash == "" {
		return provider.ErrMissingFormHash
	}

	fields := url.Values{}
	fields.Set("formhash", formhash)
	fields.Set("referer", s.cfg.BaseURL)
	fields.Set("loginfield", "username")
	fields.Set("username", creds.Username)
	fields.Set("password", creds.Password)
	fields.Set("questionid", "0")
	fields.Set("answer", "")
	fields.Set("cookietime", "2592000")
	fields.Set("loginsubmit", "true")

	// Discuz 的输入框 id 带随机后缀，部分模板按 id 取值，两种名字都带上。
	if id := inputID(p.doc, "username"); id != "" && id != "username" {
		fields.Set(id, creds.Username)
	}
	if id := inputID(p.doc, "password"); id != "" && id != "password" {
		fields.Set(id, creds.Password)
	}

	if needsCaptcha(p) {
		hash, answer, err := s.solveCaptcha(ctx, p, loginURL)
		if err != nil {
			return err
		}
		fields.Set("seccodehash", hash)
		fields.Set("seccodemodid", "member::logging")
		fields.Set("seccodeverify", answer)
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"Origin":                    strings.TrimRight(s.cfg.BaseURL, "/"),
			"Referer":                   loginURL,
			"Upgrade-Insecure-Requests": "1",
		}).
		SetFormDataFromValues(fields).
		Post(loginURL + "&loginsubmit=yes&inajax=1")
	if err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	if resp.IsError() {
		return &provider.HTTPError{Method: "POST", URL: loginURL, Status: resp.StatusCode()}
	}
	reply, err := decodeBody(resp.Body(), resp.Header().Get("Content-Type"))
	if err != nil {
		return err
	}
	text := string(reply)

	if strings.Contains(text, s.markers.LoginSuccess) {
		s.bus.Log("info", "login succeeded", map[string]any{"user": creds.Username, "signal": "success marker"})
		return nil
	}
	if strings.Contains(text, s.markers.CaptchaRejected) {
		return fmt.Errorf("%w: %s", provider.ErrCaptchaRejected, replyMessage(text))
	}
	if s.IsAuthenticated(ctx) {
		s.bus.Log("info", "login succeeded", map[string]any{"user": creds.Username, "signal": "auth probe"})
		return nil
	}
	s.bus.Log("debug", "login response", map[string]any{"body": text})
	return fmt.Errorf("%w: %s", provider.ErrLoginRejected, replyMessage(text))
}

// findInputValue 先在表单内找，再在整页找。
func findInputValue(form *goquery.Selection, doc *goquery.Document, name string) string {
	sel := `input[name="` + name + `"]`
	if v, ok := form.Find(sel).First().Attr("value"); ok && v != "" {
		return v
	}
	v, _ := doc.Find(sel).First().Attr("value")
	return v
}

func inputID(doc *goquery.Document, name string) string {
	id, _ := doc.Find(`input[name="` + name + `"]`).First().Attr("id")
	return id
}

func needsCaptcha(p page) bool {
	if p.doc.Find(`input[name="seccodeverify"]`).Length() > 0 {
		return true
	}
	return strings.Contains(p.text, "seccodeverify")
}

func (s *Site) solveCaptcha(ctx context.Context, p page, referer string) (hash, answer string, err error) {
	if s.recognizer == nil {
		return "", "", provider.ErrCaptchaUnavailable
	}
	hash = seccodeHash(p)
	imgURL := captchaImageURL(p, hash)
	if imgURL == "" {
		return "", "", fmt.Errorf("captcha image: %w", provider.ErrElementNotFound)
	}
	imgURL = s.resolve(imgURL)

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Referer", referer).
		SetHeader("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8").
		Get(imgURL)
	if err != nil {
		return "", "", fmt.Errorf("fetch captcha image: %w", err)
	}
	if resp.IsError() {
		return "", "", &provider.HTTPError{Method: "GET", URL: imgURL, Status: resp.StatusCode()}
	}

	answer, err = s.recognizer.Recognize(ctx, resp.Body())
	if err != nil {
		return "", "", fmt.Errorf("recognize captcha: %w", err)
	}
	s.bus.Log("info", "captcha recognized", map[string]any{"provider": s.recognizer.Name(), "answer": answer})
	return hash, answer, nil
}

func seccodeHash(p page) string {
	if v, ok := p.doc.Find(`input[name="seccodehash"]`).First().Attr("value"); ok && v != "" {
		return v
	}
	if m := updateSeccodeRe.FindStringSubmatch(p.text); m != nil {
		return m[1]
	}
	if m := seccodeSpanRe.FindStringSubmatch(p.text); m != nil {
		return m[1]
	}
	return ""
}

func captchaImageURL(p page, hash string) string {
	var src string
	p.doc.Find("img[src]").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		v, _ := img.Attr("src")
		if strings.Contains(v, "mod=seccode") {
			src = v
			return false
		}
		return true
	})
	if src != "" {
		return src
	}
	if hash == "" {
		return ""
	}
	return "misc.php?mod=seccode&update=" + strconv.Itoa(rand.Intn(100000)) + "&idhash=" + url.QueryEscape(hash)
}

// replyMessage 取出 inajax 响应 CDATA 里的提示文字。
func replyMessage(text string) string {
	msg := text
	if m := cdataRe.FindStringSubmatch(text); m != nil {
		msg = m[1]
	}
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(msg)); err == nil {
		msg = doc.Text()
	}
	msg = strings.Join(strings.Fields(msg), " ")
	if r := []rune(msg); len(r) > 120 {
		msg = string(r[:120]) + "..."
	}
	return msg
}
