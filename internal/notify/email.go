package notify

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/mail"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/rangdl/FN-AQ/internal/config"
)

type Email struct {
	cfg config.EmailConfig
	now func() time.Time
}

func NewEmail(cfg config.EmailConfig) *Email {
	return &Email{cfg: cfg, now: time.Now}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Notify(ctx context.Context, msg Message) error {
	if err := validateEmailConfig(e.cfg); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := e.buildMessage(msg)
	if err != nil {
		return err
	}
	d, err := e.dialer()
	if err != nil {
		return err
	}
	return d.DialAndSend(m)
}

func (e *Email) buildMessage(msg Message) (*gomail.Message, error) {
	from := strings.TrimSpace(e.cfg.Username)
	to := strings.TrimSpace(e.cfg.To)
	if to == "" {
		to = from
	}
	htmlBody, err := buildEmailBody(msg, e.now())
	if err != nil {
		return nil, err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(from, "论坛签到助手"))
	m.SetHeader("To", to)
	m.SetHeader("Subject", msg.Title)
	m.SetBody("text/plain", msg.Body)
	m.AddAlternative("text/html", htmlBody)
	return m, nil
}

func (e *Email) dialer() (*gomail.Dialer, error) {
	host, port, useSSL := strings.TrimSpace(e.cfg.Host), e.cfg.Port, true
	if host == "" {
		var err error
		host, port, useSSL, err = smtpConfigForEmail(e.cfg.Username)
		if err != nil {
			return nil, err
		}
	} else if port <= 0 {
		port = 465
	} else {
		useSSL = port == 465
	}
	d := gomail.NewDialer(host, port, strings.TrimSpace(e.cfg.Username), strings.TrimSpace(e.cfg.AuthCode))
	d.SSL = useSSL
	return d, nil
}

func validateEmailConfig(c config.EmailConfig) error {
	email := strings.TrimSpace(c.Username)
	if email == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.New("invalid email")
	}
	if to := strings.TrimSpace(c.To); to != "" {
		if _, err := mail.ParseAddress(to); err != nil {
			return errors.New("invalid recipient")
		}
	}
	if strings.TrimSpace(c.AuthCode) == "" {
		return errors.New("authCode is required")
	}
	return nil
}

func smtpConfigForEmail(email string) (host string, port int, useSSL bool, err error) {
	parts := strings.Split(strings.TrimSpace(email), "@")
	if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
		return "", 0, false, errors.New("invalid email format")
	}
	domain := strings.ToLower(strings.TrimSpace(parts[1]))
	is := func(base string) bool { return domain == base || strings.HasSuffix(domain, "."+base) }

	switch {
	case is("qq.com") || is("foxmail.com"):
		return "smtp.qq.com", 465, true, nil
	case is("163.com") || is("126.com") || is("yeah.net"):
		return "smtp.163.com", 465, true, nil
	case is("gmail.com"):
		return "smtp.gmail.com", 587, false, nil
	case is("outlook.com") || is("hotmail.com") || is("live.com"):
		return "smtp.office365.com", 587, false, nil
	case is("aliyun.com"):
		return "smtp.aliyun.com", 465, true, nil
	default:
		return "smtp." + domain, 465, true, nil
	}
}

var emailHTMLTpl = template.Must(template.New("email").Parse(`
<!doctype html>
<html lang="zh-CN">
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width" />
    <title>{{ .Title }}</title>
  </head>
  <body style="margin:0;padding:0;background:#f6f8fb;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,'PingFang SC','Microsoft YaHei',sans-serif;">
    <div style="max-width:640px;margin:0 auto;padding:24px;">
      <div style="background:#ffffff;border:1px solid #e6e8ef;border-radius:14px;overflow:hidden;">
        <div style="padding:18px 22px;background:{{ .Color }};color:#ffffff;">
          <div style="font-size:16px;font-weight:700;">{{ .Title }}</div>
          <div style="margin-top:6px;font-size:12px;opacity:.95;">{{ .At }}</div>
        </div>
        <div style="padding:22px;">
          {{ range .Lines }}
          <div style="padding:6px 0;border-bottom:1px solid #eef0f6;color:#111827;font-size:13px;">{{ . }}</div>
          {{ end }}
          <div style="margin-top:14px;color:#9ca3af;font-size:12px;">此邮件由系统自动发送</div>
        </div>
      </div>
    </div>
  </body>
</html>
`))

func buildEmailBody(msg Message, at time.Time) (string, error) {
	color := "linear-gradient(135deg,#ef4444,#f97316)"
	if msg.Success {
		color = "linear-gradient(135deg,#10b981,#0ea5e9)"
	}
	var lines []string
	for _, l := range strings.Split(msg.Body, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	data := struct {
		Title string
		At    string
		Color template.CSS
		Lines []string
	}{
		Title: msg.Title,
		At:    at.Format("2006-01-02 15:04:05"),
		Color: template.CSS(color),
		Lines: lines,
	}
	var buf bytes.Buffer
	if err := emailHTMLTpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
