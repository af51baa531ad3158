package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Account AccountConfig `yaml:"account"`
	Markers MarkersConfig `yaml:"markers"`
	Captcha CaptchaConfig `yaml:"captcha"`
	Retry   RetryConfig   `yaml:"retry"`
	Storage StorageConfig `yaml:"storage"`
	Notify  NotifyConfig  `yaml:"notify"`
	Log     LogConfig     `yaml:"log"`
}

type SiteConfig struct {
	BaseURL     string  `yaml:"baseURL"`
	LoginPath   string  `yaml:"loginPath"`
	CheckinPath string  `yaml:"checkinPath"`
	TimeoutMs   int     `yaml:"timeoutMs"`
	UserAgent   string  `yaml:"userAgent"`
	Proxy       string  `yaml:"proxy"`
	QPS         float64 `yaml:"qps"`
	Burst       int     `yaml:"burst"`
}

func (c SiteConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// LoginURL 和 CheckinURL 拼接到 BaseURL 上；路径里带 query，所以不用 url.JoinPath。
func (c SiteConfig) LoginURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(c.LoginPath, "/")
}

func (c SiteConfig) CheckinURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(c.CheckinPath, "/")
}

type AccountConfig struct {
	Username string `yaml:"username"`
	// Password 为空时从系统钥匙串读取。
	Password string `yaml:"password"`
}

// MarkersConfig 描述目标站点页面上的各种标记，默认值对应 club.fnnas.com 的 Discuz 模板。
type MarkersConfig struct {
	UserSelector     string `yaml:"userSelector"`
	LoginLinkMarker  string `yaml:"loginLinkMarker"`
	LoginSuccess     string `yaml:"loginSuccess"`
	CaptchaRejected  string `yaml:"captchaRejected"`
	CheckinSelector  string `yaml:"checkinSelector"`
	TokenKey         string `yaml:"tokenKey"`
	NotDoneLabel     string `yaml:"notDoneLabel"`
	DoneLabel        string `yaml:"doneLabel"`
	SummaryPanel     string `yaml:"summaryPanel"`
	SummaryDelimiter string `yaml:"summaryDelimiter"`
}

type CaptchaConfig struct {
	// Provider: "baidu" | "jfbym" | ""（空则按是否配置了 key 自动选择）
	Provider       string `yaml:"provider"`
	APIKey         string `yaml:"apiKey"`
	SecretKey      string `yaml:"secretKey"`
	TokenURL       string `yaml:"tokenURL"`
	OCRURL         string `yaml:"ocrURL"`
	TokenCachePath string `yaml:"tokenCachePath"`
	JfbymToken     string `yaml:"jfbymToken"`
	JfbymType      string `yaml:"jfbymType"`
	JfbymURL       string `yaml:"jfbymURL"`
	TimeoutMs      int    `yaml:"timeoutMs"`
}

func (c CaptchaConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

type RetryConfig struct {
	Login   RetryPolicyCfg `yaml:"login"`
	Status  RetryPolicyCfg `yaml:"status"`
	Checkin RetryPolicyCfg `yaml:"checkin"`
	Token   RetryPolicyCfg `yaml:"token"`
}

type RetryPolicyCfg struct {
	Count     int `yaml:"count"`
	WaitMs    int `yaml:"waitMs"`
	StepMs    int `yaml:"stepMs"`
	MaxWaitMs int `yaml:"maxWaitMs"`
}

func (c RetryPolicyCfg) Wait() time.Duration {
	if c.WaitMs <= 0 {
		return 0
	}
	return time.Duration(c.WaitMs) * time.Millisecond
}

func (c RetryPolicyCfg) Step() time.Duration {
	if c.StepMs <= 0 {
		return 0
	}
	return time.Duration(c.StepMs) * time.Millisecond
}

func (c RetryPolicyCfg) MaxWait() time.Duration {
	if c.MaxWaitMs <= 0 {
		return 0
	}
	return time.Duration(c.MaxWaitMs) * time.Millisecond
}

type StorageConfig struct {
	CookiePath string `yaml:"cookiePath"`
	SQLitePath string `yaml:"sqlitePath"`
}

type NotifyConfig struct {
	PushKey string      `yaml:"pushKey"`
	PushURL string      `yaml:"pushURL"`
	Email   EmailConfig `yaml:"email"`
}

type EmailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	AuthCode string `yaml:"authCode"`
	To       string `yaml:"to"`
}

type LogConfig struct {
	Dir   string `yaml:"dir"`
	Debug bool   `yaml:"debug"`
}

// Default 返回只填充了默认值的配置。
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

// Load 读取 YAML 配置（文件不存在时只用默认值），再叠加环境变量。
func Load(path string) (Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, err
		}
	}
	cfg.applyEnv(getenv)
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Site.BaseURL, "FN_BASE_URL")
	set(&c.Account.Username, "FN_USERNAME")
	set(&c.Account.Password, "FN_PASSWORD")
	set(&c.Captcha.APIKey, "FN_OCR_API_KEY")
	set(&c.Captcha.SecretKey, "FN_OCR_SECRET_KEY")
	set(&c.Notify.PushKey, "FN_PUSH_KEY")
	if v := strings.TrimSpace(getenv("FN_DEBUG")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Log.Debug = b
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Site.BaseURL == "" {
		c.Site.BaseURL = "https://club.fnnas.com/"
	}
	if c.Site.LoginPath == "" {
		c.Site.LoginPath = "member.php?mod=logging&action=login"
	}
	if c.Site.CheckinPath == "" {
		c.Site.CheckinPath = "plugin.php?id=zqlj_sign"
	}
	if c.Site.QPS <= 0 {
		c.Site.QPS = 2
	}
	if c.Site.Burst <= 0 {
		c.Site.Burst = 2
	}

	m := &c.Markers
	if m.UserSelector == "" {
		m.UserSelector = ".vwmy"
	}
	if m.LoginLinkMarker == "" {
		m.LoginLinkMarker = "mod=logging&action=login"
	}
	if m.LoginSuccess == "" {
		m.LoginSuccess = "succeedhandle_"
	}
	if m.CaptchaRejected == "" {
		m.CaptchaRejected = "验证码"
	}
	if m.CheckinSelector == "" {
		m.CheckinSelector = ".signbtn .btna"
	}
	if m.TokenKey == "" {
		m.TokenKey = "sign"
	}
	if m.NotDoneLabel == "" {
		m.NotDoneLabel = "点击打卡"
	}
	if m.DoneLabel == "" {
		m.DoneLabel = "今日已打卡"
	}
	if m.SummaryPanel == "" {
		m.SummaryPanel = "我的打卡动态"
	}
	if m.SummaryDelimiter == "" {
		m.SummaryDelimiter = "："
	}

	if c.Captcha.Provider == "" {
		switch {
		case c.Captcha.APIKey != "" && c.Captcha.SecretKey != "":
			c.Captcha.Provider = "baidu"
		case c.Captcha.JfbymToken != "":
			c.Captcha.Provider = "jfbym"
		}
	}
	if c.Captcha.TokenURL == "" {
		c.Captcha.TokenURL = "https://aip.baidubce.com/oauth/2.0/token"
	}
	if c.Captcha.OCRURL == "" {
		c.Captcha.OCRURL = "https://aip.baidubce.com/rest/2.0/ocr/v1/general_basic"
	}
	if c.Captcha.TokenCachePath == "" {
		c.Captcha.TokenCachePath = "./data/ocr_token.json"
	}
	if c.Captcha.JfbymURL == "" {
		c.Captcha.JfbymURL = "http://api.jfbym.com/api/YmServer/customApi"
	}
	if c.Captcha.JfbymType == "" {
		c.Captcha.JfbymType = "10110"
	}

	defaultRetry(&c.Retry.Login, 3, 5000, 5000)
	defaultRetry(&c.Retry.Status, 3, 2000, 0)
	defaultRetry(&c.Retry.Checkin, 3, 3000, 2000)
	defaultRetry(&c.Retry.Token, 2, 1000, 0)

	if c.Storage.CookiePath == "" {
		c.Storage.CookiePath = "./cookies.json"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "./data/signer.db"
	}

	if c.Notify.PushURL == "" {
		c.Notify.PushURL = "https://sctapi.ftqq.com"
	}

	if c.Log.Dir == "" {
		c.Log.Dir = "./logs"
	}
}

func defaultRetry(p *RetryPolicyCfg, count, waitMs, stepMs int) {
	if p.Count <= 0 {
		p.Count = count
	}
	if p.WaitMs <= 0 {
		p.WaitMs = waitMs
	}
	// stepMs 为负表示固定间隔（不递增）。
	if p.StepMs == 0 {
		p.StepMs = stepMs
	}
}

func (c Config) validate() error {
	u, err := url.Parse(c.Site.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("site.baseURL must be an absolute URL")
	}
	switch c.Captcha.Provider {
	case "", "baidu", "jfbym":
	default:
		return fmt.Errorf("captcha.provider %q is not supported", c.Captcha.Provider)
	}
	if c.Captcha.Provider == "baidu" && (c.Captcha.APIKey == "" || c.Captcha.SecretKey == "") {
		return errors.New("captcha.apiKey and captcha.secretKey are required for baidu")
	}
	if c.Captcha.Provider == "jfbym" && c.Captcha.JfbymToken == "" {
		return errors.New("captcha.jfbymToken is required for jfbym")
	}
	if c.Notify.Email.Enabled && (c.Notify.Email.Username == "" || c.Notify.Email.AuthCode == "") {
		return errors.New("notify.email.username and notify.email.authCode are required when email is enabled")
	}
	return nil
}
