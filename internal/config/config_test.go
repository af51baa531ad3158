package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := load(filepath.Join(t.TempDir(), "nope.yaml"), envMap(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Site.BaseURL != "https://club.fnnas.com/" {
		t.Fatalf("baseURL = %q", cfg.Site.BaseURL)
	}
	if got := cfg.Site.LoginURL(); got != "https://club.fnnas.com/member.php?mod=logging&action=login" {
		t.Fatalf("LoginURL = %q", got)
	}
	if got := cfg.Site.CheckinURL(); got != "https://club.fnnas.com/plugin.php?id=zqlj_sign" {
		t.Fatalf("CheckinURL = %q", got)
	}
	if cfg.Site.Timeout() != 20*time.Second {
		t.Fatalf("timeout = %v", cfg.Site.Timeout())
	}
	if cfg.Retry.Login.Count != 3 {
		t.Fatalf("login retry count = %d", cfg.Retry.Login.Count)
	}
	if cfg.Captcha.Provider != "" {
		t.Fatalf("provider = %q, want empty without keys", cfg.Captcha.Provider)
	}
	if cfg.Markers.DoneLabel != "今日已打卡" || cfg.Markers.NotDoneLabel != "点击打卡" {
		t.Fatalf("labels = %q / %q", cfg.Markers.DoneLabel, cfg.Markers.NotDoneLabel)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`
site:
  baseURL: http://127.0.0.1:8080/
  timeoutMs: 1500
account:
  username: file-user
  password: file-pass
retry:
  login:
    count: 5
    waitMs: 10
    stepMs: -1
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := load(path, envMap(map[string]string{
		"FN_USERNAME":       "env-user",
		"FN_OCR_API_KEY":    "ak",
		"FN_OCR_SECRET_KEY": "sk",
		"FN_DEBUG":          "true",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Account.Username != "env-user" {
		t.Fatalf("username = %q, want env override", cfg.Account.Username)
	}
	if cfg.Account.Password != "file-pass" {
		t.Fatalf("password = %q", cfg.Account.Password)
	}
	if cfg.Site.Timeout() != 1500*time.Millisecond {
		t.Fatalf("timeout = %v", cfg.Site.Timeout())
	}
	if cfg.Retry.Login.Count != 5 || cfg.Retry.Login.Wait() != 10*time.Millisecond || cfg.Retry.Login.Step() != 0 {
		t.Fatalf("login retry = %+v", cfg.Retry.Login)
	}
	if cfg.Captcha.Provider != "baidu" {
		t.Fatalf("provider = %q, want baidu", cfg.Captcha.Provider)
	}
	if !cfg.Log.Debug {
		t.Fatal("debug not enabled from env")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"relative base", "site:\n  baseURL: club.fnnas.com\n"},
		{"unknown provider", "captcha:\n  provider: tesseract\n"},
		{"baidu without secret", "captcha:\n  provider: baidu\n  apiKey: ak\n"},
		{"email without auth code", "notify:\n  email:\n    enabled: true\n    username: me@qq.com\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := load(path, envMap(nil)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
