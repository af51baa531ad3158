package captcha

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rangdl/FN-AQ/internal/config"
	"github.com/rangdl/FN-AQ/internal/retry"
)

type fakeBaidu struct {
	tokenCalls atomic.Int32
	ocrCalls   atomic.Int32
	lastToken  atomic.Value
	lastImage  atomic.Value
	ocrBody    string
}

func (f *fakeBaidu) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/2.0/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		if r.URL.Query().Get("client_id") != "ak" || r.URL.Query().Get("client_secret") != "sk" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"unknown client id"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh-token","expires_in":2592000}`))
	})
	mux.HandleFunc("/ocr", func(w http.ResponseWriter, r *http.Request) {
		f.ocrCalls.Add(1)
		_ = r.ParseForm()
		f.lastToken.Store(r.URL.Query().Get("access_token"))
		f.lastImage.Store(r.PostForm.Get("image"))
		w.Header().Set("Content-Type", "application/json")
		body := f.ocrBody
		if body == "" {
			body = `{"words_result":[{"words":"a B"},{"words":"3d"}],"words_result_num":2}`
		}
		_, _ = w.Write([]byte(body))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestBaidu(srv *httptest.Server, cache *TokenCache, now time.Time, secret string) *Baidu {
	return NewBaidu(BaiduOptions{
		Client:    resty.New(),
		APIKey:    "ak",
		SecretKey: secret,
		TokenURL:  srv.URL + "/oauth/2.0/token",
		OCRURL:    srv.URL + "/ocr",
		Cache:     cache,
		Retry:     retry.Policy{Attempts: 1},
		Now:       func() time.Time { return now },
	})
}

func TestBaiduReusesUnexpiredCachedToken(t *testing.T) {
	f := &fakeBaidu{}
	srv := f.server(t)
	now := time.Unix(1_700_000_000, 0)
	cache := NewTokenCache(filepath.Join(t.TempDir(), "token.json"))
	if err := cache.Save(Token{AccessToken: "cached-token", ExpiresTime: now.Add(24 * time.Hour).Unix()}); err != nil {
		t.Fatal(err)
	}

	b := newTestBaidu(srv, cache, now, "sk")
	text, err := b.Recognize(context.Background(), []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if text != "aB3d" {
		t.Fatalf("text = %q, want aB3d", text)
	}
	if n := f.tokenCalls.Load(); n != 0 {
		t.Fatalf("token calls = %d, want 0", n)
	}
	if got := f.lastToken.Load(); got != "cached-token" {
		t.Fatalf("ocr used token %v", got)
	}
	if got := f.lastImage.Load(); got != base64.StdEncoding.EncodeToString([]byte("png-bytes")) {
		t.Fatalf("image = %v", got)
	}
}

func TestBaiduRefreshesExpiredTokenOnce(t *testing.T) {
	f := &fakeBaidu{}
	srv := f.server(t)
	now := time.Unix(1_700_000_000, 0)
	cache := NewTokenCache(filepath.Join(t.TempDir(), "token.json"))
	if err := cache.Save(Token{AccessToken: "stale", ExpiresTime: now.Add(-time.Hour).Unix()}); err != nil {
		t.Fatal(err)
	}

	b := newTestBaidu(srv, cache, now, "sk")
	for i := 0; i < 3; i++ {
		if _, err := b.Recognize(context.Background(), []byte("img")); err != nil {
			t.Fatalf("Recognize #%d: %v", i, err)
		}
	}
	if n := f.tokenCalls.Load(); n != 1 {
		t.Fatalf("token calls = %d, want exactly 1", n)
	}

	saved, err := cache.Load()
	if err != nil {
		t.Fatal(err)
	}
	if saved.AccessToken != "fresh-token" || saved.ExpiresTime != now.Unix()+2592000 {
		t.Fatalf("cached token = %+v", saved)
	}

	// 新实例读取缓存文件，不再请求
	b2 := newTestBaidu(srv, cache, now, "sk")
	if _, err := b2.Token(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := f.tokenCalls.Load(); n != 1 {
		t.Fatalf("token calls after reload = %d, want 1", n)
	}
}

func TestBaiduTokenErrorPayload(t *testing.T) {
	f := &fakeBaidu{}
	srv := f.server(t)
	b := newTestBaidu(srv, NewTokenCache(""), time.Now(), "wrong")
	_, err := b.Recognize(context.Background(), []byte("img"))
	var se *ServiceError
	if !errors.As(err, &se) || se.Code != "invalid_client" {
		t.Fatalf("err = %v, want ServiceError invalid_client", err)
	}
	if f.ocrCalls.Load() != 0 {
		t.Fatal("ocr must not be called without a token")
	}
}

func TestBaiduBadCredentialsNotRetried(t *testing.T) {
	f := &fakeBaidu{}
	srv := f.server(t)
	b := NewBaidu(BaiduOptions{
		Client:    resty.New(),
		APIKey:    "ak",
		SecretKey: "wrong",
		TokenURL:  srv.URL + "/oauth/2.0/token",
		OCRURL:    srv.URL + "/ocr",
		Cache:     NewTokenCache(""),
		Retry: retry.Policy{
			Attempts: 3,
			Sleep:    func(context.Context, time.Duration) error { return nil },
		},
	})

	_, err := b.Token(context.Background())
	var se *ServiceError
	if !errors.As(err, &se) || se.Code != "invalid_client" || se.Retryable {
		t.Fatalf("err = %v, want non-retryable invalid_client", err)
	}
	if n := f.tokenCalls.Load(); n != 1 {
		t.Fatalf("token calls = %d, want 1", n)
	}
}

func TestBaiduTokenExpiryMargin(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tests := []struct {
		name      string
		expiresIn time.Duration
		want      int32
	}{
		{"inside margin", 2 * time.Minute, 1},
		{"exactly at margin", tokenExpiryMargin, 1},
		{"outside margin", 10 * time.Minute, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeBaidu{}
			srv := f.server(t)
			cache := NewTokenCache(filepath.Join(t.TempDir(), "token.json"))
			if err := cache.Save(Token{AccessToken: "cached-token", ExpiresTime: now.Add(tt.expiresIn).Unix()}); err != nil {
				t.Fatal(err)
			}
			b := newTestBaidu(srv, cache, now, "sk")
			if _, err := b.Token(context.Background()); err != nil {
				t.Fatalf("Token: %v", err)
			}
			if n := f.tokenCalls.Load(); n != tt.want {
				t.Fatalf("token calls = %d, want %d", n, tt.want)
			}
		})
	}
}

func TestBaiduOCRErrorInvalidatesToken(t *testing.T) {
	f := &fakeBaidu{ocrBody: `{"error_code":110,"error_msg":"Access token invalid or no longer valid"}`}
	srv := f.server(t)
	b := newTestBaidu(srv, NewTokenCache(filepath.Join(t.TempDir(), "t.json")), time.Now(), "sk")

	_, err := b.Recognize(context.Background(), []byte("img"))
	var se *ServiceError
	if !errors.As(err, &se) || se.Code != "110" || !se.Retryable {
		t.Fatalf("err = %v", err)
	}
	if _, err := b.Recognize(context.Background(), []byte("img")); err == nil {
		t.Fatal("expected error again")
	}
	if n := f.tokenCalls.Load(); n != 2 {
		t.Fatalf("token calls = %d, want 2 (refetch after invalidation)", n)
	}
}

func TestBaiduEmptyResult(t *testing.T) {
	f := &fakeBaidu{ocrBody: `{"words_result":[],"words_result_num":0}`}
	srv := f.server(t)
	b := newTestBaidu(srv, NewTokenCache(""), time.Now(), "sk")
	if _, err := b.Recognize(context.Background(), []byte("img")); !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("err = %v, want ErrEmptyResult", err)
	}
}

func TestJfbymRecognize(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"object data", `{"msg":"识别成功","code":10000,"data":{"code":0,"data":"x7k2","time":0.01}}`, "x7k2", false},
		{"string data", `{"msg":"ok","code":10000,"data":"ab12"}`, "ab12", false},
		{"error code", `{"msg":"余额不足","code":10002,"data":null}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			j := NewJfbym(resty.New(), srv.URL, "tok", "10110")
			got, err := j.Recognize(context.Background(), []byte("img"))
			if tt.wantErr {
				var se *ServiceError
				if !errors.As(err, &se) {
					t.Fatalf("err = %v, want ServiceError", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("got %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

func TestNewFromConfig(t *testing.T) {
	r, err := New(config.CaptchaConfig{}, retry.Policy{}, nil)
	if err != nil || r != nil {
		t.Fatalf("empty provider = %v, %v", r, err)
	}
	r, err = New(config.CaptchaConfig{Provider: "baidu", APIKey: "a", SecretKey: "b"}, retry.Policy{}, nil)
	if err != nil || r.Name() != "baidu" {
		t.Fatalf("baidu = %v, %v", r, err)
	}
	r, err = New(config.CaptchaConfig{Provider: "jfbym", JfbymToken: "t"}, retry.Policy{}, nil)
	if err != nil || r.Name() != "jfbym" {
		t.Fatalf("jfbym = %v, %v", r, err)
	}
	if _, err := New(config.CaptchaConfig{Provider: "nope"}, retry.Policy{}, nil); err == nil {
		t.Fatal("expected error")
	}
}
