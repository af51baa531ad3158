package captcha

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rangdl/FN-AQ/internal/logbus"
	"github.com/rangdl/FN-AQ/internal/retry"
)

// token 提前这么久视为过期，避免请求途中失效。
const tokenExpiryMargin = 5 * time.Minute

type BaiduOptions struct {
	Client    *resty.Client
	APIKey    string
	SecretKey string
	TokenURL  string
	OCRURL    string
	Cache     *TokenCache
	Retry     retry.Policy
	Bus       *logbus.Bus
	Now       func() time.Time
}

// Baidu 使用 client_credentials 换取 access_token，再调用通用文字识别。
type Baidu struct {
	opts BaiduOptions

	mu    sync.Mutex
	token Token
}

func NewBaidu(opts BaiduOptions) *Baidu {
	if opts.Client == nil {
		opts.Client = resty.New().SetTimeout(10 * time.Second)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Baidu{opts: opts}
}

func (b *Baidu) Name() string { return "baidu" }

type baiduTokenResp struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type baiduOCRResp struct {
	WordsResult []struct {
		Words string `json:"words"`
	} `json:"words_result"`
	ErrorCode int    `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// Token 返回可用的 access_token：内存 -> 缓存文件 -> 网络刷新。
func (b *Baidu) Token(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.opts.Now()
	if b.token.Valid(now, tokenExpiryMargin) {
		return b.token.AccessToken, nil
	}
	if cached, err := b.opts.Cache.Load(); err == nil && cached.Valid(now, tokenExpiryMargin) {
		b.token = cached
		b.opts.Bus.Log("debug", "ocr token reused from cache", map[string]any{"expiresTime": cached.ExpiresTime})
		return cached.AccessToken, nil
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		b.opts.Bus.Log("warn", "ocr token cache unreadable", map[string]any{"error": err.Error()})
	}

	var fresh Token
	err := retry.Do(ctx, b.opts.Retry, func(ctx context.Context, _ int) error {
		t, err := b.fetchToken(ctx)
		if err != nil {
			var se *ServiceError
			if errors.As(err, &se) && !se.Retryable {
				return retry.Permanent(err)
			}
			return err
		}
		fresh = t
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("fetch ocr token: %w", err)
	}
	b.token = fresh
	if err := b.opts.Cache.Save(fresh); err != nil {
		b.opts.Bus.Log("warn", "save ocr token cache failed", map[string]any{"error": err.Error()})
	}
	b.opts.Bus.Log("info", "ocr token refreshed", map[string]any{"expiresTime": fresh.ExpiresTime})
	return fresh.AccessToken, nil
}

func (b *Baidu) fetchToken(ctx context.Context) (Token, error) {
	resp, err := b.opts.Client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     b.opts.APIKey,
			"client_secret": b.opts.SecretKey,
		}).
		Post(b.opts.TokenURL)
	if err != nil {
		return Token{}, err
	}
	var out baiduTokenResp
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return Token{}, &ServiceError{Provider: "baidu", Code: strconv.Itoa(resp.StatusCode()), Message: "bad token response", Retryable: true}
	}
	if out.Error != "" || out.AccessToken == "" {
		msg := out.ErrorDescription
		if msg == "" {
			msg = "no access_token in response"
		}
		return Token{}, &ServiceError{Provider: "baidu", Code: out.Error, Message: msg, Retryable: resp.StatusCode() >= 500}
	}
	return Token{
		AccessToken: out.AccessToken,
		ExpiresTime: b.opts.Now().Unix() + out.ExpiresIn,
	}, nil
}

func (b *Baidu) invalidate() {
	b.mu.Lock()
	b.token = Token{}
	b.mu.Unlock()
	_ = b.opts.Cache.Save(Token{})
}

func (b *Baidu) Recognize(ctx context.Context, image []byte) (string, error) {
	token, err := b.Token(ctx)
	if err != nil {
		return "", err
	}
	resp, err := b.opts.Client.R().
		SetContext(ctx).
		SetQueryParam("access_token", token).
		SetFormData(map[string]string{
			"image": base64.StdEncoding.EncodeToString(image),
		}).
		Post(b.opts.OCRURL)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", &ServiceError{Provider: "baidu", Code: strconv.Itoa(resp.StatusCode()), Message: "http error", Retryable: true}
	}
	var out baiduOCRResp
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", &ServiceError{Provider: "baidu", Message: "bad ocr response", Retryable: true}
	}
	if out.ErrorCode != 0 {
		// 110/111: access token 无效或过期
		if out.ErrorCode == 110 || out.ErrorCode == 111 {
			b.invalidate()
		}
		return "", &ServiceError{Provider: "baidu", Code: strconv.Itoa(out.ErrorCode), Message: out.ErrorMsg, Retryable: true}
	}
	var text string
	for _, w := range out.WordsResult {
		text += w.Words
	}
	text = normalize(text)
	if text == "" {
		return "", ErrEmptyResult
	}
	return text, nil
}
