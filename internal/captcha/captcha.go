// Package captcha 把登录验证码图片交给外部 OCR 服务识别。
package captcha

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/rangdl/FN-AQ/internal/config"
	"github.com/rangdl/FN-AQ/internal/logbus"
	"github.com/rangdl/FN-AQ/internal/retry"
)

type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, image []byte) (string, error)
}

var ErrEmptyResult = errors.New("captcha: empty recognition result")

// ServiceError 表示 OCR 服务返回了非 200 或错误载荷。
type ServiceError struct {
	Provider  string
	Code      string
	Message   string
	Retryable bool
}

func (e *ServiceError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Message, e.Code)
}

// New 按配置创建识别器；未配置时返回 nil, nil。
func New(cfg config.CaptchaConfig, tokenRetry retry.Policy, bus *logbus.Bus) (Recognizer, error) {
	client := resty.New().SetTimeout(cfg.Timeout())
	switch cfg.Provider {
	case "":
		return nil, nil
	case "baidu":
		return NewBaidu(BaiduOptions{
			Client:    client,
			APIKey:    cfg.APIKey,
			SecretKey: cfg.SecretKey,
			TokenURL:  cfg.TokenURL,
			OCRURL:    cfg.OCRURL,
			Cache:     NewTokenCache(cfg.TokenCachePath),
			Retry:     tokenRetry,
			Bus:       bus,
		}), nil
	case "jfbym":
		return NewJfbym(client, cfg.JfbymURL, cfg.JfbymToken, cfg.JfbymType), nil
	default:
		return nil, fmt.Errorf("captcha: unknown provider %q", cfg.Provider)
	}
}

// normalize 去掉识别结果里的空白，Discuz 的验证码不含空格。
func normalize(s string) string {
	return strings.Join(strings.Fields(s), "")
}
