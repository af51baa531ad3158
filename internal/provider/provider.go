package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/rangdl/FN-AQ/internal/model"
)

// Site 是一次运行里与目标论坛交互的全部操作，实现方持有会话 cookie。
type Site interface {
	Name() string

	IsAuthenticated(ctx context.Context) bool
	Login(ctx context.Context, creds model.Credentials) error
	Status(ctx context.Context) (model.CheckinState, error)
	// CheckIn 发出签到请求后重新读取状态，只有状态变为已签到才返回 nil。
	CheckIn(ctx context.Context, token string) error
	Summary(ctx context.Context) (model.Summary, error)

	Cookies() []model.Cookie
}

var (
	ErrElementNotFound    = errors.New("expected element not found")
	ErrMissingFormHash    = errors.New("login form has no formhash")
	ErrMissingToken       = errors.New("check-in link has no token")
	ErrCaptchaUnavailable = errors.New("captcha required but no recognizer configured")
	ErrCaptchaRejected    = errors.New("captcha rejected")
	ErrLoginRejected      = errors.New("login rejected")
	ErrNotConfirmed       = errors.New("check-in sent but status not updated")
	ErrUnknownStatus      = errors.New("unrecognized check-in label")
)

// HTTPError 是非 2xx 响应。
type HTTPError struct {
	Method string
	URL    string
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.Status)
}
