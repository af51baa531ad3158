package captcha

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rangdl/FN-AQ/internal/utils"
)

// Token 的 ExpiresTime 是绝对时间（Unix 秒）。
type Token struct {
	AccessToken string `json:"access_token"`
	ExpiresTime int64  `json:"expires_time"`
}

// Valid 在 now+margin 之前未过期时为 true：距 ExpiresTime 不足 margin 的令牌
// 视为已过期。Baidu 用 tokenExpiryMargin（5 分钟）作为 margin。
func (t Token) Valid(now time.Time, margin time.Duration) bool {
	if t.AccessToken == "" {
		return false
	}
	return now.Add(margin).Unix() < t.ExpiresTime
}

type TokenCache struct {
	path string
}

func NewTokenCache(path string) *TokenCache {
	return &TokenCache{path: path}
}

func (c *TokenCache) Load() (Token, error) {
	if c == nil || c.path == "" {
		return Token{}, os.ErrNotExist
	}
	b, err := os.ReadFile(c.path)
	if err != nil {
		return Token{}, err
	}
	var t Token
	if err := json.Unmarshal(b, &t); err != nil {
		return Token{}, err
	}
	return t, nil
}

func (c *TokenCache) Save(t Token) error {
	if c == nil || c.path == "" {
		return nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(c.path, b, 0o600)
}
