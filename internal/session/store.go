// Package session 负责 cookie 的恢复与持久化。
package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/rangdl/FN-AQ/internal/logbus"
	"github.com/rangdl/FN-AQ/internal/model"
	"github.com/rangdl/FN-AQ/internal/utils"
)

var ErrMalformed = errors.New("malformed cookie file")

type Store struct {
	path string
	bus  *logbus.Bus
}

func NewStore(path string, bus *logbus.Bus) *Store {
	return &Store{path: path, bus: bus}
}

func (s *Store) Path() string { return s.path }

// Load 读取失败（不存在、IO 错误、内容损坏）都当作“没有旧会话”，只记录日志。
func (s *Store) Load() ([]model.Cookie, bool) {
	cookies, err := s.read()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.bus.Log("warn", "load cookies failed", map[string]any{"path": s.path, "error": err.Error()})
		}
		return nil, false
	}
	if len(cookies) == 0 {
		return nil, false
	}
	s.bus.Log("info", "cookies loaded", map[string]any{"path": s.path, "count": len(cookies)})
	return cookies, true
}

func (s *Store) read() ([]model.Cookie, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	return Decode(b)
}

// Save 总是写扩展格式（cookie 记录数组），先写临时文件再 rename。
func (s *Store) Save(cookies []model.Cookie) error {
	if cookies == nil {
		cookies = []model.Cookie{}
	}
	b, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return err
	}
	if err := utils.WriteFileAtomic(s.path, b, 0o600); err != nil {
		return err
	}
	s.bus.Log("info", "cookies saved", map[string]any{"path": s.path, "count": len(cookies)})
	return nil
}

// cookieRecord 兼容各版本脚本写出的字段名（expires / expiry，数值可能是浮点或 null）。
type cookieRecord struct {
	Name     string   `json:"name"`
	Value    string   `json:"value"`
	Domain   string   `json:"domain"`
	Path     string   `json:"path"`
	Expires  *float64 `json:"expires"`
	Expiry   *float64 `json:"expiry"`
	Secure   bool     `json:"secure"`
	HttpOnly bool     `json:"httpOnly"`
	SameSite string   `json:"sameSite"`
}

// Decode 接受两种格式：旧版 {"name": "value"} 映射，或扩展版 cookie 记录数组。
func Decode(b []byte) ([]model.Cookie, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformed)
	}
	switch b[0] {
	case '{':
		var legacy map[string]any
		if err := json.Unmarshal(b, &legacy); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		out := make([]model.Cookie, 0, len(legacy))
		for name, v := range legacy {
			value, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: cookie %q is not a string", ErrMalformed, name)
			}
			out = append(out, model.Cookie{Name: name, Value: value})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out, nil
	case '[':
		var recs []cookieRecord
		if err := json.Unmarshal(b, &recs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		out := make([]model.Cookie, 0, len(recs))
		for _, r := range recs {
			if r.Name == "" {
				continue
			}
			c := model.Cookie{
				Name:     r.Name,
				Value:    r.Value,
				Domain:   r.Domain,
				Path:     r.Path,
				Secure:   r.Secure,
				HttpOnly: r.HttpOnly,
				SameSite: r.SameSite,
			}
			switch {
			case r.Expires != nil:
				c.Expires = int64(*r.Expires)
			case r.Expiry != nil:
				c.Expires = int64(*r.Expiry)
			}
			out = append(out, c)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unexpected %q", ErrMalformed, b[0])
	}
}
