package notify

import (
	"context"
	"errors"

	"github.com/go-resty/resty/v2"

	"github.com/rangdl/FN-AQ/internal/config"
	"github.com/rangdl/FN-AQ/internal/logbus"
)

// Message 是一次运行结束后的结果通知。
type Message struct {
	Title string
	Body  string
	// Success 只影响邮件模板的配色。
	Success bool
}

type Notifier interface {
	Name() string
	Notify(ctx context.Context, msg Message) error
}

// Multi 依次调用每个通道；单个通道失败只记日志，返回合并后的错误。
type Multi struct {
	notifiers []Notifier
	bus       *logbus.Bus
}

func NewMulti(bus *logbus.Bus, notifiers ...Notifier) *Multi {
	out := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return &Multi{notifiers: out, bus: bus}
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Len() int { return len(m.notifiers) }

func (m *Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, msg); err != nil {
			m.bus.Log("warn", "notification failed", map[string]any{"channel": n.Name(), "error": err.Error()})
			errs = append(errs, err)
			continue
		}
		m.bus.Log("info", "notification sent", map[string]any{"channel": n.Name()})
	}
	return errors.Join(errs...)
}

// FromConfig 按配置组装通知通道；都没配置时返回空的 Multi。
func FromConfig(cfg config.NotifyConfig, client *resty.Client, bus *logbus.Bus) *Multi {
	var ns []Notifier
	if cfg.PushKey != "" {
		ns = append(ns, NewServerChan(client, cfg.PushURL, cfg.PushKey))
	}
	if cfg.Email.Enabled {
		ns = append(ns, NewEmail(cfg.Email))
	}
	return NewMulti(bus, ns...)
}
