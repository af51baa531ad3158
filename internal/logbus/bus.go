package logbus

import (
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

type Event struct {
	Time   int64          `json:"time"`
	Level  string         `json:"level"`
	Msg    string         `json:"msg"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Bus 把日志转发给 logger，同时保留本次运行最近的 cap 条事件，
// 运行结束后随运行记录一起落库。
type Bus struct {
	mu     sync.RWMutex
	buf    []Event
	cap    int
	logger *log.Logger
}

func New(capacity int, logger *log.Logger) *Bus {
	if capacity <= 0 {
		capacity = 200
	}
	if logger != nil {
		// 跳过 Bus.Log 这一层，ReportCaller 显示真正的调用方
		logger.SetCallerOffset(1)
	}
	return &Bus{
		cap:    capacity,
		buf:    make([]Event, 0, capacity),
		logger: logger,
	}
}

func (b *Bus) Snapshot() []Event {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Event, len(b.buf))
	copy(out, b.buf)
	return out
}

func (b *Bus) Log(level, message string, fields map[string]any) {
	if b == nil {
		return
	}
	evt := Event{
		Time:   time.Now().UnixMilli(),
		Level:  level,
		Msg:    message,
		Fields: fields,
	}

	b.mu.Lock()
	if len(b.buf) < b.cap {
		b.buf = append(b.buf, evt)
	} else {
		copy(b.buf, b.buf[1:])
		b.buf[b.cap-1] = evt
	}
	b.mu.Unlock()

	if b.logger != nil {
		b.logger.Log(parseLevel(level), message, keyvals(fields)...)
	}
}

func parseLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func keyvals(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		out = append(out, k, fields[k])
	}
	return out
}
