package model

import (
	"fmt"
	"strings"
)

type CheckinStatus int

const (
	CheckinUnknown CheckinStatus = iota
	CheckinNotDone
	CheckinDone
)

func (s CheckinStatus) String() string {
	switch s {
	case CheckinNotDone:
		return "NOT_DONE"
	case CheckinDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// CheckinState 是一次读取签到页得到的结果。Token 可能为空（例如已签到时按钮没有链接）。
type CheckinState struct {
	Label  string        `json:"label"`
	Status CheckinStatus `json:"status"`
	Token  string        `json:"token,omitempty"`
}

type SummaryItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Summary 保留页面上的顺序。
type Summary []SummaryItem

func (s Summary) Map() map[string]string {
	out := make(map[string]string, len(s))
	for _, it := range s {
		out[it.Key] = it.Value
	}
	return out
}

func (s Summary) Format() string {
	var b strings.Builder
	for i, it := range s {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s", it.Key, it.Value)
	}
	return b.String()
}
