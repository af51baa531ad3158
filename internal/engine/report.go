package engine

import (
	"strings"

	"github.com/rangdl/FN-AQ/internal/notify"
)

func buildMessage(res Result, username string) notify.Message {
	var title string
	switch {
	case !res.OK:
		title = "论坛签到失败"
	case res.CheckedIn:
		title = "论坛签到成功"
	default:
		title = "论坛今日已签到"
	}

	var b strings.Builder
	if username != "" {
		b.WriteString("账号: " + username + "\n")
	}
	if res.Checkin.Label != "" {
		b.WriteString("状态: " + res.Checkin.Label + "\n")
	}
	if !res.OK {
		b.WriteString("失败步骤: " + string(res.State) + "\n")
		if res.Err != nil {
			b.WriteString("原因: " + res.Err.Error() + "\n")
		}
	}
	if len(res.Summary) > 0 {
		b.WriteString(res.Summary.Format() + "\n")
	}
	return notify.Message{
		Title:   title,
		Body:    strings.TrimRight(b.String(), "\n"),
		Success: res.OK,
	}
}
