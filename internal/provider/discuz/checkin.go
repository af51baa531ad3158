package discuz

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rangdl/FN-AQ/internal/model"
	"github.com/rangdl/FN-AQ/internal/provider"
)

func (s *Site) Status(ctx context.Context) (model.CheckinState, error) {
	p, err := s.get(ctx, s.cfg.CheckinURL(), nil)
	if err != nil {
		return model.CheckinState{}, fmt.Errorf("fetch check-in page: %w", err)
	}
	btn := p.doc.Find(s.markers.CheckinSelector).First()
	if btn.Length() == 0 {
		return model.CheckinState{}, fmt.Errorf("check-in button: %w", provider.ErrElementNotFound)
	}
	href, _ := btn.Attr("href")
	label := strings.TrimSpace(btn.Text())
	return model.CheckinState{
		Label:  label,
		Status: s.classify(label),
		Token:  s.extractToken(href),
	}, nil
}

func (s *Site) classify(label string) model.CheckinStatus {
	switch label {
	case s.markers.DoneLabel:
		return model.CheckinDone
	case s.markers.NotDoneLabel:
		return model.CheckinNotDone
	default:
		return model.CheckinUnknown
	}
}

func (s *Site) extractToken(href string) string {
	if href == "" {
		return ""
	}
	m := s.tokenRe.FindStringSubmatch(href)
	if m == nil {
		return ""
	}
	return m[1]
}

// CheckIn 站点的签到响应里没有可靠的成功标志，只能再读一次状态确认。
func (s *Site) CheckIn(ctx context.Context, token string) error {
	if token == "" {
		return provider.ErrMissingToken
	}
	signURL := s.cfg.CheckinURL() + "&" + url.QueryEscape(s.markers.TokenKey) + "=" + token
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Referer", s.cfg.CheckinURL()).
		Get(signURL)
	if err != nil {
		return fmt.Errorf("send check-in: %w", err)
	}
	if resp.IsError() {
		return &provider.HTTPError{Method: "GET", URL: s.cfg.CheckinURL(), Status: resp.StatusCode()}
	}

	st, err := s.Status(ctx)
	if err != nil {
		return fmt.Errorf("confirm check-in: %w", err)
	}
	switch st.Status {
	case model.CheckinDone:
		return nil
	case model.CheckinUnknown:
		return fmt.Errorf("%w: %q", provider.ErrUnknownStatus, st.Label)
	default:
		return fmt.Errorf("%w: label %q", provider.ErrNotConfirmed, st.Label)
	}
}
