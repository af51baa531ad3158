package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ServerChan 通过 Server 酱推送到微信：POST <baseURL>/<key>.send
type ServerChan struct {
	client  *resty.Client
	baseURL string
	key     string
}

func NewServerChan(client *resty.Client, baseURL, key string) *ServerChan {
	if client == nil {
		client = resty.New().SetTimeout(10 * time.Second)
	}
	return &ServerChan{client: client, baseURL: strings.TrimRight(baseURL, "/"), key: key}
}

func (s *ServerChan) Name() string { return "serverchan" }

type serverChanResp struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *ServerChan) Notify(ctx context.Context, msg Message) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"title": msg.Title,
			"desp":  msg.Body,
		}).
		Post(s.baseURL + "/" + s.key + ".send")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("serverchan: status %d", resp.StatusCode())
	}
	var out serverChanResp
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return fmt.Errorf("serverchan: bad response: %w", err)
	}
	if out.Code != 0 {
		return fmt.Errorf("serverchan: %s (%d)", out.Message, out.Code)
	}
	return nil
}
