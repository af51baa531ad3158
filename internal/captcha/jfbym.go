package captcha

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strconv"

	"github.com/go-resty/resty/v2"
)

// Jfbym 调用云码 customApi，token 为静态密钥，不需要缓存。
type Jfbym struct {
	client *resty.Client
	url    string
	token  string
	typ    string
}

func NewJfbym(client *resty.Client, url, token, typ string) *Jfbym {
	return &Jfbym{client: client, url: url, token: token, typ: typ}
}

func (j *Jfbym) Name() string { return "jfbym" }

type jfbymReq struct {
	Image string `json:"image"`
	Token string `json:"token"`
	Type  string `json:"type"`
}

type jfbymResp struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type jfbymItem struct {
	Code int    `json:"code"`
	Data string `json:"data"`
}

func (j *Jfbym) Recognize(ctx context.Context, image []byte) (string, error) {
	resp, err := j.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(jfbymReq{
			Image: base64.StdEncoding.EncodeToString(image),
			Token: j.token,
			Type:  j.typ,
		}).
		Post(j.url)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", &ServiceError{Provider: "jfbym", Code: strconv.Itoa(resp.StatusCode()), Message: "http error", Retryable: true}
	}
	var sr jfbymResp
	if err := json.Unmarshal(resp.Body(), &sr); err != nil {
		return "", &ServiceError{Provider: "jfbym", Message: "bad response", Retryable: true}
	}
	if sr.Code != 10000 {
		return "", &ServiceError{Provider: "jfbym", Code: strconv.Itoa(sr.Code), Message: sr.Msg, Retryable: true}
	}

	var text string
	var item jfbymItem
	if json.Unmarshal(sr.Data, &item) == nil {
		text = item.Data
	} else {
		_ = json.Unmarshal(sr.Data, &text)
	}
	text = normalize(text)
	if text == "" {
		return "", ErrEmptyResult
	}
	return text, nil
}
