package model

import (
	"net/http"
	"testing"
	"time"
)

func TestCookiesHTTPConversion(t *testing.T) {
	exp := time.Unix(1900000000, 0)
	in := &http.Cookie{
		Name:     "auth",
		Value:    "abc",
		Domain:   "club.fnnas.com",
		Path:     "/",
		Expires:  exp,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	got := CookieFromHTTP(in)
	if got.Expires != exp.Unix() || got.SameSite != "lax" || !got.Secure {
		t.Fatalf("cookie = %+v", got)
	}

	back := CookiesToHTTP([]Cookie{got})
	if !back[0].Expires.Equal(exp) || back[0].SameSite != http.SameSiteLaxMode || back[0].Domain != "club.fnnas.com" {
		t.Fatalf("http cookie = %+v", back[0])
	}
}

func TestCookieExpired(t *testing.T) {
	now := time.Unix(1000, 0)
	if (Cookie{Expires: 0}).Expired(now) {
		t.Fatal("session cookie must not be expired")
	}
	if !(Cookie{Expires: 999}).Expired(now) {
		t.Fatal("past cookie must be expired")
	}
	if (Cookie{Expires: 1001}).Expired(now) {
		t.Fatal("future cookie must not be expired")
	}
}

func TestSummaryFormat(t *testing.T) {
	s := Summary{{Key: "连续打卡", Value: "3 天"}, {Key: "累计打卡", Value: "10 天"}}
	if got := s.Format(); got != "连续打卡: 3 天\n累计打卡: 10 天" {
		t.Fatalf("Format = %q", got)
	}
	if s.Map()["累计打卡"] != "10 天" {
		t.Fatalf("Map = %v", s.Map())
	}
}

func TestCheckinStatusString(t *testing.T) {
	for s, want := range map[CheckinStatus]string{
		CheckinDone:    "DONE",
		CheckinNotDone: "NOT_DONE",
		CheckinUnknown: "UNKNOWN",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
