package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rangdl/FN-AQ/internal/config"
	"github.com/rangdl/FN-AQ/internal/keyring"
	"github.com/rangdl/FN-AQ/internal/model"
)

func TestExitCode(t *testing.T) {
	if got := exitCode(nil); got != exitOK {
		t.Fatalf("nil = %d", got)
	}
	if got := exitCode(errors.New("login rejected")); got != exitFailed {
		t.Fatalf("run failure = %d", got)
	}
	if got := exitCode(configError(errors.New("bad yaml"))); got != exitConfig {
		t.Fatalf("config error = %d", got)
	}
}

func TestCredentials(t *testing.T) {
	lookups := 0
	found := func(string) (string, error) { lookups++; return "from-keyring", nil }
	missing := func(string) (string, error) { lookups++; return "", keyring.ErrNotFound }

	c := credentials(config.AccountConfig{Username: "alice", Password: "pw"}, found, nil)
	if c.Password != "pw" || lookups != 0 {
		t.Fatalf("explicit password: %+v lookups=%d", c, lookups)
	}
	c = credentials(config.AccountConfig{Username: "alice"}, found, nil)
	if c.Password != "from-keyring" {
		t.Fatalf("keyring fallback: %+v", c)
	}
	c = credentials(config.AccountConfig{Username: "alice"}, missing, nil)
	if c.Password != "" {
		t.Fatalf("missing entry: %+v", c)
	}
	before := lookups
	_ = credentials(config.AccountConfig{}, found, nil)
	if lookups != before {
		t.Fatal("keyring queried without a username")
	}
}

func TestHistoryTable(t *testing.T) {
	at := time.Date(2026, 10, 19, 8, 0, 0, 0, time.Local)
	out := historyTable([]model.RunRecord{
		{StartedAt: at, Username: "alice", Success: true, CheckedIn: true, State: model.RunStateDone, Label: "今日已打卡"},
		{StartedAt: at, Username: "alice", State: model.RunStateLogin, Error: strings.Repeat("x", 100)},
	}, false)
	for _, want := range []string{"2026-10-19 08:00:00", "signed", "failed", "LOGIN", "..."} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestLastSuccessLine(t *testing.T) {
	if got := lastSuccessLine(model.RunRecord{}, false); got != "last success: never" {
		t.Fatalf("none = %q", got)
	}
	at := time.Date(2026, 10, 18, 7, 30, 0, 0, time.Local)
	got := lastSuccessLine(model.RunRecord{StartedAt: at, Username: "alice", Success: true, Label: "今日已打卡"}, true)
	if got != "last success: 2026-10-18 07:30:00 (alice) 今日已打卡" {
		t.Fatalf("line = %q", got)
	}
}
