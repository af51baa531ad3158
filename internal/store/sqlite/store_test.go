package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rangdl/FN-AQ/internal/model"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "signer.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertAndListRuns(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	first, err := s.InsertRun(ctx, model.RunRecord{
		Username:   "alice",
		State:      model.RunStateDone,
		Success:    true,
		CheckedIn:  true,
		Label:      "今日已打卡",
		Summary:    model.Summary{{Key: "本月打卡", Value: "3天"}},
		StartedAt:  base,
		FinishedAt: base.Add(3 * time.Second),
	})
	if err != nil {
		t.Fatalf("InsertRun: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected generated id")
	}
	if _, err := s.InsertRun(ctx, model.RunRecord{
		Username:  "alice",
		State:     model.RunStateLogin,
		Error:     "login rejected",
		StartedAt: base.Add(time.Hour),
	}); err != nil {
		t.Fatalf("InsertRun: %v", err)
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len = %d, want 2", len(runs))
	}
	if runs[0].State != model.RunStateLogin || runs[0].Success {
		t.Fatalf("newest run = %+v", runs[0])
	}
	got := runs[1]
	if got.ID != first.ID || !got.CheckedIn || got.Summary.Map()["本月打卡"] != "3天" || !got.StartedAt.Equal(base) {
		t.Fatalf("older run = %+v", got)
	}
	if got.EventsJSON != "[]" {
		t.Fatalf("events = %q", got.EventsJSON)
	}

	last, ok, err := s.LastSuccess(ctx)
	if err != nil || !ok || last.ID != first.ID {
		t.Fatalf("LastSuccess = %+v, %v, %v", last, ok, err)
	}
}

func TestLastSuccessEmpty(t *testing.T) {
	_, ok, err := openTemp(t).LastSuccess(context.Background())
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v, want no record", ok, err)
	}
}

func TestListRunsLimit(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := s.InsertRun(ctx, model.RunRecord{State: model.RunStateDone, StartedAt: time.Unix(int64(1000+i), 0)}); err != nil {
			t.Fatal(err)
		}
	}
	runs, err := s.ListRuns(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 || runs[0].StartedAt.Unix() != 1004 {
		t.Fatalf("runs = %+v", runs)
	}
}
