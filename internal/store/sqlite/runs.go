package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rangdl/FN-AQ/internal/model"
)

// InsertRun 写入一条运行记录，ID 为空时生成。
func (s *Store) InsertRun(ctx context.Context, rec model.RunRecord) (model.RunRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now()
	}
	summary := rec.Summary
	if summary == nil {
		summary = model.Summary{}
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return model.RunRecord{}, err
	}
	events := rec.EventsJSON
	if events == "" {
		events = "[]"
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, username, state, success, checked_in, label, summary_json, error, events_json, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Username, string(rec.State), boolToInt(rec.Success), boolToInt(rec.CheckedIn), rec.Label,
		string(summaryJSON), rec.Error, events, rec.StartedAt.UnixMilli(), rec.FinishedAt.UnixMilli())
	if err != nil {
		return model.RunRecord{}, err
	}
	return rec, nil
}

// ListRuns 按开始时间倒序返回最近 limit 条，limit<=0 时默认 20。
func (s *Store) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, state, success, checked_in, label, summary_json, error, events_json, started_at, finished_at
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LastSuccess 返回最近一次成功的运行；没有时 ok=false。
func (s *Store) LastSuccess(ctx context.Context) (model.RunRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, state, success, checked_in, label, summary_json, error, events_json, started_at, finished_at
		FROM runs WHERE success = 1 ORDER BY started_at DESC, rowid DESC LIMIT 1
	`)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RunRecord{}, false, nil
	}
	if err != nil {
		return model.RunRecord{}, false, err
	}
	return rec, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (model.RunRecord, error) {
	var (
		rec        model.RunRecord
		state      string
		success    int
		checkedIn  int
		summary    string
		startedAt  int64
		finishedAt int64
	)
	if err := sc.Scan(&rec.ID, &rec.Username, &state, &success, &checkedIn, &rec.Label, &summary, &rec.Error, &rec.EventsJSON, &startedAt, &finishedAt); err != nil {
		return model.RunRecord{}, err
	}
	rec.State = model.RunState(state)
	rec.Success = success != 0
	rec.CheckedIn = checkedIn != 0
	_ = json.Unmarshal([]byte(summary), &rec.Summary)
	rec.StartedAt = time.UnixMilli(startedAt)
	rec.FinishedAt = time.UnixMilli(finishedAt)
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
