// Package engine 按固定顺序驱动一次签到运行：
// 校验会话 -> 登录 -> 读取状态 -> 签到 -> 汇总通知。
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rangdl/FN-AQ/internal/captcha"
	"github.com/rangdl/FN-AQ/internal/config"
	"github.com/rangdl/FN-AQ/internal/logbus"
	"github.com/rangdl/FN-AQ/internal/model"
	"github.com/rangdl/FN-AQ/internal/notify"
	"github.com/rangdl/FN-AQ/internal/provider"
	"github.com/rangdl/FN-AQ/internal/retry"
)

var ErrNoCredentials = errors.New("session invalid and no credentials configured")

type SessionSaver interface {
	Save(cookies []model.Cookie) error
}

type RunRecorder interface {
	InsertRun(ctx context.Context, rec model.RunRecord) (model.RunRecord, error)
}

type Options struct {
	Site        provider.Site
	Credentials model.Credentials
	Retry       config.RetryConfig
	Sessions    SessionSaver
	Notifier    notify.Notifier
	History     RunRecorder
	Bus         *logbus.Bus
	// Sleep 为空时使用 retry.SleepContext，测试里替换掉以免真的等待。
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

type Automator struct {
	site     provider.Site
	creds    model.Credentials
	retry    config.RetryConfig
	sessions SessionSaver
	notifier notify.Notifier
	history  RunRecorder
	bus      *logbus.Bus
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

type Result struct {
	OK bool
	// State 成功时为 DONE，失败时为出错的那一步。
	State     model.RunState
	Err       error
	Checkin   model.CheckinState
	CheckedIn bool
	Summary   model.Summary
	Record    model.RunRecord
}

func New(opts Options) *Automator {
	a := &Automator{
		site:     opts.Site,
		creds:    opts.Credentials,
		retry:    opts.Retry,
		sessions: opts.Sessions,
		notifier: opts.Notifier,
		history:  opts.History,
		bus:      opts.Bus,
		sleep:    opts.Sleep,
		now:      opts.Now,
	}
	if a.sleep == nil {
		a.sleep = retry.SleepContext
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Run 执行一次完整流程。错误不会向外 panic，统一体现在 Result 里。
func (a *Automator) Run(ctx context.Context) Result {
	res := Result{State: model.RunStateInit}
	started := a.now()
	a.bus.Log("info", "run started", map[string]any{"site": a.site.Name(), "user": a.creds.Username})

	res.Err = a.steps(ctx, &res)
	if res.Err == nil {
		res.OK = true
		res.State = model.RunStateDone
		a.bus.Log("info", "run finished", map[string]any{"label": res.Checkin.Label, "checkedIn": res.CheckedIn})
	} else {
		a.bus.Log("error", "run failed", map[string]any{"state": string(res.State), "error": res.Err.Error()})
	}

	a.notify(ctx, res)
	res.Record = a.record(ctx, res, started)
	return res
}

func (a *Automator) steps(ctx context.Context, res *Result) error {
	res.State = model.RunStateCheckAuth
	if !a.site.IsAuthenticated(ctx) {
		res.State = model.RunStateLogin
		if err := a.login(ctx); err != nil {
			return err
		}
	}

	res.State = model.RunStateCheckStatus
	st, err := a.status(ctx)
	if err != nil {
		return err
	}
	res.Checkin = st
	a.bus.Log("info", "check-in status", map[string]any{"label": st.Label, "status": st.Status.String()})

	if st.Status == model.CheckinNotDone {
		res.State = model.RunStatePerformCheckin
		if err := a.checkIn(ctx, st); err != nil {
			return err
		}
		res.CheckedIn = true
		res.Checkin.Status = model.CheckinDone
		a.bus.Log("info", "check-in succeeded", nil)
	} else {
		a.bus.Log("info", "already checked in today", nil)
	}

	res.State = model.RunStateReport
	sum, err := a.site.Summary(ctx)
	if err != nil {
		a.bus.Log("warn", "read summary failed", map[string]any{"error": err.Error()})
	}
	res.Summary = sum
	for _, it := range sum {
		a.bus.Log("info", "summary", map[string]any{"key": it.Key, "value": it.Value})
	}
	return nil
}

func (a *Automator) policy(c config.RetryPolicyCfg, step string) retry.Policy {
	p := retry.FromConfig(c)
	p.Sleep = a.sleep
	p.OnRetry = func(attempt int, err error, wait time.Duration) {
		a.bus.Log("warn", step+" failed, retrying", map[string]any{
			"attempt": attempt,
			"of":      p.Attempts,
			"wait":    wait.String(),
			"error":   err.Error(),
		})
	}
	return p
}

func (a *Automator) login(ctx context.Context) error {
	if a.creds.Empty() {
		return ErrNoCredentials
	}
	err := retry.Do(ctx, a.policy(a.retry.Login, "login"), func(ctx context.Context, attempt int) error {
		a.bus.Log("info", "login attempt", map[string]any{"attempt": attempt})
		return classifyLogin(a.site.Login(ctx, a.creds))
	})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if a.sessions != nil {
		if err := a.sessions.Save(a.site.Cookies()); err != nil {
			a.bus.Log("warn", "save session failed", map[string]any{"error": err.Error()})
		}
	}
	return nil
}

// classifyLogin 把不会因为重试而改变的错误标记为 Permanent。
func classifyLogin(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, provider.ErrCaptchaUnavailable) {
		return retry.Permanent(err)
	}
	var se *captcha.ServiceError
	if errors.As(err, &se) && !se.Retryable {
		return retry.Permanent(err)
	}
	return err
}

func (a *Automator) status(ctx context.Context) (model.CheckinState, error) {
	var st model.CheckinState
	err := retry.Do(ctx, a.policy(a.retry.Status, "status check"), func(ctx context.Context, _ int) error {
		s, err := a.site.Status(ctx)
		if err != nil {
			return err
		}
		if s.Status == model.CheckinUnknown {
			return retry.Permanent(fmt.Errorf("%w: %q", provider.ErrUnknownStatus, s.Label))
		}
		st = s
		return nil
	})
	if err != nil {
		return model.CheckinState{}, fmt.Errorf("status: %w", err)
	}
	return st, nil
}

// checkIn 第一次使用已读到的 token；之后每次重试先重新读状态，
// 已签到则直接成功，否则换用新的 token。
func (a *Automator) checkIn(ctx context.Context, first model.CheckinState) error {
	err := retry.Do(ctx, a.policy(a.retry.Checkin, "check-in"), func(ctx context.Context, attempt int) error {
		st := first
		if attempt > 1 {
			s, err := a.site.Status(ctx)
			if err != nil {
				return err
			}
			switch s.Status {
			case model.CheckinDone:
				return nil
			case model.CheckinUnknown:
				return retry.Permanent(fmt.Errorf("%w: %q", provider.ErrUnknownStatus, s.Label))
			}
			st = s
		}
		err := a.site.CheckIn(ctx, st.Token)
		if errors.Is(err, provider.ErrUnknownStatus) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("check-in: %w", err)
	}
	return nil
}

func (a *Automator) notify(ctx context.Context, res Result) {
	if a.notifier == nil {
		return
	}
	if m, ok := a.notifier.(*notify.Multi); ok && m.Len() == 0 {
		return
	}
	// 运行上下文可能已被取消，通知单独给一个短超时。
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := a.notifier.Notify(nctx, buildMessage(res, a.creds.Username)); err != nil {
		a.bus.Log("warn", "notify failed", map[string]any{"error": err.Error()})
	}
}

func (a *Automator) record(ctx context.Context, res Result, started time.Time) model.RunRecord {
	rec := model.RunRecord{
		Username:   a.creds.Username,
		State:      res.State,
		Success:    res.OK,
		CheckedIn:  res.CheckedIn,
		Label:      res.Checkin.Label,
		Summary:    res.Summary,
		StartedAt:  started,
		FinishedAt: a.now(),
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	if events := a.bus.Snapshot(); len(events) > 0 {
		if b, err := json.Marshal(events); err == nil {
			rec.EventsJSON = string(b)
		}
	}
	if a.history == nil {
		return rec
	}
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	saved, err := a.history.InsertRun(hctx, rec)
	if err != nil {
		a.bus.Log("warn", "save run history failed", map[string]any{"error": err.Error()})
		return rec
	}
	return saved
}
