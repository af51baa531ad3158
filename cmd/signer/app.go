package main

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/log"

	"github.com/rangdl/FN-AQ/internal/captcha"
	"github.com/rangdl/FN-AQ/internal/config"
	"github.com/rangdl/FN-AQ/internal/keyring"
	"github.com/rangdl/FN-AQ/internal/logbus"
	"github.com/rangdl/FN-AQ/internal/logger"
	"github.com/rangdl/FN-AQ/internal/model"
	"github.com/rangdl/FN-AQ/internal/provider/discuz"
	"github.com/rangdl/FN-AQ/internal/retry"
	"github.com/rangdl/FN-AQ/internal/session"
)

// Globals 是所有子命令共享的参数。
type Globals struct {
	Ctx        context.Context
	ConfigPath string
	Debug      bool
}

type app struct {
	cfg      config.Config
	log      *log.Logger
	closer   io.Closer
	bus      *logbus.Bus
	sessions *session.Store
	site     *discuz.Site
}

func (g *Globals) loadConfig() (config.Config, error) {
	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		return config.Config{}, configError(err)
	}
	if g.Debug {
		cfg.Log.Debug = true
	}
	return cfg, nil
}

// newApp 加载配置并组装会话、识别器与站点实现。
func (g *Globals) newApp() (*app, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	l, closer, err := logger.New(logger.Config{Dir: cfg.Log.Dir, Debug: cfg.Log.Debug})
	if err != nil {
		return nil, configError(err)
	}
	bus := logbus.New(500, l)

	sessions := session.NewStore(cfg.Storage.CookiePath, bus)
	cookies, _ := sessions.Load()

	rec, err := captcha.New(cfg.Captcha, retry.FromConfig(cfg.Retry.Token), bus)
	if err != nil {
		_ = closer.Close()
		return nil, configError(err)
	}
	opts := discuz.Options{
		Site:     cfg.Site,
		Markers:  cfg.Markers,
		Username: cfg.Account.Username,
		Cookies:  cookies,
		Bus:      bus,
	}
	if rec != nil {
		opts.Recognizer = rec
	}
	site, err := discuz.New(opts)
	if err != nil {
		_ = closer.Close()
		return nil, configError(err)
	}
	return &app{cfg: cfg, log: l, closer: closer, bus: bus, sessions: sessions, site: site}, nil
}

func (a *app) Close() error {
	return a.closer.Close()
}

// credentials 优先用配置/环境变量里的密码，其次读系统钥匙串。
func credentials(acc config.AccountConfig, lookup func(string) (string, error), bus *logbus.Bus) model.Credentials {
	creds := model.Credentials{Username: acc.Username, Password: acc.Password}
	if creds.Password != "" || creds.Username == "" {
		return creds
	}
	pw, err := lookup(creds.Username)
	switch {
	case err == nil:
		creds.Password = pw
		bus.Log("debug", "password loaded from keyring", map[string]any{"user": creds.Username})
	case errors.Is(err, keyring.ErrNotFound):
	default:
		bus.Log("warn", "keyring unavailable", map[string]any{"error": err.Error()})
	}
	return creds
}
