package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

var version = "dev"

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

// exitError 携带进程退出码；配置错误为 2，运行失败为 1。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configError(err error) error { return &exitError{code: exitConfig, err: err} }

var CLI struct {
	Config string `help:"Path to config.yaml (optional, env vars override it)." default:"./config.yaml" type:"path"`
	Debug  bool   `help:"Enable debug logging (same as FN_DEBUG=1)."`

	Run     RunCmd     `cmd:"" help:"Sign in and perform today's check-in." default:"1"`
	Status  StatusCmd  `cmd:"" help:"Show session and check-in status without logging in."`
	History HistoryCmd `cmd:"" help:"List recent runs."`
	Version VersionCmd `cmd:"" help:"Print version."`
	Keyring struct {
		Set    KeyringSetCmd    `cmd:"" help:"Store the forum password in the OS keyring."`
		Delete KeyringDeleteCmd `cmd:"" help:"Remove the stored password."`
	} `cmd:"" help:"Manage the password stored in the OS keyring."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("signer"),
		kong.Description("Daily check-in for Discuz forums (club.fnnas.com by default)."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := kctx.Run(&Globals{Ctx: ctx, ConfigPath: CLI.Config, Debug: CLI.Debug})
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailed
}
